package source

import (
	"context"
	"fmt"
	"io"
	"strings"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"userstats/internal/etlerr"
)

// LookupEncoding resolves an IANA/WHATWG encoding label. An empty label means
// UTF-8. UTF-8 input has its byte order mark removed.
func LookupEncoding(label string) (encoding.Encoding, error) {
	label = strings.TrimSpace(strings.ToLower(label))
	switch label {
	case "", "utf-8", "utf8":
		return unicode.UTF8BOM, nil
	case "utf-16":
		return unicode.UTF16(unicode.LittleEndian, unicode.UseBOM), nil
	}
	enc, err := htmlindex.Get(label)
	if err != nil {
		return nil, etlerr.Config("input encoding", fmt.Errorf("unknown encoding %q", label))
	}
	return enc, nil
}

// Decoding wraps an Opener so every stream it returns is transcoded to UTF-8.
type Decoding struct {
	Next Opener
	Enc  encoding.Encoding
}

// WithEncoding returns next wrapped in a decoder for label.
func WithEncoding(next Opener, label string) (Opener, error) {
	enc, err := LookupEncoding(label)
	if err != nil {
		return nil, err
	}
	return Decoding{Next: next, Enc: enc}, nil
}

func (d Decoding) Open(ctx context.Context, root, name string) (io.ReadCloser, error) {
	rc, err := d.Next.Open(ctx, root, name)
	if err != nil {
		return nil, err
	}
	return readCloser{
		Reader: transform.NewReader(rc, d.Enc.NewDecoder()),
		Closer: rc,
	}, nil
}

type readCloser struct {
	io.Reader
	io.Closer
}
