// Package csv reads comma-delimited text where a comma may be followed by any
// run of spaces or tabs before the next field ("a, b,\tc"). encoding/csv only
// accepts a single-rune separator, so it cannot express that rule.
//
// Fields may be wrapped in double quotes, in which case they may contain
// commas and "" stands for a literal quote. Records end at a newline; quoted
// fields do not span lines.
package csv

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"
)

// ErrBareQuote is returned for a quote that is not closed on the same line.
var ErrBareQuote = errors.New("unterminated quoted field")

// ParseError reports the 1-based line of a malformed record.
type ParseError struct {
	Line int
	Err  error
}

func (e *ParseError) Error() string { return fmt.Sprintf("line %d: %v", e.Line, e.Err) }
func (e *ParseError) Unwrap() error { return e.Err }

// Reader reads records from a delimited stream.
type Reader struct {
	sc   *bufio.Scanner
	line int
}

// maxLine bounds a single record; larger lines fail with bufio.ErrTooLong.
const maxLine = 16 << 20

func NewReader(r io.Reader) *Reader {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLine)
	return &Reader{sc: sc}
}

// Line returns the line number of the record most recently returned by Read.
func (r *Reader) Line() int { return r.line }

// Read returns the next non-blank record, or io.EOF. Malformed records are
// *ParseError; stream failures are returned unwrapped.
func (r *Reader) Read() ([]string, error) {
	for r.sc.Scan() {
		r.line++
		text := strings.TrimSuffix(r.sc.Text(), "\r")
		if strings.TrimSpace(text) == "" {
			continue
		}
		rec, err := SplitLine(text)
		if err != nil {
			return nil, &ParseError{Line: r.line, Err: err}
		}
		return rec, nil
	}
	// An over-long line is malformed input; any other scanner error comes
	// from the underlying stream and is returned as is.
	if err := r.sc.Err(); err != nil {
		if errors.Is(err, bufio.ErrTooLong) {
			return nil, &ParseError{Line: r.line + 1, Err: err}
		}
		return nil, err
	}
	return nil, io.EOF
}

// ReadAll reads every remaining record.
func (r *Reader) ReadAll() ([][]string, error) {
	var out [][]string
	for {
		rec, err := r.Read()
		if err == io.EOF {
			return out, nil
		}
		if err != nil {
			return out, err
		}
		out = append(out, rec)
	}
}

// SplitLine splits one line on `,[\t ]*`.
func SplitLine(line string) ([]string, error) {
	var (
		out []string
		b   strings.Builder
	)
	i := 0
	for {
		b.Reset()
		if i < len(line) && line[i] == '"' {
			i++
			closed := false
			for i < len(line) {
				c := line[i]
				if c == '"' {
					if i+1 < len(line) && line[i+1] == '"' {
						b.WriteByte('"')
						i += 2
						continue
					}
					i++
					closed = true
					break
				}
				b.WriteByte(c)
				i++
			}
			if !closed {
				return nil, ErrBareQuote
			}
			// Anything between the closing quote and the next comma is kept verbatim.
			for i < len(line) && line[i] != ',' {
				b.WriteByte(line[i])
				i++
			}
		} else {
			j := strings.IndexByte(line[i:], ',')
			if j < 0 {
				b.WriteString(line[i:])
				i = len(line)
			} else {
				b.WriteString(line[i : i+j])
				i += j
			}
		}
		out = append(out, b.String())

		if i >= len(line) {
			return out, nil
		}
		// line[i] == ','
		i++
		for i < len(line) && (line[i] == ' ' || line[i] == '\t') {
			i++
		}
	}
}

// NormalizeHeader strips a leading byte order mark and surrounding space.
func NormalizeHeader(hdr []string) []string {
	out := make([]string, len(hdr))
	for i, h := range hdr {
		if i == 0 {
			h = strings.TrimPrefix(h, "\uFEFF")
		}
		out[i] = strings.TrimSpace(h)
	}
	return out
}
