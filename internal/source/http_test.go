package source

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"userstats/internal/etlerr"
)

func TestHTTP_OpenResolvesNameUnderRoot(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/exports/users.csv" {
			http.NotFound(w, r)
			return
		}
		_, _ = io.WriteString(w, "user_id\n1\n")
	}))
	defer srv.Close()

	h := NewHTTP(srv.Client(), time.Second)
	rc, err := h.Open(context.Background(), srv.URL+"/exports", "users.csv")
	require.NoError(t, err)
	defer rc.Close()

	b, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, "user_id\n1\n", string(b))
}

func TestHTTP_NotFoundIsMissingInput(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := NewHTTP(srv.Client(), 0).Open(context.Background(), srv.URL, "users.csv")
	require.Error(t, err)
	assert.Equal(t, etlerr.KindMissingInput, etlerr.KindOf(err))
	assert.Contains(t, err.Error(), "http status 404")
}

func TestRouter_HTTPDispatch(t *testing.T) {
	t.Parallel()

	web := &recordingOpener{}
	_, err := Router{HTTP: web}.Open(context.Background(), "https://example.test/x", "a.csv")
	require.NoError(t, err)
	assert.Equal(t, []string{"https://example.test/x"}, web.roots)

	_, err = Router{}.Open(context.Background(), "http://example.test", "a.csv")
	assert.Equal(t, etlerr.KindConfig, etlerr.KindOf(err))
}
