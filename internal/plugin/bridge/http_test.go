package bridge

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestBridge(t *testing.T, doer httpDoer) *Bridge {
	t.Helper()
	b, err := New("test-plugin", "0.0.0-test", t.TempDir())
	require.NoError(t, err)
	if doer != nil {
		b.httpClient = doer
	}
	return b
}

func TestHTTPRequest_DefaultsGETAndNoRedirect(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		if r.URL.Path == "/moved" {
			http.Redirect(w, r, "/", http.StatusFound)
			return
		}
		w.Header().Set("X-Test", "yes")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	b := newTestBridge(t, nil)
	resp, err := b.HTTPRequest(HTTPRequestOptions{URL: srv.URL})
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.Status)
	assert.Equal(t, "yes", resp.Headers["X-Test"])
	assert.JSONEq(t, `{"ok":true}`, resp.BodyText)

	moved, err := b.HTTPRequest(HTTPRequestOptions{URL: srv.URL + "/moved"})
	require.NoError(t, err)
	assert.Equal(t, http.StatusFound, moved.Status, "redirects are returned, not followed")
}

func TestHTTPRequest_BodyIsRedactedInLogNotInReturn(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"api_key":"sk-verysecretvalue1234567890"}`))
	}))
	defer srv.Close()

	b := newTestBridge(t, nil)
	b.logBuf = NewLogBuffer(16)
	resp, err := b.HTTPRequest(HTTPRequestOptions{URL: srv.URL})
	require.NoError(t, err)
	assert.Contains(t, resp.BodyText, "sk-verysecretvalue1234567890")

	var logged strings.Builder
	for _, e := range b.logBuf.GetRecent(16) {
		logged.WriteString(e.Message + "\n")
	}
	assert.NotContains(t, logged.String(), "sk-verysecretvalue1234567890")
	assert.Contains(t, logged.String(), "sk-v...7890")
}

func TestTruncateUTF8_NeverSplitsRune(t *testing.T) {
	s := strings.Repeat("é", 10) // each "é" is 2 bytes
	cut, total := truncateUTF8(s, 5)
	assert.Equal(t, 20, total)
	assert.True(t, len(cut) <= 5)
	assert.Equal(t, cut, strings.ToValidUTF8(cut, ""))
}

type errDoer struct{ err error }

func (e errDoer) Do(req *http.Request) (*http.Response, error) { return nil, e.err }

func TestHTTPRequest_TransportErrorWrapped(t *testing.T) {
	b := newTestBridge(t, errDoer{err: io.ErrClosedPipe})
	_, err := b.HTTPRequest(HTTPRequestOptions{URL: "http://example.invalid"})
	require.Error(t, err)
	assert.ErrorIs(t, err, io.ErrClosedPipe)
}
