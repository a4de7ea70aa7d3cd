package lookup

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// rewriteTransport redirects every request to the test server, preserving the
// request path. Lets the scraper build its usual https URL while the test
// serves plain HTTP.
type rewriteTransport struct {
	target *url.URL
}

func (t rewriteTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	req.URL.Scheme = t.target.Scheme
	req.URL.Host = t.target.Host
	return http.DefaultTransport.RoundTrip(req)
}

func testClient(t *testing.T, srv *httptest.Server) *http.Client {
	t.Helper()

	target, err := url.Parse(srv.URL)
	require.NoError(t, err)

	return &http.Client{Transport: rewriteTransport{target: target}}
}

func TestScraper_ItempropName(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/testuser", r.URL.Path)
		w.Write([]byte(`<html><body><h1><span itemprop="name">Test User</span></h1></body></html>`))
	}))
	defer srv.Close()

	fn := NewScraper(testClient(t, srv))

	name, err := fn(context.Background(), "example.com", "testuser")
	require.NoError(t, err)
	assert.Equal(t, "Test User", name)
}

func TestScraper_VcardFallback(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html><body><span class="p-name vcard-fullname">Card Name</span></body></html>`))
	}))
	defer srv.Close()

	fn := NewScraper(testClient(t, srv))

	name, err := fn(context.Background(), "example.com", "testuser")
	require.NoError(t, err)
	assert.Equal(t, "Card Name", name)
}

func TestScraper_NoNamePresent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html><body><p>profile without a name</p></body></html>`))
	}))
	defer srv.Close()

	fn := NewScraper(testClient(t, srv))

	_, err := fn(context.Background(), "example.com", "testuser")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no display name")
}

func TestScraper_NotFoundStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	fn := NewScraper(testClient(t, srv))

	_, err := fn(context.Background(), "example.com", "ghost")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 404")
}

func TestWithTimeout_ExpiresSlowLookup(t *testing.T) {
	slow := Func(func(ctx context.Context, origin, handle string) (string, error) {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(5 * time.Second):
			return "too late", nil
		}
	})

	fn := WithTimeout(slow, 20*time.Millisecond)

	start := time.Now()
	_, err := fn(context.Background(), "example.com", "testuser")

	require.Error(t, err)
	assert.Less(t, time.Since(start), time.Second)
}
