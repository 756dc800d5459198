package httpclient

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/matryer/is"
	"github.com/prometheus/client_golang/prometheus"
)

func TestInstrumentedClientObservesRequests(t *testing.T) {
	is := is.New(t)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	reg := prometheus.NewRegistry()
	client := New("upstream", Options{Namespace: "test", Registerer: reg})

	resp, err := client.Get(srv.URL + "/ping")
	is.NoErr(err)
	resp.Body.Close()

	families, err := reg.Gather()
	is.NoErr(err)
	is.Equal(1, len(families))
	is.Equal("test_http_client_upstream_request_duration_seconds", families[0].GetName())
}

func TestMockTransport(t *testing.T) {
	is := is.New(t)

	client, mock := NewMockClient()
	mock.Stub(http.MethodGet, "/ok", http.StatusOK, "hello")

	resp, err := client.Get("https://example.test/ok")
	is.NoErr(err)
	defer resp.Body.Close()
	is.Equal(http.StatusOK, resp.StatusCode)

	_, err = client.Get("https://example.test/unknown")
	is.True(err != nil) // unstubbed path fails loudly

	is.Equal(2, len(mock.Requests()))
}
