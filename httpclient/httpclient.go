// Package httpclient builds http.Clients whose transport records Prometheus
// request-duration histograms, with an optional debug mode that dumps
// responses to the slog debug level.
package httpclient

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/davecgh/go-spew/spew"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var durationBuckets = []float64{
	0.0005,
	0.001, // 1ms
	0.002,
	0.005,
	0.01, // 10ms
	0.02,
	0.05,
	0.1, // 100 ms
	0.2,
	0.5,
	1.0, // 1s
	2.0,
	5.0,
	10.0, // 10s
	15.0,
	20.0,
	30.0,
}

type Options struct {
	// Namespace prefixes the Prometheus metric names.
	Namespace string
	// Timeout applies to the whole request including body read.
	Timeout time.Duration
	// Debug dumps every response to slog at debug level.
	Debug bool
	// Registerer defaults to the global Prometheus registerer.
	Registerer prometheus.Registerer
}

type transport struct {
	next      http.RoundTripper
	durations *prometheus.HistogramVec
	debug     bool
}

func (t *transport) RoundTrip(req *http.Request) (*http.Response, error) {
	start := time.Now()
	resp, err := t.next.RoundTrip(req)

	status := "error"
	if resp != nil {
		status = resp.Status
	}
	t.durations.WithLabelValues(req.Method, req.URL.Host, req.URL.Path, status).
		Observe(time.Since(start).Seconds())

	if t.debug && resp != nil {
		slog.Debug("http response",
			"method", req.Method,
			"url", req.URL.String(),
			"dump", spew.Sdump(resp.Header),
		)
	}

	return resp, err
}

// New returns a client whose requests are observed under
// {namespace}_http_client_{name}_request_duration_seconds.
func New(name string, opts Options) *http.Client {
	reg := opts.Registerer
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	t := &transport{
		next:  http.DefaultTransport,
		debug: opts.Debug,
		durations: promauto.With(reg).NewHistogramVec(prometheus.HistogramOpts{
			Namespace: opts.Namespace,
			Name:      fmt.Sprintf("http_client_%s_request_duration_seconds", name),
			Help:      fmt.Sprintf("Time spent on requests by the %s client", name),
			Buckets:   durationBuckets,
		}, []string{"method", "host", "uri", "status"}),
	}
	return &http.Client{Transport: t, Timeout: opts.Timeout}
}
