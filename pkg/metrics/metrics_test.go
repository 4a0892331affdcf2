package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestCounterSeries(t *testing.T) {
	r := New()
	a := r.Counter("requests_total", "Requests.", "endpoint", "search")
	b := r.Counter("requests_total", "", "endpoint", "top-headlines")
	a.Inc()
	a.Add(2)
	b.Inc()

	if a.Value() != 3 || b.Value() != 1 {
		t.Fatalf("values = %d, %d", a.Value(), b.Value())
	}
	if r.Counter("requests_total", "", "endpoint", "search") != a {
		t.Fatal("same labels should return the same counter")
	}
}

func TestGauge(t *testing.T) {
	g := New().Gauge("active", "")
	g.Set(4)
	g.Inc()
	g.Dec()
	g.Dec()
	if g.Value() != 3 {
		t.Fatalf("gauge = %d", g.Value())
	}
}

func TestHistogramBuckets(t *testing.T) {
	r := New()
	h := r.Histogram("latency_seconds", "Latency.", []float64{1, 0.1, 0.5})
	for _, v := range []float64{0.05, 0.3, 0.8, 2} {
		h.Observe(v)
	}
	if h.Count() != 4 {
		t.Fatalf("count = %d", h.Count())
	}
	out := r.Render()
	for _, want := range []string{
		`latency_seconds_bucket{le="0.1"} 1`,
		`latency_seconds_bucket{le="0.5"} 2`,
		`latency_seconds_bucket{le="1"} 3`,
		`latency_seconds_bucket{le="+Inf"} 4`,
		`latency_seconds_count 4`,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("missing %q in:\n%s", want, out)
		}
	}
}

func TestRenderLabelsAndOrder(t *testing.T) {
	r := New()
	r.Gauge("zeta", "Last.").Set(1)
	r.Counter("alpha_total", "First.", "reason", "no_api_key").Inc()
	r.Histogram("mid_seconds", "", nil, "endpoint", "search").Observe(0.2)

	out := r.Render()
	if strings.Index(out, "alpha_total") > strings.Index(out, "zeta") {
		t.Fatalf("families not sorted:\n%s", out)
	}
	for _, want := range []string{
		"# TYPE alpha_total counter",
		`alpha_total{reason="no_api_key"} 1`,
		`mid_seconds_bucket{endpoint="search",le="0.25"} 1`,
		`mid_seconds_count{endpoint="search"} 1`,
		"# HELP zeta Last.",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("missing %q in:\n%s", want, out)
		}
	}
}

func TestKindMismatchPanics(t *testing.T) {
	r := New()
	r.Counter("x", "")
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic")
		}
	}()
	r.Gauge("x", "")
}

func TestHandler(t *testing.T) {
	r := New()
	r.Counter("hits_total", "").Inc()
	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if !strings.HasPrefix(rec.Header().Get("Content-Type"), "text/plain") {
		t.Fatalf("content type = %q", rec.Header().Get("Content-Type"))
	}
	if !strings.Contains(rec.Body.String(), "hits_total 1") {
		t.Fatalf("body = %s", rec.Body.String())
	}
}
