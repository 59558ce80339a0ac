package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"net/http"
)

var (
	httpReqCnt = prometheus.NewCounterVec(prometheus.CounterOpts{
		Subsystem: "http",
		Name:      "req_total",
		Help:      "HTTP requests processed, partitioned by status code, method and route.",
	}, []string{"code", "method", "url"})

	httpReqDur = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Subsystem: "http",
		Name:      "req_dur_ms",
		Help:      "HTTP request latencies in milliseconds.",
		Buckets:   []float64{25, 50, 100, 250, 500, 1000, 2500, 5000, 15000},
	}, []string{"code", "method", "url"})
)

func init() {
	prometheus.MustRegister(httpReqCnt, httpReqDur)
}

// HandlerFunc records request count and latency per route template. Routes
// are labeled by gin's FullPath to keep label cardinality bounded.
func HandlerFunc() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		url := c.FullPath()
		if url == "" {
			url = c.Request.URL.Path
		}
		status := strconv.Itoa(c.Writer.Status())
		elapsed := float64(time.Since(start).Milliseconds())

		httpReqCnt.WithLabelValues(status, c.Request.Method, url).Inc()
		httpReqDur.WithLabelValues(status, c.Request.Method, url).Observe(elapsed)
	}
}

// Serve exposes /metrics on its own address so scrapes stay out of the API
// access log.
func Serve(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() { _ = srv.ListenAndServe() }()
	return srv
}
