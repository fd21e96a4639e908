package server

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mcp_http_requests_total",
		Help: "HTTP requests served on the MCP endpoint, by status code.",
	}, []string{"code"})

	authFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "mcp_auth_failures_total",
		Help: "Requests rejected by the authentication middleware.",
	})

	toolCallsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mcp_tool_calls_total",
		Help: "Tool invocations, by tool name and outcome.",
	}, []string{"tool", "outcome"})
)

func recordToolCall(tool string, ok bool) {
	outcome := "error"
	if ok {
		outcome = "success"
	}
	toolCallsTotal.WithLabelValues(tool, outcome).Inc()
}

// statusRecorder captures the response status for metrics.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// instrument counts requests and auth rejections on the wrapped handler.
func instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		httpRequestsTotal.WithLabelValues(strconv.Itoa(rec.status)).Inc()
		if rec.status == http.StatusUnauthorized {
			authFailuresTotal.Inc()
		}
	})
}
