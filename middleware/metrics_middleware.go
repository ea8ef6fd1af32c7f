package middleware

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"mini-soap/message"
)

// Metrics holds the dispatcher collectors.
type Metrics struct {
	calls    *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

// NewMetrics creates the collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		calls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "minisoap",
			Subsystem: "dispatcher",
			Name:      "calls_total",
			Help:      "SOAP calls by operation and outcome (ok or fault kind).",
		}, []string{"operation", "outcome"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "minisoap",
			Subsystem: "dispatcher",
			Name:      "call_duration_seconds",
			Help:      "SOAP call latency by operation.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"}),
	}
	for _, c := range []prometheus.Collector{m.calls, m.duration} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// MetricsMiddleware records a count and a latency sample per call. Names of
// operations that do not exist are folded into "_unknown" to bound label
// cardinality.
func MetricsMiddleware(m *Metrics) Middleware {
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, req *message.Request) *message.Response {
			start := time.Now()
			resp := next(ctx, req)

			op, outcome := req.Operation, "ok"
			if resp.Failed() {
				outcome = resp.Fault.Kind.String()
				if resp.Fault.Kind == message.UnknownOperation {
					op = "_unknown"
				}
			}
			m.calls.WithLabelValues(op, outcome).Inc()
			m.duration.WithLabelValues(op).Observe(time.Since(start).Seconds())
			return resp
		}
	}
}
