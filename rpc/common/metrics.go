package common

import (
	"github.com/VictoriaMetrics/metrics"
	"io"
	"time"
)

// --------------------------------------------------------------------------
// Process wide metrics (exported in the prometheus text format)
// --------------------------------------------------------------------------

var (
	SessionsTotal    = metrics.GetOrCreateCounter("dbot_sessions_total")
	SessionsActive   = metrics.GetOrCreateCounter("dbot_sessions_active")
	SessionsFailed   = metrics.GetOrCreateCounter("dbot_sessions_failed_total")
	BytesSent        = metrics.GetOrCreateCounter("dbot_bytes_sent_total")
	BytesReceived    = metrics.GetOrCreateCounter("dbot_bytes_received_total")
	RequestErrors    = metrics.GetOrCreateCounter("dbot_request_errors_total")
	requestsText     = metrics.GetOrCreateCounter(`dbot_requests_total{kind="text"}`)
	requestsPush     = metrics.GetOrCreateCounter(`dbot_requests_total{kind="push"}`)
	requestsPull     = metrics.GetOrCreateCounter(`dbot_requests_total{kind="pull"}`)
	requestDurations = metrics.GetOrCreateHistogram("dbot_request_duration_seconds")
)

// RequestKind distinguishes the three exchange shapes of a channel
type RequestKind string

const (
	RequestKindText RequestKind = "text"
	RequestKindPush RequestKind = "push"
	RequestKindPull RequestKind = "pull"
)

// ObserveRequest records one completed exchange
func ObserveRequest(kind RequestKind, start time.Time) {
	switch kind {
	case RequestKindPush:
		requestsPush.Inc()
	case RequestKindPull:
		requestsPull.Inc()
	default:
		requestsText.Inc()
	}
	requestDurations.UpdateDuration(start)
}

// WriteMetrics writes all process metrics in the prometheus text format
func WriteMetrics(w io.Writer) {
	metrics.WritePrometheus(w, true)
}
