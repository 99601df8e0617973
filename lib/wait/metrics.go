package wait

import (
	"github.com/rcrowley/go-metrics"
	"time"
)

// Metrics holds the statistics of all waits in this process
var Metrics = metrics.NewRegistry()

var (
	attemptsHist  = metrics.NewRegisteredHistogram("attempts", Metrics, metrics.NewExpDecaySample(1028, 0.015))
	durationTimer = metrics.NewRegisteredTimer("duration", Metrics)
	outcomes      = map[outcome]metrics.Counter{
		succeeded: metrics.NewRegisteredCounter("succeeded", Metrics),
		timedOut:  metrics.NewRegisteredCounter("timed_out", Metrics),
		failed:    metrics.NewRegisteredCounter("failed", Metrics),
	}
)

type outcome int

const (
	succeeded outcome = iota
	timedOut
	failed
)

// record updates the wait statistics after a wait ended
func record(start time.Time, attempts int, o outcome) {
	attemptsHist.Update(int64(attempts))
	durationTimer.UpdateSince(start)
	outcomes[o].Inc(1)
}

// Snapshot returns the number of succeeded, timed out and failed waits
func Snapshot() (succeededCount, timedOutCount, failedCount int64) {
	return outcomes[succeeded].Count(), outcomes[timedOut].Count(), outcomes[failed].Count()
}
