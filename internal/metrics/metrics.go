// Package metrics holds the domain counters exported on /metrics.
package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	CheckIns = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "repcir_checkins_total",
			Help: "Challenge check-ins by outcome",
		},
		[]string{"result"},
	)
	InviteRedemptions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "repcir_invite_redemptions_total",
			Help: "Circle invite redemptions by outcome",
		},
		[]string{"result"},
	)
	RetentionDeleted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "repcir_retention_deleted_total",
			Help: "Rows removed by the data retention job",
		},
		[]string{"category"},
	)
	JobsDispatched = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "repcir_jobs_dispatched_total",
			Help: "Background events published by topic and outcome",
		},
		[]string{"topic", "result"},
	)
)

// Register adds the domain collectors to reg.
func Register(reg prometheus.Registerer) {
	reg.MustRegister(CheckIns, InviteRedemptions, RetentionDeleted, JobsDispatched)
}
