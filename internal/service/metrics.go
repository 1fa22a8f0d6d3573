package service

import (
	"vcf-drop/internal/domain"

	"github.com/prometheus/client_golang/prometheus"
)

// Submission outcomes used as metric labels
const (
	outcomeAccepted  = "accepted"
	outcomeLocked    = "locked"
	outcomeDuplicate = "duplicate"
	outcomeInvalid   = "invalid"
	outcomeError     = "error"
)

var (
	submissionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "campaign_submissions_total",
			Help: "Submissions by outcome.",
		},
		[]string{"outcome"},
	)

	overflowTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "campaign_overflow_contacts_total",
			Help: "Accepted contacts classified as overflow.",
		},
	)

	countdownsStarted = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "campaign_countdowns_started_total",
			Help: "Countdowns started by a submission reaching the target.",
		},
	)

	locksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "campaign_locks_total",
			Help: "Transitions into the locked state by cause.",
		},
		[]string{"cause"},
	)

	contactsGauge = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "campaign_contacts",
			Help: "Contacts collected, as of the last status or submission.",
		},
	)
)

func init() {
	prometheus.MustRegister(submissionsTotal, overflowTotal, countdownsStarted, locksTotal, contactsGauge)
}

func outcomeFor(reason domain.RejectReason) string {
	switch reason {
	case domain.ReasonLocked:
		return outcomeLocked
	case domain.ReasonDuplicate:
		return outcomeDuplicate
	default:
		return outcomeAccepted
	}
}
