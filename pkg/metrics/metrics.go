// Package metrics counts authentication tiers, snapshot refetches and
// mutations with Prometheus collectors.
package metrics

import (
	"sort"

	"github.com/prometheus/client_golang/prometheus"
)

// Tier and outcome label values.
const (
	TierToken   = "token"
	TierRefresh = "refresh"
	TierReauth  = "reauth"

	OutcomeOK       = "ok"
	OutcomeRejected = "rejected"
	OutcomeFailed   = "failed"
	OutcomeConflict = "conflict"
)

// Recorder groups the collectors. A nil *Recorder is valid and records nothing.
type Recorder struct {
	// authAttempts counts attempts per tier.
	// Labels:
	//   - tier: token/refresh/reauth
	//   - outcome: ok/rejected/failed
	authAttempts *prometheus.CounterVec

	// snapshotFetches counts remote refetches of task snapshots.
	// Labels:
	//   - reason: stale/explicit
	snapshotFetches *prometheus.CounterVec

	// mutations counts task writes.
	// Labels:
	//   - outcome: ok/conflict/failed
	mutations *prometheus.CounterVec
}

// NewRecorder creates the collectors and registers them with reg.
func NewRecorder(reg prometheus.Registerer) *Recorder {
	r := &Recorder{
		authAttempts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "taigo_auth_attempts_total",
				Help: "Authenticated request attempts per authentication tier",
			},
			[]string{"tier", "outcome"},
		),
		snapshotFetches: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "taigo_snapshot_fetches_total",
				Help: "Remote refetches of project task snapshots",
			},
			[]string{"reason"},
		),
		mutations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "taigo_mutations_total",
				Help: "Versioned task mutations sent to the remote service",
			},
			[]string{"outcome"},
		),
	}
	reg.MustRegister(r.authAttempts, r.snapshotFetches, r.mutations)
	return r
}

// AuthAttempt records one attempt of the given tier.
func (r *Recorder) AuthAttempt(tier, outcome string) {
	if r == nil {
		return
	}
	r.authAttempts.WithLabelValues(tier, outcome).Inc()
}

// SnapshotFetch records one snapshot refetch.
func (r *Recorder) SnapshotFetch(reason string) {
	if r == nil {
		return
	}
	r.snapshotFetches.WithLabelValues(reason).Inc()
}

// Mutation records the outcome of one task write.
func (r *Recorder) Mutation(outcome string) {
	if r == nil {
		return
	}
	r.mutations.WithLabelValues(outcome).Inc()
}

// Totals sums every counter family gathered from g, keyed by family name.
func Totals(g prometheus.Gatherer) (map[string]float64, error) {
	families, err := g.Gather()
	if err != nil {
		return nil, err
	}
	totals := make(map[string]float64, len(families))
	for _, f := range families {
		var sum float64
		for _, m := range f.GetMetric() {
			sum += m.GetCounter().GetValue()
		}
		totals[f.GetName()] = sum
	}
	return totals, nil
}

// SortedNames returns the keys of totals in lexical order.
func SortedNames(totals map[string]float64) []string {
	names := make([]string, 0, len(totals))
	for name := range totals {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
