// Package metrics exposes Prometheus collectors for the authorization core.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// AuthzDecisions counts permission check verdicts by outcome and reason.
	AuthzDecisions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "agentauth",
		Subsystem: "capability",
		Name:      "authz_decisions_total",
		Help:      "Permission check verdicts by outcome.",
	}, []string{"outcome", "reason"})

	// TokensValidated counts capability token validations by outcome.
	TokensValidated = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "agentauth",
		Subsystem: "capability",
		Name:      "tokens_validated_total",
		Help:      "Capability token validations by outcome.",
	}, []string{"outcome"})

	// CredentialsIssued counts credential issuance attempts by outcome.
	CredentialsIssued = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "agentauth",
		Subsystem: "credential",
		Name:      "issued_total",
		Help:      "Credential issuance attempts by outcome.",
	}, []string{"outcome"})

	// CredentialsVerified counts credential verifications by outcome.
	CredentialsVerified = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "agentauth",
		Subsystem: "credential",
		Name:      "verified_total",
		Help:      "Credential verifications by outcome.",
	}, []string{"outcome"})

	// TrustScores observes computed trust scores.
	TrustScores = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "agentauth",
		Subsystem: "trust",
		Name:      "score",
		Help:      "Distribution of computed trust scores.",
		Buckets:   prometheus.LinearBuckets(0, 0.1, 11),
	})
)
