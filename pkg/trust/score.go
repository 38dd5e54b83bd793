// Package trust computes normalized trust scores and discrete trust levels
// for agents from identity, credential, interaction, reputation, and time
// factors. Scores feed authorization decisions and operator-visible
// reputation; recommendations are advisory only.
package trust

import (
	"time"
)

// Level is a discrete trust level.
type Level string

// Trust levels, lowest to highest.
const (
	LevelUnknown    Level = "UNKNOWN"
	LevelBasic      Level = "BASIC"
	LevelVerified   Level = "VERIFIED"
	LevelTrusted    Level = "TRUSTED"
	LevelPrivileged Level = "PRIVILEGED"
)

// rank makes levels comparable.
func (l Level) rank() int {
	switch l {
	case LevelBasic:
		return 1
	case LevelVerified:
		return 2
	case LevelTrusted:
		return 3
	case LevelPrivileged:
		return 4
	default:
		return 0
	}
}

// AtLeast reports whether l meets or exceeds required.
func (l Level) AtLeast(required Level) bool {
	return l.rank() >= required.rank()
}

// Factors are the inputs to score computation. They may be read from
// independent aggregates outside a single transaction; callers tolerate a
// score computed from a slightly inconsistent snapshot.
type Factors struct {
	IdentityVerified     bool     `json:"identityVerified"`
	CredentialsValidated []string `json:"credentialsValidated"`

	Interactions InteractionHistory `json:"interactionHistory"`
	Reputation   Reputation         `json:"reputation"`
	Time         TimeFactors        `json:"timeFactors"`
}

// InteractionHistory summarizes past interactions with other agents.
type InteractionHistory struct {
	Successful      int        `json:"successful"`
	Failed          int        `json:"failed"`
	LastInteraction *time.Time `json:"lastInteraction,omitempty"`
}

// Reputation counts community signals.
type Reputation struct {
	Endorsements int `json:"endorsements"`
	Violations   int `json:"violations"`
}

// TimeFactors capture account longevity and activity.
type TimeFactors struct {
	AccountAgeDays float64 `json:"accountAgeDays"`
	ActiveHours    float64 `json:"activeHours"`
}

// Score is the computed trust record for an agent. Recomputed on demand and
// upserted per agent; no history is retained here.
type Score struct {
	AgentDID        string    `json:"agentDid"`
	Score           float64   `json:"score"`
	Level           Level     `json:"level"`
	Factors         Factors   `json:"factors"`
	CalculatedAt    time.Time `json:"calculatedAt"`
	Recommendations []string  `json:"recommendations"`
}

// Weight constants for Compute. Each term is clamped independently before
// summing; the total is clamped to [0,1].
const (
	identityWeight      = 0.20
	perCredentialWeight = 0.05
	credentialCap       = 0.20
	interactionWeight   = 0.30
	perReputationWeight = 0.02
	reputationCap       = 0.20
	accountAgeCap       = 0.05
	accountAgeDivisor   = 365.0
	activeHoursCap      = 0.05
	activeHoursDivisor  = 1000.0
)

// Compute returns the weighted trust score for the given factors,
// clamped to [0,1]. Pure function: no state, no I/O.
func Compute(f Factors) float64 {
	score := 0.0

	if f.IdentityVerified {
		score += identityWeight
	}

	score += min(perCredentialWeight*float64(len(f.CredentialsValidated)), credentialCap)

	total := f.Interactions.Successful + f.Interactions.Failed
	if total > 0 {
		rate := float64(f.Interactions.Successful) / float64(total)
		score += rate * interactionWeight
	}

	rep := float64(f.Reputation.Endorsements-f.Reputation.Violations) * perReputationWeight
	score += clamp(rep, 0, reputationCap)

	score += min(f.Time.AccountAgeDays/accountAgeDivisor, accountAgeCap)
	score += min(f.Time.ActiveHours/activeHoursDivisor, activeHoursCap)

	return clamp(score, 0, 1)
}

// DetermineLevel maps a score to its discrete level. Thresholds are fixed
// constants; the mapping is monotonic non-decreasing in score.
func DetermineLevel(score float64) Level {
	switch {
	case score >= 0.90:
		return LevelPrivileged
	case score >= 0.70:
		return LevelTrusted
	case score >= 0.40:
		return LevelVerified
	case score >= 0.20:
		return LevelBasic
	default:
		return LevelUnknown
	}
}

// Recommendations returns advisory hints for raising an agent's score.
// Non-authoritative: nothing here feeds authorization decisions.
func Recommendations(f Factors, score float64) []string {
	var recs []string

	if !f.IdentityVerified {
		recs = append(recs, "Verify the agent identity to establish a trust baseline")
	}
	if len(f.CredentialsValidated) < 3 {
		recs = append(recs, "Obtain additional verifiable credentials (at least 3 recommended)")
	}
	total := f.Interactions.Successful + f.Interactions.Failed
	if total > 0 {
		failureRate := float64(f.Interactions.Failed) / float64(total)
		if failureRate > 0.10 {
			recs = append(recs, "Reduce interaction failure rate (currently above 10%)")
		}
	}
	if f.Reputation.Violations > 0 {
		recs = append(recs, "Resolve outstanding reputation violations")
	}
	if f.Time.AccountAgeDays < 30 {
		recs = append(recs, "Account is less than 30 days old; trust accrues with longevity")
	}
	if DetermineLevel(score).rank() < LevelVerified.rank() {
		recs = append(recs, "Score is below VERIFIED; some actions will be unavailable")
	}

	return recs
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
