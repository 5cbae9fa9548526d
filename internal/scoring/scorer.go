// Package scoring computes the multi-factor compatibility score for a
// (user, candidate) pair. Pure and deterministic: no I/O and no clock reads
// (the evaluation time is an input), so identical inputs always produce the
// identical score and breakdown.
package scoring

import (
	"strings"
	"time"

	"github.com/zawajapp/zawaj-core/internal/db"
)

// Factor caps. The six factors sum to a 0-100 total.
const (
	MaxCompleteness = 20
	MaxAlignment    = 25
	MaxRecency      = 15
	MaxDealbreakers = 20
	MaxSect         = 10
	MaxSignal       = 10
)

// FactorBreakdown itemizes the score for client-side explainability. The
// fields always sum exactly to the reported total.
type FactorBreakdown struct {
	Completeness int `json:"completeness"`
	Alignment    int `json:"alignment"`
	Recency      int `json:"recency"`
	Dealbreakers int `json:"dealbreakers"`
	Sect         int `json:"sect"`
	Signal       int `json:"signal"`
}

// Total is the unweighted sum of the six factors.
func (f FactorBreakdown) Total() int {
	return f.Completeness + f.Alignment + f.Recency + f.Dealbreakers + f.Sect + f.Signal
}

// Weights holds the tunable constants of the scorer. A single source of
// truth: every surface that scores candidates goes through the same values.
type Weights struct {
	// Per-field completeness weights, normalized into the 0-20 band.
	Completeness map[string]int

	SameCityBonus     int
	AgeMidpointBonus  int
	AgeOutOfRange     int
	CountryMismatch   int
	SectMismatch      int
	ReligiosityMis    int
	NotNeverMarried   int
	UnwantedChildren  int
	ChildrenUnwilling int
}

// DefaultWeights returns the production point allocation.
func DefaultWeights() Weights {
	return Weights{
		Completeness: map[string]int{
			"full_name":        10,
			"bio":              20,
			"education":        10,
			"occupation":       10,
			"religiosity":      15,
			"prayer_frequency": 10,
			"languages":        5,
			"country":          5,
			"city":             5,
			"sect":             10,
		},
		SameCityBonus:     2,
		AgeMidpointBonus:  5,
		AgeOutOfRange:     10,
		CountryMismatch:   10,
		SectMismatch:      5,
		ReligiosityMis:    5,
		NotNeverMarried:   5,
		UnwantedChildren:  10,
		ChildrenUnwilling: 10,
	}
}

// Scorer evaluates candidates against a user's preferences.
type Scorer struct {
	weights Weights
}

// New creates a Scorer with the given weights.
func New(weights Weights) *Scorer {
	return &Scorer{weights: weights}
}

// Score computes the 0-100 compatibility of candidate for user as seen at
// the given instant. pref may be nil, in which case the preference-driven
// deductions simply do not apply.
func (s *Scorer) Score(user, candidate *db.Profile, pref *db.Preference, now time.Time) (int, FactorBreakdown) {
	breakdown := FactorBreakdown{
		Completeness: s.completeness(candidate),
		Alignment:    s.alignment(user, candidate, pref, now),
		Recency:      s.recency(candidate, now),
		Dealbreakers: s.dealbreakers(candidate, pref),
		Sect:         s.sectCompatibility(user, candidate),
		Signal:       s.signalQuality(candidate),
	}
	return breakdown.Total(), breakdown
}

// completeness awards up to 20 points for a filled-out profile. Each empty
// field contributes zero; the weighted sum is normalized into the band with
// round-half-up so a fully complete profile lands exactly on the cap.
func (s *Scorer) completeness(p *db.Profile) int {
	fields := map[string]string{
		"full_name":        p.FullName,
		"bio":              p.Bio,
		"education":        p.Education,
		"occupation":       p.Occupation,
		"religiosity":      p.Religiosity,
		"prayer_frequency": p.PrayerFrequency,
		"languages":        p.Languages,
		"country":          p.Country,
		"city":             p.City,
		"sect":             p.Sect,
	}

	earned, total := 0, 0
	for name, weight := range s.weights.Completeness {
		total += weight
		if strings.TrimSpace(fields[name]) != "" {
			earned += weight
		}
	}
	if total == 0 {
		return 0
	}
	return (earned*MaxCompleteness + total/2) / total
}

// alignment starts from the full 25 points and adjusts by how well the
// candidate fits the user's stated preferences. Clamped to [0, 25].
func (s *Scorer) alignment(user, candidate *db.Profile, pref *db.Preference, now time.Time) int {
	score := MaxAlignment
	if pref == nil {
		return score
	}

	if pref.MinAge > 0 && pref.MaxAge >= pref.MinAge {
		age := candidate.Age(now)
		if age < pref.MinAge || age > pref.MaxAge {
			score -= s.weights.AgeOutOfRange
		} else {
			// Closer to the midpoint of the preferred range earns a bonus.
			mid := float64(pref.MinAge+pref.MaxAge) / 2
			half := float64(pref.MaxAge-pref.MinAge) / 2
			bonus := s.weights.AgeMidpointBonus
			if half > 0 {
				dist := float64(age) - mid
				if dist < 0 {
					dist = -dist
				}
				bonus = int(float64(s.weights.AgeMidpointBonus) * (1 - dist/half))
				if bonus < 0 {
					bonus = 0
				}
			}
			score += bonus
		}
	}

	if !pref.AllowInternational && user.Country != "" && candidate.Country != "" &&
		!strings.EqualFold(user.Country, candidate.Country) {
		score -= s.weights.CountryMismatch
	}
	if user.City != "" && strings.EqualFold(user.City, candidate.City) {
		score += s.weights.SameCityBonus
	}
	if pref.PreferredSect != "" && !strings.EqualFold(pref.PreferredSect, candidate.Sect) {
		score -= s.weights.SectMismatch
	}
	if pref.PreferredReligiosity != "" && !strings.EqualFold(pref.PreferredReligiosity, candidate.Religiosity) {
		score -= s.weights.ReligiosityMis
	}

	return clamp(score, 0, MaxAlignment)
}

// recency is a step function of days since the candidate's profile was last
// updated.
func (s *Scorer) recency(p *db.Profile, now time.Time) int {
	days := int(now.Sub(p.UpdatedAt).Hours() / 24)
	switch {
	case days <= 1:
		return 15
	case days <= 3:
		return 12
	case days <= 7:
		return 8
	case days <= 14:
		return 4
	default:
		return 0
	}
}

// dealbreakers starts from 20 and applies independent deductions for each
// hard incompatibility. Floored at 0.
func (s *Scorer) dealbreakers(candidate *db.Profile, pref *db.Preference) int {
	score := MaxDealbreakers
	if pref == nil {
		return score
	}

	if pref.PreferNeverMarried && candidate.MaritalStatus != "never_married" {
		score -= s.weights.NotNeverMarried
	}
	if pref.WantsChildren != nil {
		if !*pref.WantsChildren && candidate.HasChildren {
			score -= s.weights.UnwantedChildren
		}
		if *pref.WantsChildren && !candidate.WantsChildren {
			score -= s.weights.ChildrenUnwilling
		}
	}

	if score < 0 {
		score = 0
	}
	return score
}

// sectCompatibility awards the full 10 only when both sects are stated and
// equal; an unspecified or differing sect is neutral, not punitive.
func (s *Scorer) sectCompatibility(user, candidate *db.Profile) int {
	if user.Sect != "" && candidate.Sect != "" && strings.EqualFold(user.Sect, candidate.Sect) {
		return MaxSect
	}
	return 5
}

// signalQuality rewards verification and premium standing, capped at 10.
func (s *Scorer) signalQuality(p *db.Profile) int {
	score := 2
	switch p.VerificationStatus {
	case db.VerificationVerified:
		score = 10
	case db.VerificationPending:
		score = 5
	}
	if p.Tier == db.TierPremium {
		score += 2
	}
	return clamp(score, 0, MaxSignal)
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
