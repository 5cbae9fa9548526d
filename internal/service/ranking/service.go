// Package ranking implements the Ranking Cache Manager: it orchestrates
// scoring across a user's eligible candidate pool and serves the result from
// a time-boxed Redis cache.
package ranking

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/zawajapp/zawaj-core/internal/app"
	"github.com/zawajapp/zawaj-core/internal/apperr"
	"github.com/zawajapp/zawaj-core/internal/db"
	"github.com/zawajapp/zawaj-core/internal/repository"
	"github.com/zawajapp/zawaj-core/internal/scoring"
)

// Service contains the ranking business logic on top of the profile
// repository, the scorer and the Redis cache.
type Service struct {
	appCtx   *app.AppContext
	profiles *repository.ProfileRepository
	scorer   *scoring.Scorer

	// now is injectable for deterministic tests.
	now func() time.Time
}

// NewService creates the ranking service with dependencies from AppContext.
func NewService(appCtx *app.AppContext) *Service {
	return &Service{
		appCtx:   appCtx,
		profiles: repository.NewProfileRepository(appCtx.DB),
		scorer:   scoring.New(scoring.DefaultWeights()),
		now:      time.Now,
	}
}

// RankedCandidate is one scored entry of a ranking.
type RankedCandidate struct {
	CandidateID uint64                  `json:"candidate_id"`
	Score       int                     `json:"score"`
	Factors     scoring.FactorBreakdown `json:"factors"`
}

// Ranking is the cached ranking document for one user.
type Ranking struct {
	UserID          uint64            `json:"user_id"`
	Candidates      []RankedCandidate `json:"candidates"`
	TotalConsidered int               `json:"total_candidates_considered"`
	ComputedAt      time.Time         `json:"computed_at"`
	ExpiresAt       time.Time         `json:"expires_at"`
	Cached          bool              `json:"cached"`
}

// GetRanking returns the user's compatibility ranking, serving a non-expired
// cache entry verbatim unless forceRefresh is set. Recomputation upserts a
// fresh entry with the configured TTL; concurrent refreshes race benignly,
// last writer wins.
func (s *Service) GetRanking(ctx context.Context, userID uint64, limit int, forceRefresh bool) (*Ranking, error) {
	if limit <= 0 {
		limit = s.appCtx.Config.Ranking.DefaultLimit
	}

	key := s.appCtx.RedisCache.KeyForRanking(userID)

	if !forceRefresh {
		if cached, err := s.readCached(ctx, key); err != nil {
			s.appCtx.Logger.Warn("ranking cache read failed, recomputing", "user", userID, "err", err)
		} else if cached != nil {
			cached.Cached = true
			return cached, nil
		}
	}

	ranking, err := s.compute(ctx, userID, limit)
	if err != nil {
		return nil, err
	}

	if payload, err := json.Marshal(ranking); err == nil {
		if err := s.appCtx.RedisCache.Set(ctx, key, payload, s.appCtx.Config.Ranking.TTL); err != nil {
			s.appCtx.Logger.Warn("ranking cache write failed", "user", userID, "err", err)
		}
	}

	return ranking, nil
}

func (s *Service) readCached(ctx context.Context, key string) (*Ranking, error) {
	raw, err := s.appCtx.RedisCache.Get(ctx, key)
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var ranking Ranking
	if err := json.Unmarshal([]byte(raw), &ranking); err != nil {
		return nil, err
	}
	// The Redis TTL expires entries on its own; the stored horizon is
	// re-checked in case the key outlived a TTL reconfiguration.
	if s.now().After(ranking.ExpiresAt) {
		return nil, nil
	}
	return &ranking, nil
}

func (s *Service) compute(ctx context.Context, userID uint64, limit int) (*Ranking, error) {
	user, err := s.profiles.GetProfile(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("user %d not found", userID)
		}
		return nil, err
	}
	pref, err := s.profiles.GetPreference(ctx, userID)
	if err != nil {
		return nil, err
	}

	pool, err := s.profiles.GetCandidates(ctx, user, s.appCtx.Config.Ranking.PoolCap)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	candidates := make([]RankedCandidate, 0, len(pool))
	for i := range pool {
		candidate := &pool[i]
		if !passesHardFilters(candidate, pref, now) {
			continue
		}
		total, factors := s.scorer.Score(user, candidate, pref, now)
		candidates = append(candidates, RankedCandidate{
			CandidateID: candidate.ID,
			Score:       total,
			Factors:     factors,
		})
	}

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].Score != candidates[j].Score {
			return candidates[i].Score > candidates[j].Score
		}
		return candidates[i].CandidateID < candidates[j].CandidateID
	})
	if len(candidates) > limit {
		candidates = candidates[:limit]
	}

	return &Ranking{
		UserID:          userID,
		Candidates:      candidates,
		TotalConsidered: len(pool),
		ComputedAt:      now,
		ExpiresAt:       now.Add(s.appCtx.Config.Ranking.TTL),
	}, nil
}

// passesHardFilters drops candidates failing the user's strict preferences
// before any scoring happens: age range, preferred sect and preferred
// religiosity are filters here, not score deductions.
func passesHardFilters(candidate *db.Profile, pref *db.Preference, now time.Time) bool {
	if pref == nil {
		return true
	}
	if pref.MinAge > 0 && pref.MaxAge >= pref.MinAge {
		age := candidate.Age(now)
		if age < pref.MinAge || age > pref.MaxAge {
			return false
		}
	}
	if pref.PreferredSect != "" && candidate.Sect != "" && !strings.EqualFold(candidate.Sect, pref.PreferredSect) {
		return false
	}
	if pref.PreferredReligiosity != "" && candidate.Religiosity != "" && !strings.EqualFold(candidate.Religiosity, pref.PreferredReligiosity) {
		return false
	}
	return true
}
