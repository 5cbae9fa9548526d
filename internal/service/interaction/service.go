// Package interaction implements the Interaction Recorder: directional
// like/pass/super_like actions, mutual-interest detection and the premium
// undo.
package interaction

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/zawajapp/zawaj-core/internal/app"
	"github.com/zawajapp/zawaj-core/internal/apperr"
	"github.com/zawajapp/zawaj-core/internal/db"
	"github.com/zawajapp/zawaj-core/internal/notify"
	"github.com/zawajapp/zawaj-core/internal/repository"
)

// Service contains the interaction business logic on top of the repository
// and cache layers.
type Service struct {
	appCtx       *app.AppContext
	interactions *repository.InteractionRepository
	matches      *repository.MatchRepository
	profiles     *repository.ProfileRepository
	guardians    *repository.GuardianRepository
}

// NewService creates the interaction service with dependencies from AppContext.
func NewService(appCtx *app.AppContext) *Service {
	return &Service{
		appCtx:       appCtx,
		interactions: repository.NewInteractionRepository(appCtx.DB),
		matches:      repository.NewMatchRepository(appCtx.DB),
		profiles:     repository.NewProfileRepository(appCtx.DB),
		guardians:    repository.NewGuardianRepository(appCtx.DB),
	}
}

// Result is the authoritative outcome of a recorded interaction. When the
// action completed a mutual pair, the match created (or already present) is
// reported so the caller needs no follow-up read.
type Result struct {
	IsMutual    bool    `json:"is_mutual"`
	MatchID     *string `json:"match_id"`
	MatchStatus *string `json:"match_status"`
}

func validAction(action string) bool {
	switch action {
	case db.ActionLike, db.ActionPass, db.ActionSuperLike:
		return true
	}
	return false
}

// RecordInteraction upserts the actor's decision on the target and, for
// like/super_like, checks whether the target already likes the actor back.
// A mutual pair creates exactly one pending_wali match; the unique pair
// index absorbs the two-sided race.
func (s *Service) RecordInteraction(ctx context.Context, actorID, targetID uint64, action string) (*Result, error) {
	if !validAction(action) {
		return nil, apperr.Validation("action must be one of like, pass, super_like")
	}
	if actorID == targetID {
		return nil, apperr.Validation("cannot interact with yourself")
	}

	if _, err := s.profiles.GetProfile(ctx, targetID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("user %d not found", targetID)
		}
		return nil, err
	}

	open, err := s.matches.HasOpenBetween(ctx, actorID, targetID)
	if err != nil {
		return nil, err
	}
	if open {
		return nil, apperr.Conflict("already_matched", "an open match already exists with this user")
	}

	previous, err := s.interactions.Get(ctx, actorID, targetID)
	if err != nil {
		return nil, err
	}

	if err := s.interactions.Upsert(ctx, actorID, targetID, action); err != nil {
		return nil, err
	}

	s.adjustLikerCount(ctx, targetID, previous, action)

	result := &Result{}
	if action == db.ActionPass {
		return result, nil
	}

	reciprocal, err := s.interactions.HasPositive(ctx, targetID, actorID)
	if err != nil {
		return nil, err
	}
	if !reciprocal {
		return result, nil
	}
	result.IsMutual = true

	match, created, err := s.matches.CreateForPair(ctx, actorID, targetID)
	if err != nil {
		return nil, err
	}
	if match.Terminal() {
		// The pair was rejected or blocked before; terminal states are
		// never resurrected by new interest.
		s.appCtx.Logger.Info("mutual interest against terminal pair ignored",
			"actor", actorID, "target", targetID, "status", match.Status)
		return result, nil
	}

	result.MatchID = &match.ID
	result.MatchStatus = &match.Status

	if created {
		s.appCtx.Logger.Info("match created",
			"match_id", match.ID, "user1", match.User1ID, "user2", match.User2ID)
		s.appCtx.Notifier.Notify(ctx, notify.EventMatchCreated, map[string]any{
			"match_id": match.ID,
			"user1_id": match.User1ID,
			"user2_id": match.User2ID,
		})
		s.requestGuardianApprovals(ctx, match)
	}

	return result, nil
}

// Undo deletes the actor's most recent interaction with the target, a
// premium-only feature. It fails once a match exists for the pair: an undo
// never retracts a match.
func (s *Service) Undo(ctx context.Context, actorID, targetID uint64) error {
	actor, err := s.profiles.GetProfile(ctx, actorID)
	if err != nil {
		return err
	}
	if actor.Tier != db.TierPremium {
		return apperr.Forbidden("undo is available to premium members only")
	}

	interaction, err := s.interactions.Get(ctx, actorID, targetID)
	if err != nil {
		return err
	}
	if interaction == nil {
		return apperr.NotFound("no interaction with user %d to undo", targetID)
	}

	match, err := s.matches.GetByUsers(ctx, actorID, targetID)
	if err != nil {
		return err
	}
	if match != nil {
		return apperr.UndoUnavailable()
	}

	if err := s.interactions.Delete(ctx, actorID, targetID); err != nil {
		return err
	}
	if interaction.Positive() {
		key := s.appCtx.RedisCache.KeyForLikerCount(targetID)
		_, _ = s.appCtx.RedisCache.Decr(ctx, key)
		_ = s.appCtx.RedisCache.Client.Expire(ctx, key, time.Hour).Err()
	}
	return nil
}

// Liker is one entry of the likers listings.
type Liker struct {
	UserID    uint64 `json:"user_id"`
	Action    string `json:"action"`
	Timestamp int64  `json:"unix_timestamp"`
}

// ListLikers returns users who like the given user, excluding anyone the
// user passed. Cursor-paginated.
func (s *Service) ListLikers(ctx context.Context, userID uint64, token *string, limit int) ([]Liker, *string, error) {
	interactions, next, err := s.interactions.GetLikers(ctx, userID, token, limit)
	if err != nil {
		return nil, nil, err
	}
	return toLikers(interactions), next, nil
}

// ListNewLikers is ListLikers restricted to likes not yet reciprocated.
func (s *Service) ListNewLikers(ctx context.Context, userID uint64, token *string, limit int) ([]Liker, *string, error) {
	interactions, next, err := s.interactions.GetNewLikers(ctx, userID, token, limit)
	if err != nil {
		return nil, nil, err
	}
	return toLikers(interactions), next, nil
}

// CountLikers returns how many users like the given user. Cache-first:
// Redis with a 1h TTL, falling back to the DB and repopulating on miss.
func (s *Service) CountLikers(ctx context.Context, userID uint64) (int64, error) {
	if cached, ok, err := s.appCtx.RedisCache.GetLikerCount(ctx, userID); err == nil && ok {
		return cached, nil
	}

	count, err := s.interactions.CountLikers(ctx, userID)
	if err != nil {
		return 0, err
	}
	_ = s.appCtx.RedisCache.SetLikerCount(ctx, userID, count)
	return count, nil
}

func toLikers(interactions []db.Interaction) []Liker {
	likers := make([]Liker, 0, len(interactions))
	for _, i := range interactions {
		likers = append(likers, Liker{
			UserID:    i.ActorID,
			Action:    i.Action,
			Timestamp: i.UpdatedAt.UnixMilli(),
		})
	}
	return likers
}

// adjustLikerCount keeps the cached incoming-like counter roughly in step
// with the write. Best effort: the DB is authoritative and repopulates the
// key on the next count miss.
func (s *Service) adjustLikerCount(ctx context.Context, targetID uint64, previous *db.Interaction, action string) {
	wasPositive := previous != nil && previous.Positive()
	isPositive := action == db.ActionLike || action == db.ActionSuperLike

	key := s.appCtx.RedisCache.KeyForLikerCount(targetID)
	switch {
	case isPositive && !wasPositive:
		_, _ = s.appCtx.RedisCache.Incr(ctx, key)
	case !isPositive && wasPositive:
		_, _ = s.appCtx.RedisCache.Decr(ctx, key)
	default:
		return
	}
	_ = s.appCtx.RedisCache.Client.Expire(ctx, key, time.Hour).Err()
}

// requestGuardianApprovals emits an approval request for every active
// guardian of both wards. Fire-and-forget.
func (s *Service) requestGuardianApprovals(ctx context.Context, match *db.Match) {
	for _, wardID := range []uint64{match.User1ID, match.User2ID} {
		links, err := s.guardians.ActiveGuardians(ctx, wardID)
		if err != nil {
			s.appCtx.Logger.Error("failed to load guardians for approval request",
				"ward", wardID, "err", err)
			continue
		}
		if len(links) == 0 {
			s.appCtx.Logger.Warn("ward has no active guardian; match cannot activate until one is linked",
				"ward", wardID, "match_id", match.ID)
			continue
		}
		for _, link := range links {
			s.appCtx.Notifier.Notify(ctx, notify.EventApprovalRequested, map[string]any{
				"match_id":    match.ID,
				"ward_id":     wardID,
				"guardian_id": link.GuardianID,
			})
		}
	}
}
