// Package match implements the consent state machine: dual guardian (wali)
// approval, decline, unmatch and block.
package match

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

// Service contains the consent-flow business logic.
type Service struct {
	appCtx    *app.AppContext
	matches   *repository.MatchRepository
	guardians *repository.GuardianRepository
}

// NewService creates the match service with dependencies from AppContext.
func NewService(appCtx *app.AppContext) *Service {
	return &Service{
		appCtx:    appCtx,
		matches:   repository.NewMatchRepository(appCtx.DB),
		guardians: repository.NewGuardianRepository(appCtx.DB),
	}
}

// Approve records one guardian's verdict on a pending match.
//
// Approval is an order-independent two-phase barrier: the first guardian's
// approval leaves the match pending with one timestamp set; the second flips
// it to active. Approving twice is a no-op. approved=false rejects the match
// terminally.
//
// Only an active linked guardian of one of the two wards may call this, and
// a ward can never approve for themselves.
func (s *Service) Approve(ctx context.Context, matchID string, guardianID uint64, approved bool) (*db.Match, error) {
	match, err := s.matches.GetByID(ctx, matchID)
	if err != nil {
		return nil, translate(err, matchID)
	}

	if match.HasUser(guardianID) {
		return nil, apperr.Forbidden("a ward cannot approve their own match")
	}

	side, err := s.guardianSide(ctx, match, guardianID)
	if err != nil {
		return nil, err
	}

	if !approved {
		rejected, err := s.matches.Reject(ctx, matchID, guardianID)
		if err != nil {
			return nil, translate(err, matchID)
		}
		s.appCtx.Logger.Info("match rejected by guardian",
			"match_id", matchID, "guardian_id", guardianID)
		return rejected, nil
	}

	updated, activated, err := s.matches.RecordApproval(ctx, matchID, side)
	if err != nil {
		return nil, translate(err, matchID)
	}
	if activated {
		s.appCtx.Logger.Info("match activated",
			"match_id", matchID, "user1", updated.User1ID, "user2", updated.User2ID)
		s.appCtx.Notifier.Notify(ctx, notify.EventMatchActivated, map[string]any{
			"match_id": updated.ID,
			"user1_id": updated.User1ID,
			"user2_id": updated.User2ID,
		})
	}
	return updated, nil
}

// Unmatch cancels an active match on behalf of one of its participants.
func (s *Service) Unmatch(ctx context.Context, matchID string, actorID uint64) (*db.Match, error) {
	if err := s.requireParticipant(ctx, matchID, actorID); err != nil {
		return nil, err
	}
	updated, err := s.matches.Unmatch(ctx, matchID, actorID)
	if err != nil {
		return nil, translate(err, matchID)
	}
	return updated, nil
}

// Block terminally blocks a pending or active match on behalf of one of its
// participants. Disables any further messaging between the pair.
func (s *Service) Block(ctx context.Context, matchID string, actorID uint64) (*db.Match, error) {
	if err := s.requireParticipant(ctx, matchID, actorID); err != nil {
		return nil, err
	}
	updated, err := s.matches.Block(ctx, matchID, actorID)
	if err != nil {
		return nil, translate(err, matchID)
	}
	return updated, nil
}

// List returns the caller's matches, newest first.
func (s *Service) List(ctx context.Context, userID uint64) ([]db.Match, error) {
	return s.matches.ListForUser(ctx, userID)
}

// RemindPending emits an approval reminder for every match that has been
// waiting on guardian consent longer than the given duration. Invoked by an
// operational trigger rather than an in-process scheduler.
func (s *Service) RemindPending(ctx context.Context, pendingFor time.Duration) (int, error) {
	pending, err := s.matches.ListPendingOlderThan(ctx, time.Now().UTC().Add(-pendingFor))
	if err != nil {
		return 0, err
	}
	for _, m := range pending {
		s.appCtx.Notifier.Notify(ctx, notify.EventApprovalReminder, map[string]any{
			"match_id": m.ID,
			"user1_id": m.User1ID,
			"user2_id": m.User2ID,
		})
	}
	return len(pending), nil
}

// guardianSide resolves which ward (1 or 2) the guardian represents.
func (s *Service) guardianSide(ctx context.Context, match *db.Match, guardianID uint64) (int, error) {
	if ok, err := s.guardians.IsActiveGuardian(ctx, match.User1ID, guardianID); err != nil {
		return 0, err
	} else if ok {
		return 1, nil
	}
	if ok, err := s.guardians.IsActiveGuardian(ctx, match.User2ID, guardianID); err != nil {
		return 0, err
	} else if ok {
		return 2, nil
	}
	return 0, apperr.Forbidden("caller is not an active guardian of either party")
}

func (s *Service) requireParticipant(ctx context.Context, matchID string, actorID uint64) error {
	match, err := s.matches.GetByID(ctx, matchID)
	if err != nil {
		return translate(err, matchID)
	}
	if !match.HasUser(actorID) {
		return apperr.Forbidden("caller is not a participant of this match")
	}
	return nil
}

func translate(err error, matchID string) error {
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return apperr.NotFound("match %s not found", matchID)
	case errors.Is(err, repository.ErrInvalidTransition):
		return apperr.Conflict("invalid_transition", "match %s does not allow this transition from its current status", matchID)
	default:
		return err
	}
}
