package match

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/zawajapp/zawaj-core/internal/app"
	"github.com/zawajapp/zawaj-core/internal/apperr"
	"github.com/zawajapp/zawaj-core/internal/db"
	"github.com/zawajapp/zawaj-core/internal/server"
)

// Registrar ties the match consent service into the HTTP router.
type Registrar struct {
	appCtx *app.AppContext
}

// NewRegistrar creates a new Registrar for the match service.
func NewRegistrar(appCtx *app.AppContext) *Registrar {
	return &Registrar{appCtx: appCtx}
}

// Register attaches the match routes.
func (r *Registrar) Register(rg *gin.RouterGroup) {
	svc := NewService(r.appCtx)

	rg.GET("/matches", listMatches(svc))
	rg.POST("/matches/:matchID/approval", postApproval(svc))
	rg.POST("/matches/:matchID/unmatch", postTransition(svc, (*Service).Unmatch))
	rg.POST("/matches/:matchID/block", postTransition(svc, (*Service).Block))
	rg.POST("/matches/reminders", postReminders(svc))
}

type approvalRequest struct {
	Approved *bool `json:"approved" binding:"required"`
}

func postApproval(svc *Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		guardianID, err := server.CallerID(c)
		if err != nil {
			apperr.WriteJSON(c, err)
			return
		}

		var req approvalRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			apperr.WriteJSON(c, apperr.Validation("invalid request body: %v", err))
			return
		}

		updated, err := svc.Approve(c.Request.Context(), c.Param("matchID"), guardianID, *req.Approved)
		if err != nil {
			apperr.WriteJSON(c, err)
			return
		}
		c.JSON(http.StatusOK, updated)
	}
}

func postTransition(svc *Service, fn func(*Service, context.Context, string, uint64) (*db.Match, error)) gin.HandlerFunc {
	return func(c *gin.Context) {
		actorID, err := server.CallerID(c)
		if err != nil {
			apperr.WriteJSON(c, err)
			return
		}

		updated, err := fn(svc, c.Request.Context(), c.Param("matchID"), actorID)
		if err != nil {
			apperr.WriteJSON(c, err)
			return
		}
		c.JSON(http.StatusOK, updated)
	}
}

func listMatches(svc *Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, err := server.CallerID(c)
		if err != nil {
			apperr.WriteJSON(c, err)
			return
		}

		matches, err := svc.List(c.Request.Context(), userID)
		if err != nil {
			apperr.WriteJSON(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"matches": matches})
	}
}

type remindersRequest struct {
	PendingForHours int `json:"pending_for_hours"`
}

func postReminders(svc *Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req remindersRequest
		if err := c.ShouldBindJSON(&req); err != nil || req.PendingForHours <= 0 {
			req.PendingForHours = 48
		}

		sent, err := svc.RemindPending(c.Request.Context(), time.Duration(req.PendingForHours)*time.Hour)
		if err != nil {
			apperr.WriteJSON(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"reminders_sent": sent})
	}
}
