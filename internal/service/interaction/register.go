package interaction

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/zawajapp/zawaj-core/internal/app"
	"github.com/zawajapp/zawaj-core/internal/apperr"
	"github.com/zawajapp/zawaj-core/internal/server"
)

const likersPageSize = 20

// Registrar ties the interaction service into the HTTP router.
type Registrar struct {
	appCtx *app.AppContext
}

// NewRegistrar creates a new Registrar for the interaction service.
func NewRegistrar(appCtx *app.AppContext) *Registrar {
	return &Registrar{appCtx: appCtx}
}

// Register attaches the interaction routes.
func (r *Registrar) Register(rg *gin.RouterGroup) {
	svc := NewService(r.appCtx)

	rg.PUT("/interactions", putInteraction(svc))
	rg.DELETE("/interactions/:targetID", deleteInteraction(svc))
	rg.GET("/interactions/likers", listLikers(svc, false))
	rg.GET("/interactions/likers/new", listLikers(svc, true))
	rg.GET("/interactions/likers/count", countLikers(svc))
}

type putInteractionRequest struct {
	TargetID uint64 `json:"target_id" binding:"required"`
	Action   string `json:"action" binding:"required"`
}

func putInteraction(svc *Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		actorID, err := server.CallerID(c)
		if err != nil {
			apperr.WriteJSON(c, err)
			return
		}

		var req putInteractionRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			apperr.WriteJSON(c, apperr.Validation("invalid request body: %v", err))
			return
		}

		result, err := svc.RecordInteraction(c.Request.Context(), actorID, req.TargetID, req.Action)
		if err != nil {
			apperr.WriteJSON(c, err)
			return
		}
		c.JSON(http.StatusOK, result)
	}
}

func deleteInteraction(svc *Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		actorID, err := server.CallerID(c)
		if err != nil {
			apperr.WriteJSON(c, err)
			return
		}

		targetID, err := strconv.ParseUint(c.Param("targetID"), 10, 64)
		if err != nil {
			apperr.WriteJSON(c, apperr.Validation("targetID must be a valid user id"))
			return
		}

		if err := svc.Undo(c.Request.Context(), actorID, targetID); err != nil {
			apperr.WriteJSON(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"undone": true})
	}
}

func listLikers(svc *Service, newOnly bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, err := server.CallerID(c)
		if err != nil {
			apperr.WriteJSON(c, err)
			return
		}

		var token *string
		if raw := c.Query("page_token"); raw != "" {
			token = &raw
		}

		var likers []Liker
		var next *string
		if newOnly {
			likers, next, err = svc.ListNewLikers(c.Request.Context(), userID, token, likersPageSize)
		} else {
			likers, next, err = svc.ListLikers(c.Request.Context(), userID, token, likersPageSize)
		}
		if err != nil {
			apperr.WriteJSON(c, err)
			return
		}

		resp := gin.H{"likers": likers}
		if next != nil {
			resp["next_page_token"] = *next
		}
		c.JSON(http.StatusOK, resp)
	}
}

func countLikers(svc *Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, err := server.CallerID(c)
		if err != nil {
			apperr.WriteJSON(c, err)
			return
		}

		count, err := svc.CountLikers(c.Request.Context(), userID)
		if err != nil {
			apperr.WriteJSON(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"count": count})
	}
}
