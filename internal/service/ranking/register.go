package ranking

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/zawajapp/zawaj-core/internal/app"
	"github.com/zawajapp/zawaj-core/internal/apperr"
	"github.com/zawajapp/zawaj-core/internal/server"
)

// Registrar ties the ranking service into the HTTP router.
type Registrar struct {
	appCtx *app.AppContext
}

// NewRegistrar creates a new Registrar for the ranking service.
func NewRegistrar(appCtx *app.AppContext) *Registrar {
	return &Registrar{appCtx: appCtx}
}

// Register attaches the ranking routes.
func (r *Registrar) Register(rg *gin.RouterGroup) {
	svc := NewService(r.appCtx)
	rg.GET("/ranking", getRanking(svc))
}

func getRanking(svc *Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, err := server.CallerID(c)
		if err != nil {
			apperr.WriteJSON(c, err)
			return
		}

		limit := 0
		if raw := c.Query("limit"); raw != "" {
			limit, err = strconv.Atoi(raw)
			if err != nil || limit <= 0 {
				apperr.WriteJSON(c, apperr.Validation("limit must be a positive integer"))
				return
			}
		}
		forceRefresh := c.Query("force_refresh") == "true"

		ranking, err := svc.GetRanking(c.Request.Context(), userID, limit, forceRefresh)
		if err != nil {
			apperr.WriteJSON(c, err)
			return
		}
		c.JSON(http.StatusOK, ranking)
	}
}
