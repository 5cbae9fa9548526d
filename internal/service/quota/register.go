package quota

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/zawajapp/zawaj-core/internal/app"
	"github.com/zawajapp/zawaj-core/internal/apperr"
	"github.com/zawajapp/zawaj-core/internal/server"
)

// Registrar ties the quota service into the HTTP router.
type Registrar struct {
	appCtx *app.AppContext
}

// NewRegistrar creates a new Registrar for the quota service.
func NewRegistrar(appCtx *app.AppContext) *Registrar {
	return &Registrar{appCtx: appCtx}
}

// Register attaches the quota routes.
func (r *Registrar) Register(rg *gin.RouterGroup) {
	svc := NewService(r.appCtx)

	rg.GET("/quota/:feature", checkQuota(svc))
	rg.POST("/quota/:feature", consumeQuota(svc))
}

func checkQuota(svc *Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, err := server.CallerID(c)
		if err != nil {
			apperr.WriteJSON(c, err)
			return
		}

		status, err := svc.CheckLimit(c.Request.Context(), userID, c.Param("feature"))
		if err != nil {
			apperr.WriteJSON(c, err)
			return
		}
		c.JSON(http.StatusOK, status)
	}
}

func consumeQuota(svc *Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, err := server.CallerID(c)
		if err != nil {
			apperr.WriteJSON(c, err)
			return
		}

		newCount, err := svc.Consume(c.Request.Context(), userID, c.Param("feature"))
		if err != nil {
			apperr.WriteJSON(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"usage_count": newCount})
	}
}
