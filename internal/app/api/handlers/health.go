package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tunehaus/backstage/pkg/response"
)

// @Summary      Liveness check
// @Description  Reports whether the API process is up. Job health lives under /cron/health.
// @Tags         System
// @Produce      json
// @Success      200  {object}  map[string]string
// @Router       /healthz [get]
func Healthz(c *gin.Context) {
	c.JSON(http.StatusOK, response.OKT(map[string]string{
		"status":  "ok",
		"service": "backstage",
	}))
}

func RegisterHealthRoutes(r gin.IRouter) {
	r.GET("/healthz", Healthz)
}
