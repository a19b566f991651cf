package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/tunehaus/backstage/internal/app/service/cron"
	"github.com/tunehaus/backstage/pkg/response"
)

type TriggerJobRequest struct {
	JobName string `json:"job_name" binding:"required"`
}

func writeCronError(c *gin.Context, err error) {
	if errors.Is(err, cron.ErrJobNotFound) {
		c.JSON(http.StatusNotFound, response.ErrorT[any](response.APIResponseCodeNotFound, err.Error()))
		return
	}
	if errors.Is(err, cron.ErrJobBusy) {
		c.JSON(http.StatusConflict, response.ErrorT[any](response.APIResponseCodeConflict, err.Error()))
		return
	}
	c.JSON(http.StatusInternalServerError, response.ErrorT[any](response.APIResponseCodeError, err.Error()))
}

// @Summary      Trigger job
// @Description  Runs the named job once, immediately, and returns its run record.
// @Tags         Cron
// @Accept       json
// @Produce      json
// @Param        request body handlers.TriggerJobRequest true "Job to run"
// @Success      200  {object}  handlers.RespOK
// @Failure      404  {object}  handlers.RespOK
// @Router       /api/v1/cron/trigger [post]
func ApiTriggerJob(s *cron.Scheduler) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req TriggerJobRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, response.ErrorT[any](response.APIResponseCodeBadRequest, err.Error()))
			return
		}
		run, err := s.TriggerJob(c.Request.Context(), req.JobName)
		if err != nil {
			writeCronError(c, err)
			return
		}
		c.JSON(http.StatusOK, response.OKT(run))
	}
}

// @Summary      Job status
// @Description  Every registered job with its ticker state, most recent run, and 7-day statistics.
// @Tags         Cron
// @Produce      json
// @Success      200  {object}  handlers.RespOK
// @Router       /api/v1/cron/status [get]
func ApiCronStatus(s *cron.Scheduler) gin.HandlerFunc {
	return func(c *gin.Context) {
		statuses, err := s.Status(c.Request.Context())
		if err != nil {
			writeCronError(c, err)
			return
		}
		weekly, err := s.JobStatistics(c.Request.Context(), 7)
		if err != nil {
			writeCronError(c, err)
			return
		}
		c.JSON(http.StatusOK, response.OKT(gin.H{
			"jobs":              statuses,
			"weekly_statistics": weekly,
		}))
	}
}

// @Summary      Job history
// @Description  Returns the most recent runs of one job, newest first.
// @Tags         Cron
// @Produce      json
// @Param        name  path  string true  "Job name"
// @Param        limit query int    false "Max runs to return"
// @Success      200  {object}  handlers.RespOK
// @Failure      404  {object}  handlers.RespOK
// @Router       /api/v1/cron/jobs/{name}/history [get]
func ApiJobHistory(s *cron.Scheduler) gin.HandlerFunc {
	return func(c *gin.Context) {
		limit, _ := strconv.Atoi(c.Query("limit"))
		runs, err := s.JobHistory(c.Request.Context(), c.Param("name"), limit)
		if err != nil {
			writeCronError(c, err)
			return
		}
		c.JSON(http.StatusOK, response.OKT(runs))
	}
}

// @Summary      Job statistics
// @Description  Aggregates run outcomes per job over a trailing window of days.
// @Tags         Cron
// @Produce      json
// @Param        days query int false "Window in days"
// @Success      200  {object}  handlers.RespOK
// @Router       /api/v1/cron/statistics [get]
func ApiJobStatistics(s *cron.Scheduler) gin.HandlerFunc {
	return func(c *gin.Context) {
		days, _ := strconv.Atoi(c.Query("days"))
		stats, err := s.JobStatistics(c.Request.Context(), days)
		if err != nil {
			writeCronError(c, err)
			return
		}
		c.JSON(http.StatusOK, response.OKT(stats))
	}
}

// @Summary      Job health
// @Description  Health verdict per job; 503 when any running job is unhealthy.
// @Tags         Cron
// @Produce      json
// @Success      200  {object}  handlers.RespOK
// @Failure      503  {object}  handlers.RespOK
// @Router       /api/v1/cron/health [get]
func ApiCronHealth(s *cron.Scheduler) gin.HandlerFunc {
	return func(c *gin.Context) {
		checks, healthy, err := s.HealthCheck(c.Request.Context())
		if err != nil {
			writeCronError(c, err)
			return
		}
		if !healthy {
			c.JSON(http.StatusServiceUnavailable, response.ErrorT(response.APIResponseCodeError, checks))
			return
		}
		c.JSON(http.StatusOK, response.OKT(checks))
	}
}

// @Summary      Start job
// @Tags         Cron
// @Produce      json
// @Param        name path string true "Job name"
// @Success      200  {object}  handlers.RespOK
// @Failure      404  {object}  handlers.RespOK
// @Router       /api/v1/cron/jobs/{name}/start [post]
func ApiStartJob(s *cron.Scheduler) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := s.StartJob(c.Param("name")); err != nil {
			writeCronError(c, err)
			return
		}
		c.JSON(http.StatusOK, response.OKT(gin.H{"started": c.Param("name")}))
	}
}

// @Summary      Stop job
// @Tags         Cron
// @Produce      json
// @Param        name path string true "Job name"
// @Success      200  {object}  handlers.RespOK
// @Failure      404  {object}  handlers.RespOK
// @Router       /api/v1/cron/jobs/{name}/stop [post]
func ApiStopJob(s *cron.Scheduler) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := s.StopJob(c.Param("name")); err != nil {
			writeCronError(c, err)
			return
		}
		c.JSON(http.StatusOK, response.OKT(gin.H{"stopped": c.Param("name")}))
	}
}

func RegisterCronRoutes(r gin.IRouter, s *cron.Scheduler) {
	r.POST("/cron/trigger", ApiTriggerJob(s))
	r.GET("/cron/status", ApiCronStatus(s))
	r.GET("/cron/statistics", ApiJobStatistics(s))
	r.GET("/cron/health", ApiCronHealth(s))
	r.GET("/cron/jobs/:name/history", ApiJobHistory(s))
	r.POST("/cron/jobs/:name/start", ApiStartJob(s))
	r.POST("/cron/jobs/:name/stop", ApiStopJob(s))
}
