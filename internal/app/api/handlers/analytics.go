package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/tunehaus/backstage/internal/app/service/analytics"
	"github.com/tunehaus/backstage/pkg/response"
)

func periodDays(c *gin.Context) int {
	days, _ := strconv.Atoi(c.Query("period"))
	return days
}

// @Summary      Artist earnings overview
// @Description  Sums the artist's earnings across their communities over a trailing window, per currency.
// @Tags         Analytics
// @Produce      json
// @Param        artistId path  string true  "Artist ID"
// @Param        period   query int    false "Window in days"
// @Success      200  {object}  handlers.RespOK
// @Router       /api/v1/analytics/earnings/{artistId} [get]
func ApiEarningsOverview(svc *analytics.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		report, err := svc.EarningsOverview(c.Request.Context(), c.Param("artistId"), periodDays(c))
		if err != nil {
			c.JSON(http.StatusInternalServerError, response.ErrorT[any](response.APIResponseCodeError, err.Error()))
			return
		}
		c.JSON(http.StatusOK, response.OKT(report))
	}
}

// @Summary      Community engagement
// @Description  Active members now plus joins, renewals, and churn over a trailing window.
// @Tags         Analytics
// @Produce      json
// @Param        communityId path  string true  "Community ID"
// @Param        period      query int    false "Window in days"
// @Success      200  {object}  handlers.RespOK
// @Router       /api/v1/analytics/community/{communityId} [get]
func ApiCommunityEngagement(svc *analytics.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		report, err := svc.CommunityEngagement(c.Request.Context(), c.Param("communityId"), periodDays(c))
		if err != nil {
			c.JSON(http.StatusInternalServerError, response.ErrorT[any](response.APIResponseCodeError, err.Error()))
			return
		}
		c.JSON(http.StatusOK, response.OKT(report))
	}
}

// @Summary      Top communities
// @Description  Ranks the artist's communities by earnings over a trailing window.
// @Tags         Analytics
// @Produce      json
// @Param        artistId path  string true  "Artist ID"
// @Param        period   query int    false "Window in days"
// @Param        limit    query int    false "Max communities"
// @Success      200  {object}  handlers.RespOK
// @Router       /api/v1/analytics/top-communities/{artistId} [get]
func ApiTopCommunities(svc *analytics.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		limit, _ := strconv.Atoi(c.Query("limit"))
		ranks, err := svc.TopCommunities(c.Request.Context(), c.Param("artistId"), periodDays(c), limit)
		if err != nil {
			c.JSON(http.StatusInternalServerError, response.ErrorT[any](response.APIResponseCodeError, err.Error()))
			return
		}
		c.JSON(http.StatusOK, response.OKT(ranks))
	}
}

// @Summary      Subscription trends
// @Description  Gap-free daily series of mints, renewals, and failures across the artist's communities.
// @Tags         Analytics
// @Produce      json
// @Param        artistId path  string true  "Artist ID"
// @Param        period   query int    false "Window in days"
// @Success      200  {object}  handlers.RespOK
// @Router       /api/v1/analytics/trends/{artistId} [get]
func ApiSubscriptionTrends(svc *analytics.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		points, err := svc.SubscriptionTrends(c.Request.Context(), c.Param("artistId"), periodDays(c))
		if err != nil {
			c.JSON(http.StatusInternalServerError, response.ErrorT[any](response.APIResponseCodeError, err.Error()))
			return
		}
		c.JSON(http.StatusOK, response.OKT(points))
	}
}

func RegisterAnalyticsRoutes(r gin.IRouter, svc *analytics.Service) {
	r.GET("/analytics/earnings/:artistId", ApiEarningsOverview(svc))
	r.GET("/analytics/community/:communityId", ApiCommunityEngagement(svc))
	r.GET("/analytics/top-communities/:artistId", ApiTopCommunities(svc))
	r.GET("/analytics/trends/:artistId", ApiSubscriptionTrends(svc))
}
