package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/tunehaus/backstage/internal/app/service/membership"
	"github.com/tunehaus/backstage/pkg/response"
	"github.com/tunehaus/backstage/pkg/types"
)

type MintMembershipRequest struct {
	UserEmail   string `json:"user_email" binding:"required,email"`
	CommunityID string `json:"community_id" binding:"required"`
}

type RenewMembershipRequest struct {
	UserEmail    string `json:"user_email" binding:"required,email"`
	MembershipID string `json:"membership_id" binding:"required"`
}

// writeEngineError maps engine errors onto HTTP statuses and envelope codes.
func writeEngineError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, membership.ErrUserNotFound),
		errors.Is(err, membership.ErrCommunityNotFound),
		errors.Is(err, membership.ErrMembershipNotFound),
		errors.Is(err, membership.ErrCollectionNotFound),
		errors.Is(err, membership.ErrNoActiveCollection):
		c.JSON(http.StatusNotFound, response.ErrorT[any](response.APIResponseCodeNotFound, err.Error()))
	case errors.Is(err, membership.ErrAlreadyMember),
		errors.Is(err, membership.ErrCollectionSoldOut),
		errors.Is(err, membership.ErrNotMembershipOwner):
		c.JSON(http.StatusConflict, response.ErrorT[any](response.APIResponseCodeConflict, err.Error()))
	case errors.Is(err, membership.ErrLedgerMint),
		errors.Is(err, membership.ErrLedgerRenew):
		c.JSON(http.StatusBadGateway, response.ErrorT[any](response.APIResponseCodeUpstream, err.Error()))
	default:
		c.JSON(http.StatusInternalServerError, response.ErrorT[any](response.APIResponseCodeError, err.Error()))
	}
}

// @Summary      Mint community access
// @Description  Mints a membership NFT for the user and opens a billing period in the community.
// @Tags         Membership
// @Accept       json
// @Produce      json
// @Param        request body handlers.MintMembershipRequest true "Mint request"
// @Success      200  {object}  handlers.RespMembership
// @Failure      404  {object}  handlers.RespOK
// @Failure      409  {object}  handlers.RespOK
// @Failure      502  {object}  handlers.RespOK
// @Router       /api/v1/memberships/mint [post]
func ApiMintMembership(engine membership.Engine) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req MintMembershipRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, response.ErrorT[any](response.APIResponseCodeBadRequest, err.Error()))
			return
		}
		m, err := engine.MintCommunityAccess(c.Request.Context(), req.UserEmail, req.CommunityID)
		if err != nil {
			writeEngineError(c, err)
			return
		}
		c.JSON(http.StatusOK, response.OKT(m))
	}
}

// @Summary      Renew membership
// @Description  Extends the membership by one billing period; early renewal stacks on the unspent period.
// @Tags         Membership
// @Accept       json
// @Produce      json
// @Param        request body handlers.RenewMembershipRequest true "Renew request"
// @Success      200  {object}  handlers.RespMembership
// @Failure      404  {object}  handlers.RespOK
// @Failure      409  {object}  handlers.RespOK
// @Failure      502  {object}  handlers.RespOK
// @Router       /api/v1/memberships/renew [post]
func ApiRenewMembership(engine membership.Engine) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req RenewMembershipRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, response.ErrorT[any](response.APIResponseCodeBadRequest, err.Error()))
			return
		}
		m, err := engine.RenewMembership(c.Request.Context(), req.UserEmail, req.MembershipID)
		if err != nil {
			writeEngineError(c, err)
			return
		}
		c.JSON(http.StatusOK, response.OKT(m))
	}
}

// @Summary      Check community access
// @Description  Reports whether the user currently has access to the community. Read-only.
// @Tags         Membership
// @Produce      json
// @Param        userId      path  string  true  "User ID"
// @Param        communityId path  string  true  "Community ID"
// @Success      200  {object}  handlers.RespAccessInfo
// @Router       /api/v1/access/{userId}/{communityId} [get]
func ApiCheckAccess(engine membership.Engine) gin.HandlerFunc {
	return func(c *gin.Context) {
		info, err := engine.CheckCommunityAccess(c.Request.Context(), c.Param("userId"), c.Param("communityId"))
		if err != nil {
			writeEngineError(c, err)
			return
		}
		c.JSON(http.StatusOK, response.OKT(info))
	}
}

// @Summary      List user memberships
// @Description  Lists the user's memberships, optionally filtered by status (active, expired, all).
// @Tags         Membership
// @Produce      json
// @Param        userId path  string false "User ID"
// @Param        status query string false "Status filter" Enums(active, expired, all)
// @Success      200  {object}  handlers.RespMemberships
// @Router       /api/v1/memberships/{userId} [get]
func ApiListMemberships(engine membership.Engine) gin.HandlerFunc {
	return func(c *gin.Context) {
		status, err := types.ParseMembershipStatusFilter(c.Query("status"))
		if err != nil {
			c.JSON(http.StatusBadRequest, response.ErrorT[any](response.APIResponseCodeBadRequest, err.Error()))
			return
		}
		items, err := engine.GetUserMemberships(c.Request.Context(), c.Param("userId"), status)
		if err != nil {
			writeEngineError(c, err)
			return
		}
		c.JSON(http.StatusOK, response.OKT(items))
	}
}

// @Summary      List user transactions
// @Description  Pages through the user's membership transaction log, newest first.
// @Tags         Membership
// @Produce      json
// @Param        userId path  string false "User ID"
// @Param        type   query string false "Transaction type" Enums(mint, renewal)
// @Param        status query string false "Transaction status" Enums(confirmed, failed)
// @Param        limit  query int    false "Page size"
// @Param        offset query int    false "Page offset"
// @Success      200  {object}  handlers.RespTransactions
// @Router       /api/v1/transactions/{userId} [get]
func ApiListTransactions(engine membership.Engine) gin.HandlerFunc {
	return func(c *gin.Context) {
		filter := &membership.TransactionFilter{
			Type:   types.TransactionType(c.Query("type")),
			Status: types.TransactionStatus(c.Query("status")),
		}
		filter.Limit, _ = strconv.Atoi(c.Query("limit"))
		filter.Offset, _ = strconv.Atoi(c.Query("offset"))

		rows, total, err := engine.GetUserTransactionHistory(c.Request.Context(), c.Param("userId"), filter)
		if err != nil {
			writeEngineError(c, err)
			return
		}
		c.JSON(http.StatusOK, response.OKT(gin.H{"items": rows, "total": total}))
	}
}

func RegisterMembershipRoutes(r gin.IRouter, engine membership.Engine) {
	r.POST("/memberships/mint", ApiMintMembership(engine))
	r.POST("/memberships/renew", ApiRenewMembership(engine))
	r.GET("/memberships/:userId", ApiListMemberships(engine))
	r.GET("/access/:userId/:communityId", ApiCheckAccess(engine))
	r.GET("/transactions/:userId", ApiListTransactions(engine))
}
