package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tunehaus/backstage/internal/app/service/membership"
	"github.com/tunehaus/backstage/pkg/response"
)

type CreateCollectionRequest struct {
	PricePerMonth   int64  `json:"price_per_month" binding:"required,gt=0"`
	Currency        string `json:"currency" binding:"required"`
	MaxSupply       *int64 `json:"max_supply,omitempty"`
	ContractAddress string `json:"contract_address" binding:"required"`
}

// @Summary      Create collection
// @Description  Registers a new collection as the community's paid tier and retires the current active one.
// @Tags         Admin
// @Accept       json
// @Produce      json
// @Param        communityId path string true "Community ID"
// @Param        request body handlers.CreateCollectionRequest true "Collection parameters"
// @Success      200  {object}  handlers.RespOK
// @Failure      404  {object}  handlers.RespOK
// @Router       /api/v1/admin/communities/{communityId}/collections [post]
func ApiCreateCollection(engine membership.Engine) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req CreateCollectionRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, response.ErrorT[any](response.APIResponseCodeBadRequest, err.Error()))
			return
		}
		collection, err := engine.CreateCollection(c.Request.Context(), c.Param("communityId"), &membership.CollectionParams{
			PricePerMonth:   req.PricePerMonth,
			Currency:        req.Currency,
			MaxSupply:       req.MaxSupply,
			ContractAddress: req.ContractAddress,
		})
		if err != nil {
			writeEngineError(c, err)
			return
		}
		c.JSON(http.StatusOK, response.OKT(collection))
	}
}

// @Summary      Deactivate collection
// @Description  Stops new mints against the collection; existing memberships keep renewing.
// @Tags         Admin
// @Produce      json
// @Param        collectionId path string true "Collection ID"
// @Success      200  {object}  handlers.RespOK
// @Failure      404  {object}  handlers.RespOK
// @Router       /api/v1/admin/collections/{collectionId} [delete]
func ApiDeactivateCollection(engine membership.Engine) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := engine.DeactivateCollection(c.Request.Context(), c.Param("collectionId")); err != nil {
			writeEngineError(c, err)
			return
		}
		c.JSON(http.StatusOK, response.OKT(gin.H{"deactivated": c.Param("collectionId")}))
	}
}

// @Summary      Scan transactions
// @Description  Admin view over the whole transaction log with field filters, sorting, and paging.
// @Tags         Admin
// @Accept       json
// @Produce      json
// @Param        request body membership.ScanTransactionsRequest true "Filters and paging"
// @Success      200  {object}  handlers.RespOK
// @Router       /api/v1/admin/transactions [post]
func ApiScanTransactions(engine membership.Engine) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req membership.ScanTransactionsRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, response.ErrorT[any](response.APIResponseCodeBadRequest, err.Error()))
			return
		}
		resp, err := engine.ScanTransactions(c.Request.Context(), &req)
		if err != nil {
			writeEngineError(c, err)
			return
		}
		c.JSON(http.StatusOK, response.OKT(resp))
	}
}

func RegisterAdminRoutes(r gin.IRouter, engine membership.Engine) {
	r.POST("/communities/:communityId/collections", ApiCreateCollection(engine))
	r.DELETE("/collections/:collectionId", ApiDeactivateCollection(engine))
	r.POST("/transactions", ApiScanTransactions(engine))
}
