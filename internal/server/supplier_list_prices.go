package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	priceruledomain "github.com/smallbiznis/pricerules/internal/pricerule/domain"
)

type upsertSupplierListPriceRequest struct {
	SupplierID string           `json:"supplier_id"`
	ItemID     string           `json:"item_id"`
	Amount     *decimal.Decimal `json:"amount"`
}

func (s *Server) UpsertSupplierListPrice(c *gin.Context) {
	var req upsertSupplierListPriceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	if req.Amount == nil {
		AbortWithError(c, newValidationError("amount", "required", "amount is required"))
		return
	}

	resp, err := s.ruleSvc.SetSupplierListPrice(c.Request.Context(), priceruledomain.SupplierListPriceRequest{
		SupplierID: strings.TrimSpace(req.SupplierID),
		ItemID:     strings.TrimSpace(req.ItemID),
		Amount:     *req.Amount,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}
