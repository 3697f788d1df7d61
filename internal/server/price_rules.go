package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	priceruledomain "github.com/smallbiznis/pricerules/internal/pricerule/domain"
	"github.com/smallbiznis/pricerules/pkg/db/pagination"
)

func (s *Server) CreatePriceRule(c *gin.Context) {
	var req priceruledomain.CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.ruleSvc.Create(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": resp})
}

type listPriceRulesQuery struct {
	pagination.Page
	RuleType        string `form:"rule_type"`
	Status          string `form:"status"`
	CalculationType string `form:"calculation_type"`
	ItemID          string `form:"item_id"`
	CategoryID      string `form:"category_id"`
	SupplierID      string `form:"supplier_id"`
	PartnerID       string `form:"partner_id"`
	Search          string `form:"search"`
	SortBy          string `form:"sort_by"`
	OrderBy         string `form:"order_by"`
}

func (s *Server) ListPriceRules(c *gin.Context) {
	var query listPriceRulesQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.ruleSvc.List(c.Request.Context(), priceruledomain.ListRequest{
		Page:            query.Page,
		RuleType:        strings.TrimSpace(query.RuleType),
		Status:          strings.TrimSpace(query.Status),
		CalculationType: strings.TrimSpace(query.CalculationType),
		ItemID:          strings.TrimSpace(query.ItemID),
		CategoryID:      strings.TrimSpace(query.CategoryID),
		SupplierID:      strings.TrimSpace(query.SupplierID),
		PartnerID:       strings.TrimSpace(query.PartnerID),
		Search:          strings.TrimSpace(query.Search),
		SortBy:          strings.TrimSpace(query.SortBy),
		OrderBy:         strings.TrimSpace(query.OrderBy),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp.Data, "meta": resp.Meta})
}

func (s *Server) GetApplicableRules(c *gin.Context) {
	var query struct {
		ItemID     string `form:"item_id"`
		CategoryID string `form:"category_id"`
		SupplierID string `form:"supplier_id"`
		PartnerID  string `form:"partner_id"`
		Quantity   string `form:"quantity"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	quantity, err := parseQuantity(query.Quantity)
	if err != nil {
		AbortWithError(c, newValidationError("quantity", "invalid_quantity", "invalid quantity"))
		return
	}
	req := priceruledomain.ApplicableRequest{
		ItemID:     strings.TrimSpace(query.ItemID),
		CategoryID: strings.TrimSpace(query.CategoryID),
		SupplierID: strings.TrimSpace(query.SupplierID),
		PartnerID:  strings.TrimSpace(query.PartnerID),
		Quantity:   quantity,
	}

	resp, err := s.ruleSvc.GetApplicableRules(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) CalculatePrice(c *gin.Context) {
	var req priceruledomain.CalculateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.ruleSvc.Calculate(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) GetPriceRule(c *gin.Context) {
	id := strings.TrimSpace(c.Param("id"))
	resp, err := s.ruleSvc.Get(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) UpdatePriceRule(c *gin.Context) {
	var req priceruledomain.UpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	req.ID = strings.TrimSpace(c.Param("id"))

	resp, err := s.ruleSvc.Update(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) DeletePriceRule(c *gin.Context) {
	id := strings.TrimSpace(c.Param("id"))
	if err := s.ruleSvc.Delete(c.Request.Context(), id); err != nil {
		AbortWithError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

func (s *Server) RedeemPromotion(c *gin.Context) {
	id := strings.TrimSpace(c.Param("id"))
	resp, err := s.ruleSvc.RedeemPromotion(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}
