package handlers

import (
	"net/http"

	"go-consign/internal/consignment"

	"github.com/gin-gonic/gin"
)

// ConsignmentHandler exposes the bag lifecycle over HTTP.
type ConsignmentHandler struct {
	svc *consignment.Service
}

func NewConsignmentHandler(svc *consignment.Service) *ConsignmentHandler {
	return &ConsignmentHandler{svc: svc}
}

type ScanReturnRequest struct {
	Barcode string `json:"barcode" validate:"required"`
}

type AdjustReturnRequest struct {
	Delta int `json:"delta" validate:"required"`
}

// Create - POST /api/consignments
func (h *ConsignmentHandler) Create(c *gin.Context) {
	var req consignment.CreateInput
	if !bindAndValidate(c, &req) {
		return
	}
	req.CreatedBy = currentUser(c)

	bag, err := h.svc.Create(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, bag)
}

// List - GET /api/consignments?status=&reseller_id=&client_id=&page=&limit=
func (h *ConsignmentHandler) List(c *gin.Context) {
	var f consignment.Filter
	if err := c.ShouldBindQuery(&f); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid filter"})
		return
	}

	bags, total, err := h.svc.List(c.Request.Context(), f)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": bags, "total": total})
}

// Get - GET /api/consignments/:id
func (h *ConsignmentHandler) Get(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	bag, err := h.svc.Get(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, bag)
}

// Preview - GET /api/consignments/:id/preview
func (h *ConsignmentHandler) Preview(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	summary, err := h.svc.Preview(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}

// ScanReturn - POST /api/consignments/:id/returns/scan
func (h *ConsignmentHandler) ScanReturn(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var req ScanReturnRequest
	if !bindAndValidate(c, &req) {
		return
	}

	res, err := h.svc.ScanReturn(c.Request.Context(), id, req.Barcode)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// AdjustReturn - PATCH /api/consignments/:id/items/:itemId/returned
func (h *ConsignmentHandler) AdjustReturn(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	itemID, ok := parseID(c, "itemId")
	if !ok {
		return
	}
	var req AdjustReturnRequest
	if !bindAndValidate(c, &req) {
		return
	}

	res, err := h.svc.AdjustReturn(c.Request.Context(), id, itemID, req.Delta)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// Close - POST /api/consignments/:id/close
// Repeating the call returns the stored settlement with already_closed=true.
func (h *ConsignmentHandler) Close(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	res, err := h.svc.Close(c.Request.Context(), id, currentUser(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}
