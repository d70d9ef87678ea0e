package handlers

import (
	"net/http"
	"sort"
	"time"

	"go-consign/internal/database"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

// --- GET: /api/reports/settlements?start=YYYY-MM-DD&end=YYYY-MM-DD ---
// Defaults to the current month.
func GetSettlementReport(c *gin.Context) {
	now := time.Now()
	start := c.DefaultQuery("start", time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.Local).Format("2006-01-02"))
	end := c.DefaultQuery("end", now.Format("2006-01-02"))

	from, to, err := database.ParseReportRange(start, end)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Dates must use YYYY-MM-DD"})
		return
	}
	if to.Before(from) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "end must not be before start"})
		return
	}

	report, err := database.GetSettlementReport(c.Request.Context(), database.DB, from, to)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

// --- DATA STRUCTURES FOR VALUATION REPORT ---

// ValuationItem is one variant line of the valuation
type ValuationItem struct {
	Name      string          `json:"name"`
	Barcode   string          `json:"barcode"`
	Quantity  int             `json:"quantity"`
	CostPrice decimal.Decimal `json:"cost_price"`
	TotalCost decimal.Decimal `json:"total_cost"`
}

// CategoryGroup is one category block (e.g. "VESTIDOS")
type CategoryGroup struct {
	CategoryName string          `json:"category_name"`
	Items        []ValuationItem `json:"items"`
	Subtotal     decimal.Decimal `json:"subtotal"`
}

type ValuationResponse struct {
	Categories []CategoryGroup `json:"categories"`
	GrandTotal decimal.Decimal `json:"grand_total"`
}

// --- GET: /api/reports/valuation ---
// GetStockValuation prices the stock on hand at cost, grouped by category
func GetStockValuation(c *gin.Context) {
	rows, err := database.GetInventory(c.Request.Context(), database.DB)
	if err != nil {
		respondError(c, err)
		return
	}

	grandTotal := decimal.Zero
	groupedMap := make(map[string]*CategoryGroup)
	for _, r := range rows {
		catName := r.Category
		if catName == "" {
			catName = "Uncategorized"
		}
		group, exists := groupedMap[catName]
		if !exists {
			group = &CategoryGroup{CategoryName: catName, Items: []ValuationItem{}, Subtotal: decimal.Zero}
			groupedMap[catName] = group
		}

		itemTotal := r.CostPrice.Mul(decimal.NewFromInt(int64(r.Stock)))
		group.Items = append(group.Items, ValuationItem{
			Name:      variantLabel(r),
			Barcode:   r.Barcode,
			Quantity:  r.Stock,
			CostPrice: r.CostPrice,
			TotalCost: itemTotal,
		})
		group.Subtotal = group.Subtotal.Add(itemTotal)
		grandTotal = grandTotal.Add(itemTotal)
	}

	response := ValuationResponse{Categories: []CategoryGroup{}, GrandTotal: grandTotal}
	for _, group := range groupedMap {
		response.Categories = append(response.Categories, *group)
	}
	sort.Slice(response.Categories, func(i, j int) bool {
		return response.Categories[i].CategoryName < response.Categories[j].CategoryName
	})

	c.JSON(http.StatusOK, response)
}

func variantLabel(r database.InventoryRow) string {
	label := r.Title
	if r.Size != "" {
		label += " " + r.Size
	}
	if r.Color != "" {
		label += " " + r.Color
	}
	return label
}
