package handlers

import (
	"net/http"
	"sort"
	"strings"
	"time"

	"go-consign/internal/database"
	"go-consign/internal/models"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

// DashboardData is what the home screen shows
type DashboardData struct {
	MoneyOnStreet  decimal.Decimal `json:"money_on_street"`
	ItemsOnStreet  int             `json:"items_on_street"`
	ActiveBags     int             `json:"active_bags"`
	ResellersCount int64           `json:"resellers_count"`
	TopResellers   []TopBag        `json:"top_resellers"`
	RecentClosed   []RecentClosed  `json:"recent_closed"`
}

// TopBag is one bar of the "biggest open bags" chart
type TopBag struct {
	ConsignmentID uint            `json:"consignment_id"`
	Name          string          `json:"name"`
	Value         decimal.Decimal `json:"value"`
}

type RecentClosed struct {
	ID           uint            `json:"id"`
	ResellerName string          `json:"reseller_name"`
	ClosedAt     *time.Time      `json:"closed_at"`
	TotalSold    decimal.Decimal `json:"total_sold"`
	NetToStore   decimal.Decimal `json:"net_to_store"`
}

// --- GET: /api/dashboard ---
func GetDashboard(c *gin.Context) {
	db := database.DB.WithContext(c.Request.Context())
	data := DashboardData{
		MoneyOnStreet: decimal.Zero,
		TopResellers:  []TopBag{},
		RecentClosed:  []RecentClosed{},
	}

	// 1. Open bags: money and items still with resellers
	var open []models.Consignment
	err := db.Select("id", "reseller_id", "total_items", "total_value").
		Where("status = ?", models.StatusOpen).
		Preload("Reseller", models.WithDeleted).
		Find(&open).Error
	if err != nil {
		respondError(c, err)
		return
	}
	data.ActiveBags = len(open)
	for _, b := range open {
		data.MoneyOnStreet = data.MoneyOnStreet.Add(b.TotalValue)
		data.ItemsOnStreet += b.TotalItems
	}

	// 2. Top 5 open bags by value
	sort.SliceStable(open, func(i, j int) bool {
		return open[i].TotalValue.GreaterThan(open[j].TotalValue)
	})
	for i := 0; i < len(open) && i < 5; i++ {
		data.TopResellers = append(data.TopResellers, TopBag{
			ConsignmentID: open[i].ID,
			Name:          firstName(open[i].Reseller),
			Value:         open[i].TotalValue,
		})
	}

	// 3. Active resellers
	if err := db.Model(&models.Reseller{}).Count(&data.ResellersCount).Error; err != nil {
		respondError(c, err)
		return
	}

	// 4. Last four settlements
	var closed []models.Consignment
	err = db.Where("status = ?", models.StatusClosed).
		Preload("Reseller", models.WithDeleted).
		Order("closed_at DESC").
		Limit(4).
		Find(&closed).Error
	if err != nil {
		respondError(c, err)
		return
	}
	for _, b := range closed {
		name := ""
		if b.Reseller != nil {
			name = b.Reseller.Name
		}
		data.RecentClosed = append(data.RecentClosed, RecentClosed{
			ID:           b.ID,
			ResellerName: name,
			ClosedAt:     b.ClosedAt,
			TotalSold:    b.TotalSold,
			NetToStore:   b.NetToStore,
		})
	}

	c.JSON(http.StatusOK, data)
}

func firstName(r *models.Reseller) string {
	if r == nil {
		return "?"
	}
	if fields := strings.Fields(r.Name); len(fields) > 0 {
		return fields[0]
	}
	return r.Name
}
