package database

import (
	"context"
	"time"

	"go-consign/internal/models"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// SettlementReport sums the snapshots of bags closed within a period
type SettlementReport struct {
	Start           time.Time       `json:"start"`
	End             time.Time       `json:"end"`
	ClosedBags      int64           `json:"closed_bags"`
	TotalSold       decimal.Decimal `json:"total_sold"`
	TotalCommission decimal.Decimal `json:"total_commission"`
	TotalNet        decimal.Decimal `json:"total_net"`
}

// GetSettlementReport totals bags closed in [start, end]
func GetSettlementReport(ctx context.Context, db *gorm.DB, start, end time.Time) (*SettlementReport, error) {
	var bags []models.Consignment
	err := db.WithContext(ctx).
		Select("id", "total_sold", "commission", "net_to_store").
		Where("status = ? AND closed_at BETWEEN ? AND ?", models.StatusClosed, start, end).
		Find(&bags).Error
	if err != nil {
		return nil, err
	}

	// summed in Go so the decimal precision does not depend on the driver
	report := &SettlementReport{
		Start:           start,
		End:             end,
		ClosedBags:      int64(len(bags)),
		TotalSold:       decimal.Zero,
		TotalCommission: decimal.Zero,
		TotalNet:        decimal.Zero,
	}
	for _, b := range bags {
		report.TotalSold = report.TotalSold.Add(b.TotalSold)
		report.TotalCommission = report.TotalCommission.Add(b.Commission)
		report.TotalNet = report.TotalNet.Add(b.NetToStore)
	}
	return report, nil
}

// ParseReportRange reads YYYY-MM-DD bounds; the end day is inclusive.
func ParseReportRange(startStr, endStr string) (time.Time, time.Time, error) {
	start, err := time.ParseInLocation("2006-01-02", startStr, time.Local)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	end, err := time.ParseInLocation("2006-01-02", endStr, time.Local)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	end = end.Add(24*time.Hour - time.Nanosecond)
	return start, end, nil
}

// InventoryRow is a flat view of one variant's stock
type InventoryRow struct {
	VariantID uint            `json:"variant_id"`
	Title     string          `json:"title"`
	Size      string          `json:"size"`
	Color     string          `json:"color"`
	Barcode   string          `json:"barcode"`
	Stock     int             `json:"stock"`
	Price     decimal.Decimal `json:"price"`
	CostPrice decimal.Decimal `json:"cost_price"`
	Category  string          `json:"category"`
}

// GetInventory lists every variant of active products
func GetInventory(ctx context.Context, db *gorm.DB) ([]InventoryRow, error) {
	var variants []models.ProductVariant
	err := db.WithContext(ctx).
		Joins("Product").
		Where("Product.active = ?", true).
		Order("Product.title, product_variants.size, product_variants.color").
		Find(&variants).Error
	if err != nil {
		return nil, err
	}

	rows := make([]InventoryRow, 0, len(variants))
	for _, v := range variants {
		row := InventoryRow{
			VariantID: v.ID,
			Size:      v.Size,
			Color:     v.Color,
			Barcode:   v.Barcode,
			Stock:     v.StockQuantity,
		}
		if v.Product != nil {
			row.Title = v.Product.Title
			row.Price = v.Product.BasePrice
			row.CostPrice = v.Product.CostPrice
			row.Category = v.Product.Category
		}
		rows = append(rows, row)
	}
	return rows, nil
}
