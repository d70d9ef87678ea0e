// Package inventory applies stock changes to product variants. Every change is
// a guarded atomic update plus a StockMovement row, so stock never goes
// negative and concurrent writers cannot lose each other's increments.
package inventory

import (
	"context"
	"errors"
	"fmt"

	"go-consign/internal/models"

	"gorm.io/gorm"
)

var (
	ErrVariantNotFound   = errors.New("product variant not found")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrZeroDelta         = errors.New("stock change cannot be zero")
)

// Change describes one stock movement to apply.
type Change struct {
	VariantID     uint
	Delta         int // positive = in, negative = out
	Kind          string
	ConsignmentID *uint
	Reason        string
}

// Apply changes a variant's stock inside tx and records the movement.
// Callers own the transaction.
func Apply(tx *gorm.DB, ch Change) (*models.StockMovement, error) {
	if ch.Delta == 0 {
		return nil, ErrZeroDelta
	}

	var exists int64
	if err := tx.Model(&models.ProductVariant{}).Where("id = ?", ch.VariantID).Count(&exists).Error; err != nil {
		return nil, err
	}
	if exists == 0 {
		return nil, fmt.Errorf("%w: id %d", ErrVariantNotFound, ch.VariantID)
	}

	q := tx.Model(&models.ProductVariant{}).Where("id = ?", ch.VariantID)
	if ch.Delta < 0 {
		q = q.Where("stock_quantity >= ?", -ch.Delta)
	}
	res := q.Update("stock_quantity", gorm.Expr("stock_quantity + ?", ch.Delta))
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, fmt.Errorf("%w: variant %d", ErrInsufficientStock, ch.VariantID)
	}

	var v models.ProductVariant
	if err := tx.Select("id", "stock_quantity").First(&v, ch.VariantID).Error; err != nil {
		return nil, err
	}

	m := &models.StockMovement{
		ProductVariantID: ch.VariantID,
		Kind:             ch.Kind,
		Quantity:         ch.Delta,
		StockBefore:      v.StockQuantity - ch.Delta,
		StockAfter:       v.StockQuantity,
		ConsignmentID:    ch.ConsignmentID,
		Reason:           ch.Reason,
	}
	if err := tx.Create(m).Error; err != nil {
		return nil, err
	}
	return m, nil
}

// Adjust runs a single manual change in its own transaction.
func Adjust(ctx context.Context, db *gorm.DB, ch Change) (*models.StockMovement, error) {
	var m *models.StockMovement
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		m, err = Apply(tx, ch)
		return err
	})
	return m, err
}

// MovementFilter narrows ListMovements.
type MovementFilter struct {
	VariantID     uint   `form:"variant_id"`
	ConsignmentID uint   `form:"consignment_id"`
	Kind          string `form:"kind"`
	Page          int    `form:"page"`
	Limit         int    `form:"limit"`
}

// ListMovements returns movements newest first, with the total match count.
func ListMovements(ctx context.Context, db *gorm.DB, f MovementFilter) ([]models.StockMovement, int64, error) {
	q := db.WithContext(ctx).Model(&models.StockMovement{})
	if f.VariantID != 0 {
		q = q.Where("product_variant_id = ?", f.VariantID)
	}
	if f.ConsignmentID != 0 {
		q = q.Where("consignment_id = ?", f.ConsignmentID)
	}
	if f.Kind != "" {
		q = q.Where("kind = ?", f.Kind)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	page, limit := f.Page, f.Limit
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 500 {
		limit = 100
	}

	var out []models.StockMovement
	err := q.Preload("ProductVariant").
		Order("created_at DESC, id DESC").
		Offset((page - 1) * limit).Limit(limit).
		Find(&out).Error
	return out, total, err
}
