package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"go-consign/internal/database"
	"go-consign/internal/inventory"
	"go-consign/internal/models"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type VariantRequest struct {
	ID            uint   `json:"id"`
	Size          string `json:"size" validate:"max=40"`
	Color         string `json:"color" validate:"max=40"`
	Barcode       string `json:"barcode" validate:"required,max=64"`
	StockQuantity int    `json:"stock_quantity" validate:"gte=0"`
}

type ProductRequest struct {
	Title       string           `json:"title" validate:"required,max=200"`
	Description *string          `json:"description"`
	Category    string           `json:"category" validate:"max=80"`
	BasePrice   decimal.Decimal  `json:"base_price" validate:"required,gt=0"`
	CostPrice   decimal.Decimal  `json:"cost_price" validate:"min=0"`
	Active      *bool            `json:"active"`
	Variants    []VariantRequest `json:"variants" validate:"dive"`
}

// --- GET: List products with their variants ---
func GetProducts(c *gin.Context) {
	offset, limit, pageNo := page(c, 50, 200)

	q := database.DB.WithContext(c.Request.Context()).Model(&models.Product{})
	if s := strings.TrimSpace(c.Query("q")); s != "" {
		q = q.Where("title LIKE ?", "%"+s+"%")
	}
	if cat := c.Query("category"); cat != "" {
		q = q.Where("category = ?", cat)
	}
	switch c.Query("active") {
	case "true":
		q = q.Where("active = ?", true)
	case "false":
		q = q.Where("active = ?", false)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		respondError(c, err)
		return
	}

	var products []models.Product
	if err := q.Preload("Variants").Order("title").Offset(offset).Limit(limit).Find(&products).Error; err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": products, "total": total, "page": pageNo})
}

// --- GET: One product ---
func GetProduct(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	var product models.Product
	if err := database.DB.WithContext(c.Request.Context()).Preload("Variants").First(&product, id).Error; err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, product)
}

// --- POST: Add a new product with its variants ---
func AddProduct(c *gin.Context) {
	var req ProductRequest
	if !bindAndValidate(c, &req) {
		return
	}
	if len(req.Variants) == 0 {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "validation failed", "fields": map[string]string{"variants": "min"}})
		return
	}

	product := models.Product{
		Title:       strings.TrimSpace(req.Title),
		Description: req.Description,
		Category:    strings.TrimSpace(req.Category),
		BasePrice:   req.BasePrice,
		CostPrice:   req.CostPrice,
		Active:      true,
	}
	for _, v := range req.Variants {
		product.Variants = append(product.Variants, models.ProductVariant{
			Size:          v.Size,
			Color:         v.Color,
			Barcode:       strings.TrimSpace(v.Barcode),
			StockQuantity: v.StockQuantity,
		})
	}

	err := database.DB.WithContext(c.Request.Context()).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&product).Error; err != nil {
			return err
		}
		// an explicit false survives the column default
		if req.Active != nil && !*req.Active {
			if err := tx.Model(&product).Update("active", false).Error; err != nil {
				return err
			}
			product.Active = false
		}
		return recordInitialStock(tx, product.Variants)
	})
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, product)
}

// --- PUT: Update product fields and upsert variants ---
// Variants with an id are edited, the rest are added. Stock of existing
// variants only moves through the stock endpoint.
func UpdateProduct(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	var req ProductRequest
	if !bindAndValidate(c, &req) {
		return
	}

	var product models.Product
	err := database.DB.WithContext(c.Request.Context()).Transaction(func(tx *gorm.DB) error {
		if err := tx.Preload("Variants").First(&product, id).Error; err != nil {
			return err
		}

		updates := map[string]interface{}{
			"title":       strings.TrimSpace(req.Title),
			"description": req.Description,
			"category":    strings.TrimSpace(req.Category),
			"base_price":  req.BasePrice,
			"cost_price":  req.CostPrice,
		}
		if req.Active != nil {
			updates["active"] = *req.Active
		}
		if err := tx.Model(&product).Updates(updates).Error; err != nil {
			return err
		}

		owned := make(map[uint]bool, len(product.Variants))
		for _, v := range product.Variants {
			owned[v.ID] = true
		}

		var added []models.ProductVariant
		for _, v := range req.Variants {
			if v.ID != 0 {
				if !owned[v.ID] {
					return fmt.Errorf("%w: variant %d does not belong to product %d", inventory.ErrVariantNotFound, v.ID, product.ID)
				}
				err := tx.Model(&models.ProductVariant{}).Where("id = ?", v.ID).Updates(map[string]interface{}{
					"size":    v.Size,
					"color":   v.Color,
					"barcode": strings.TrimSpace(v.Barcode),
				}).Error
				if err != nil {
					return err
				}
				continue
			}
			added = append(added, models.ProductVariant{
				ProductID:     product.ID,
				Size:          v.Size,
				Color:         v.Color,
				Barcode:       strings.TrimSpace(v.Barcode),
				StockQuantity: v.StockQuantity,
			})
		}
		if len(added) > 0 {
			if err := tx.Create(&added).Error; err != nil {
				return err
			}
			if err := recordInitialStock(tx, added); err != nil {
				return err
			}
		}

		product = models.Product{}
		return tx.Preload("Variants").First(&product, id).Error
	})
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Product updated successfully", "product": product})
}

// --- DELETE: Deactivate a product ---
// Rows stay because consignment items point at their variants.
func DeleteProduct(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	res := database.DB.WithContext(c.Request.Context()).Model(&models.Product{}).Where("id = ?", id).Update("active", false)
	if res.Error != nil {
		respondError(c, res.Error)
		return
	}
	if res.RowsAffected == 0 {
		// already inactive still counts as found
		var n int64
		if err := database.DB.WithContext(c.Request.Context()).Model(&models.Product{}).Where("id = ?", id).Count(&n).Error; err != nil {
			respondError(c, err)
			return
		}
		if n == 0 {
			c.JSON(http.StatusNotFound, gin.H{"error": "Product not found"})
			return
		}
	}

	c.JSON(http.StatusOK, gin.H{"message": "Product deactivated"})
}

// --- GET: Look a variant up by barcode (bag building screen) ---
func ScanVariant(c *gin.Context) {
	barcode := strings.TrimSpace(c.Param("barcode"))

	var v models.ProductVariant
	err := database.DB.WithContext(c.Request.Context()).Preload("Product").Where("barcode = ?", barcode).First(&v).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Product not found"})
		return
	}
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"variant":  v,
		"in_stock": v.StockQuantity > 0 && v.Product != nil && v.Product.Active,
	})
}

type StockAdjustRequest struct {
	Delta  int    `json:"delta" validate:"required"`
	Reason string `json:"reason" validate:"max=255"`
}

// --- PATCH: Manual stock correction ---
func AdjustVariantStock(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	var req StockAdjustRequest
	if !bindAndValidate(c, &req) {
		return
	}

	m, err := inventory.Adjust(c.Request.Context(), database.DB, inventory.Change{
		VariantID: id,
		Delta:     req.Delta,
		Kind:      models.MovementManualAdjustment,
		Reason:    req.Reason,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, m)
}

// --- GET: Stock movement history ---
func GetStockMovements(c *gin.Context) {
	var f inventory.MovementFilter
	if err := c.ShouldBindQuery(&f); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid filter"})
		return
	}

	moves, total, err := inventory.ListMovements(c.Request.Context(), database.DB, f)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": moves, "total": total})
}

func recordInitialStock(tx *gorm.DB, variants []models.ProductVariant) error {
	for _, v := range variants {
		if v.StockQuantity == 0 {
			continue
		}
		m := models.StockMovement{
			ProductVariantID: v.ID,
			Kind:             models.MovementManualAdjustment,
			Quantity:         v.StockQuantity,
			StockBefore:      0,
			StockAfter:       v.StockQuantity,
			Reason:           "initial stock",
		}
		if err := tx.Create(&m).Error; err != nil {
			return err
		}
	}
	return nil
}
