package handlers

import (
	"net/http"
	"strings"

	"go-consign/internal/database"
	"go-consign/internal/models"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

type ResellerRequest struct {
	Name                     string           `json:"name" validate:"required,max=160"`
	CPF                      *string          `json:"cpf" validate:"omitempty,max=20"`
	Phone                    string           `json:"phone" validate:"max=40"`
	Email                    string           `json:"email" validate:"omitempty,email,max=120"`
	Address                  string           `json:"address"`
	DefaultCommissionPercent *decimal.Decimal `json:"default_commission_percent" validate:"omitempty,min=0,max=100"`
	CreditLimit              *decimal.Decimal `json:"credit_limit" validate:"omitempty,min=0"`
	Active                   *bool            `json:"active"`
}

// DefaultCreditLimit is the limit a new reseller starts with.
var DefaultCreditLimit = decimal.NewFromInt(1000)

// ResellerSummary adds what the reseller currently holds to the record.
type ResellerSummary struct {
	models.Reseller
	OpenBags      int64           `json:"open_bags"`
	MoneyOnStreet decimal.Decimal `json:"money_on_street"`
}

// --- GET: /api/resellers ---
func GetResellers(c *gin.Context) {
	offset, limit, pageNo := page(c, 50, 200)

	q := database.DB.WithContext(c.Request.Context()).Model(&models.Reseller{})
	if s := strings.TrimSpace(c.Query("q")); s != "" {
		q = q.Where("name LIKE ?", "%"+s+"%")
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		respondError(c, err)
		return
	}

	var resellers []models.Reseller
	if err := q.Order("name").Offset(offset).Limit(limit).Find(&resellers).Error; err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": resellers, "total": total, "page": pageNo})
}

// --- GET: /api/resellers/:id ---
func GetReseller(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	db := database.DB.WithContext(c.Request.Context())

	var out ResellerSummary
	if err := db.First(&out.Reseller, id).Error; err != nil {
		respondError(c, err)
		return
	}

	var open []models.Consignment
	if err := db.Select("id", "total_value").Where("reseller_id = ? AND status = ?", id, models.StatusOpen).Find(&open).Error; err != nil {
		respondError(c, err)
		return
	}
	out.OpenBags = int64(len(open))
	out.MoneyOnStreet = decimal.Zero
	for _, b := range open {
		out.MoneyOnStreet = out.MoneyOnStreet.Add(b.TotalValue)
	}

	c.JSON(http.StatusOK, out)
}

// CreateReseller registers a reseller; a missing commission takes defaultRate.
func CreateReseller(defaultRate decimal.Decimal) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req ResellerRequest
		if !bindAndValidate(c, &req) {
			return
		}

		r := models.Reseller{
			Name:                     strings.TrimSpace(req.Name),
			CPF:                      trimmedOrNil(req.CPF),
			Phone:                    req.Phone,
			Email:                    req.Email,
			Address:                  req.Address,
			DefaultCommissionPercent: defaultRate,
			CreditLimit:              DefaultCreditLimit,
			Active:                   true,
		}
		if req.DefaultCommissionPercent != nil {
			r.DefaultCommissionPercent = *req.DefaultCommissionPercent
		}
		if req.CreditLimit != nil {
			r.CreditLimit = *req.CreditLimit
		}

		if err := database.DB.WithContext(c.Request.Context()).Create(&r).Error; err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, r)
	}
}

// --- PUT: /api/resellers/:id ---
func UpdateReseller(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var req ResellerRequest
	if !bindAndValidate(c, &req) {
		return
	}

	db := database.DB.WithContext(c.Request.Context())
	var r models.Reseller
	if err := db.First(&r, id).Error; err != nil {
		respondError(c, err)
		return
	}

	updates := map[string]interface{}{
		"name":    strings.TrimSpace(req.Name),
		"cpf":     trimmedOrNil(req.CPF),
		"phone":   req.Phone,
		"email":   req.Email,
		"address": req.Address,
	}
	if req.DefaultCommissionPercent != nil {
		updates["default_commission_percent"] = *req.DefaultCommissionPercent
	}
	if req.CreditLimit != nil {
		updates["credit_limit"] = *req.CreditLimit
	}
	if req.Active != nil {
		updates["active"] = *req.Active
	}
	if err := db.Model(&r).Updates(updates).Error; err != nil {
		respondError(c, err)
		return
	}

	r = models.Reseller{}
	if err := db.First(&r, id).Error; err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, r)
}

// --- DELETE: /api/resellers/:id ---
// Soft delete: bags already shipped keep showing the reseller.
func DeleteReseller(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	res := database.DB.WithContext(c.Request.Context()).Delete(&models.Reseller{}, id)
	if res.Error != nil {
		respondError(c, res.Error)
		return
	}
	if res.RowsAffected == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "Reseller not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Reseller deleted"})
}

func trimmedOrNil(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" {
		return nil
	}
	return &v
}
