package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"go-consign/internal/consignment"
	"go-consign/internal/database"
	"go-consign/internal/models"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

type ClientRequest struct {
	ResellerID          *uint  `json:"reseller_id"`
	Name                string `json:"name" validate:"required,max=160"`
	Phone               string `json:"phone" validate:"max=40"`
	CPF                 string `json:"cpf" validate:"max=20"`
	AddressStreet       string `json:"address_street"`
	AddressNumber       string `json:"address_number" validate:"max=20"`
	AddressNeighborhood string `json:"address_neighborhood"`
	AddressCity         string `json:"address_city"`
	AddressState        string `json:"address_state" validate:"omitempty,len=2"`
}

func (r ClientRequest) toModel() models.Client {
	return models.Client{
		ResellerID:          r.ResellerID,
		Name:                strings.TrimSpace(r.Name),
		Phone:               r.Phone,
		CPF:                 r.CPF,
		AddressStreet:       r.AddressStreet,
		AddressNumber:       r.AddressNumber,
		AddressNeighborhood: r.AddressNeighborhood,
		AddressCity:         r.AddressCity,
		AddressState:        strings.ToUpper(strings.TrimSpace(r.AddressState)),
	}
}

// checkOwner rejects an owner that does not exist or was deleted.
func checkOwner(db *gorm.DB, resellerID *uint) error {
	if resellerID == nil {
		return nil
	}
	var n int64
	if err := db.Model(&models.Reseller{}).Where("id = ?", *resellerID).Count(&n).Error; err != nil {
		return err
	}
	if n == 0 {
		return consignment.ErrResellerNotFound
	}
	return nil
}

type ClientDetail struct {
	models.Client
	Consignments []models.Consignment `json:"consignments"`
}

// --- GET: /api/clients ---
func GetClients(c *gin.Context) {
	offset, limit, pageNo := page(c, 50, 200)

	q := database.DB.WithContext(c.Request.Context()).Model(&models.Client{})
	if s := strings.TrimSpace(c.Query("q")); s != "" {
		like := "%" + s + "%"
		q = q.Where("name LIKE ? OR phone LIKE ? OR cpf LIKE ?", like, like, like)
	}
	if rid := c.Query("reseller_id"); rid != "" {
		id, err := strconv.ParseUint(rid, 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid reseller_id"})
			return
		}
		q = q.Where("reseller_id = ?", id)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		respondError(c, err)
		return
	}

	var clients []models.Client
	if err := q.Order("name").Offset(offset).Limit(limit).Find(&clients).Error; err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": clients, "total": total, "page": pageNo})
}

// --- GET: /api/clients/:id (with bag history) ---
func GetClient(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	db := database.DB.WithContext(c.Request.Context())

	var out ClientDetail
	if err := db.First(&out.Client, id).Error; err != nil {
		respondError(c, err)
		return
	}
	err := db.Where("client_id = ?", id).
		Preload("Reseller", models.WithDeleted).
		Order("created_at DESC").
		Find(&out.Consignments).Error
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

// --- POST: /api/clients ---
func CreateClient(c *gin.Context) {
	var req ClientRequest
	if !bindAndValidate(c, &req) {
		return
	}

	db := database.DB.WithContext(c.Request.Context())
	if err := checkOwner(db, req.ResellerID); err != nil {
		respondError(c, err)
		return
	}

	client := req.toModel()
	if err := db.Create(&client).Error; err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, client)
}

// --- PUT: /api/clients/:id ---
func UpdateClient(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var req ClientRequest
	if !bindAndValidate(c, &req) {
		return
	}

	db := database.DB.WithContext(c.Request.Context())
	var existing models.Client
	if err := db.First(&existing, id).Error; err != nil {
		respondError(c, err)
		return
	}
	if err := checkOwner(db, req.ResellerID); err != nil {
		respondError(c, err)
		return
	}

	client := req.toModel()
	client.ID = existing.ID
	client.CreatedAt = existing.CreatedAt
	if err := db.Save(&client).Error; err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, client)
}

// --- DELETE: /api/clients/:id ---
// Refused while bags reference the client.
func DeleteClient(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	db := database.DB.WithContext(c.Request.Context())

	var bags int64
	if err := db.Model(&models.Consignment{}).Where("client_id = ?", id).Count(&bags).Error; err != nil {
		respondError(c, err)
		return
	}
	if bags > 0 {
		c.JSON(http.StatusConflict, gin.H{"error": "Client has consignments and cannot be deleted"})
		return
	}

	res := db.Delete(&models.Client{}, id)
	if res.Error != nil {
		respondError(c, res.Error)
		return
	}
	if res.RowsAffected == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "Client not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Client deleted"})
}
