package handlers

import (
	"bytes"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"go-consign/internal/cache"
	"go-consign/internal/consignment"
	"go-consign/internal/inventory"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"gorm.io/gorm"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{consignment.ErrNotFound, http.StatusNotFound},
		{gorm.ErrRecordNotFound, http.StatusNotFound},
		{consignment.ErrClosed, http.StatusConflict},
		{fmt.Errorf("wrapped: %w", inventory.ErrInsufficientStock), http.StatusConflict},
		{cache.ErrLockBusy, http.StatusConflict},
		{gorm.ErrDuplicatedKey, http.StatusConflict},
		{consignment.ErrItemNotInBag, http.StatusUnprocessableEntity},
		{consignment.ErrVariantNotFound, http.StatusUnprocessableEntity},
		{consignment.ErrEmptyBag, http.StatusUnprocessableEntity},
		{consignment.ErrResellerNotFound, http.StatusUnprocessableEntity},
		{fmt.Errorf("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			assert.Equal(t, tt.want, statusFor(tt.err))
		})
	}
}

type priceRequest struct {
	Name  string          `json:"name" validate:"required"`
	Price decimal.Decimal `json:"price" validate:"min=0,max=100"`
}

func runBind(body string) *httptest.ResponseRecorder {
	r := gin.New()
	r.POST("/", func(c *gin.Context) {
		var req priceRequest
		if !bindAndValidate(c, &req) {
			return
		}
		c.JSON(http.StatusOK, gin.H{"price": req.Price.String()})
	})
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/", bytes.NewBufferString(body)))
	return w
}

func TestBindAndValidate(t *testing.T) {
	w := runBind(`{"name":"x","price":"12.50"}`)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"price":"12.5"}`, w.Body.String())

	w = runBind(`{"name":`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = runBind(`{"price":150}`)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.JSONEq(t, `{"error":"validation failed","fields":{"name":"required","price":"max"}}`, w.Body.String())
}
