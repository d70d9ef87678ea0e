package handlers

import (
	"errors"
	"net/http"
	"reflect"
	"strconv"
	"strings"

	"go-consign/internal/auth"
	"go-consign/internal/consignment"
	"go-consign/internal/inventory"
	"go-consign/internal/middleware"
	"go-consign/internal/settlement"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

var validate = validator.New()

func init() {
	// decimal.Decimal validates as a number so min/max tags work on money fields
	validate.RegisterCustomTypeFunc(func(field reflect.Value) interface{} {
		if v, ok := field.Interface().(decimal.Decimal); ok {
			f, _ := v.Float64()
			return f
		}
		return nil
	}, decimal.Decimal{})

	// report json names instead of Go field names
	validate.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return f.Name
		}
		return name
	})
}

// bindAndValidate binds the JSON body and runs the validate tags.
// On failure the response is already written and the caller just returns.
func bindAndValidate(c *gin.Context, req interface{}) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid input: " + err.Error()})
		return false
	}
	if err := validate.Struct(req); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return false
		}
		fields := make(map[string]string, len(verrs))
		for _, fe := range verrs {
			fields[fe.Field()] = fe.Tag()
		}
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "validation failed", "fields": fields})
		return false
	}
	return true
}

// parseID reads a numeric path parameter.
func parseID(c *gin.Context, name string) (uint, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid " + name})
		return 0, false
	}
	return uint(id), true
}

// page reads ?page= and ?limit= with sane bounds.
func page(c *gin.Context, defLimit, maxLimit int) (offset, limit, pageNo int) {
	pageNo, _ = strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ = strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(defLimit)))
	if pageNo < 1 {
		pageNo = 1
	}
	if limit < 1 || limit > maxLimit {
		limit = defLimit
	}
	return (pageNo - 1) * limit, limit, pageNo
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, consignment.ErrNotFound),
		errors.Is(err, consignment.ErrItemNotFound),
		errors.Is(err, gorm.ErrRecordNotFound):
		return http.StatusNotFound
	case errors.Is(err, consignment.ErrClosed),
		errors.Is(err, inventory.ErrInsufficientStock),
		errors.Is(err, consignment.ErrBusy),
		errors.Is(err, gorm.ErrDuplicatedKey):
		return http.StatusConflict
	case errors.Is(err, consignment.ErrItemNotInBag),
		errors.Is(err, inventory.ErrVariantNotFound),
		errors.Is(err, inventory.ErrZeroDelta),
		errors.Is(err, consignment.ErrEmptyBag),
		errors.Is(err, consignment.ErrResellerNotFound),
		errors.Is(err, consignment.ErrClientNotFound),
		errors.Is(err, consignment.ErrInvalidQuantity),
		errors.Is(err, settlement.ErrInvalidRate),
		errors.Is(err, auth.ErrWeakPassword):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// respondError writes the JSON error for err. Unknown errors are logged and
// hidden behind a generic message.
func respondError(c *gin.Context, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		log.Error().
			Err(err).
			Str("request_id", c.GetString(middleware.RequestIDKey)).
			Str("path", c.FullPath()).
			Msg("request failed")
		c.JSON(status, gin.H{"error": "Internal server error"})
		return
	}
	msg := err.Error()
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		msg = "A record with the same unique value already exists"
	}
	c.JSON(status, gin.H{"error": msg})
}

// currentUser returns the caller's id as a pointer for audit columns.
func currentUser(c *gin.Context) *uint {
	id := middleware.GetUserID(c)
	if id == 0 {
		return nil
	}
	return &id
}
