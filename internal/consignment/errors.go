package consignment

import (
	"errors"

	"go-consign/internal/cache"
	"go-consign/internal/inventory"
)

var (
	ErrNotFound         = errors.New("consignment not found")
	ErrClosed           = errors.New("consignment is already closed")
	ErrEmptyBag         = errors.New("consignment must have at least one item")
	ErrItemNotInBag     = errors.New("item does not belong to this consignment")
	ErrItemNotFound     = errors.New("consignment item not found")
	ErrResellerNotFound = errors.New("reseller not found")
	ErrClientNotFound   = errors.New("client not found")
	ErrInvalidQuantity  = errors.New("quantity must be at least 1")

	// shared with the stock layer and the lock layer so callers need one errors.Is
	ErrVariantNotFound   = inventory.ErrVariantNotFound
	ErrInsufficientStock = inventory.ErrInsufficientStock
	ErrBusy              = cache.ErrLockBusy
)
