// Package consignment runs the lifecycle of a bag: it is built from scanned
// barcodes, shipped to a reseller, has its returns counted, and is finally
// settled. Stock leaves the store on Create and comes back on Close.
package consignment

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go-consign/internal/cache"
	"go-consign/internal/inventory"
	"go-consign/internal/metrics"
	"go-consign/internal/models"
	"go-consign/internal/settlement"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// WarnFullyReturned is reported when a scanned item has no units left to return.
const WarnFullyReturned = "item already fully returned"

type Service struct {
	db          *gorm.DB
	locker      cache.Locker
	log         zerolog.Logger
	defaultRate decimal.Decimal
	now         func() time.Time
}

// New builds the service. A nil locker falls back to an in-process one.
func New(db *gorm.DB, locker cache.Locker, log zerolog.Logger, defaultRate decimal.Decimal) *Service {
	if locker == nil {
		locker = cache.NewLocalLocker()
	}
	return &Service{
		db:          db,
		locker:      locker,
		log:         log.With().Str("component", "consignment").Logger(),
		defaultRate: defaultRate,
		now:         time.Now,
	}
}

type ItemInput struct {
	Barcode  string `json:"barcode" validate:"required"`
	Quantity int    `json:"quantity" validate:"gte=0"`
}

type CreateInput struct {
	ResellerID uint        `json:"reseller_id" validate:"required"`
	ClientID   *uint       `json:"client_id"`
	Items      []ItemInput `json:"items" validate:"required,min=1,dive"`
	CreatedBy  *uint       `json:"-"`
}

// Detail is a bag with its live (or, once closed, final) settlement.
type Detail struct {
	models.Consignment
	Settlement settlement.Summary `json:"settlement"`
}

// ReturnResult is the outcome of a scan or a manual adjustment.
type ReturnResult struct {
	Item       models.ConsignmentItem `json:"item"`
	Warning    string                 `json:"warning,omitempty"`
	Settlement settlement.Summary     `json:"settlement"`
}

type CloseResult struct {
	Consignment   models.Consignment `json:"consignment"`
	Settlement    settlement.Summary `json:"settlement"`
	AlreadyClosed bool               `json:"already_closed"`
}

type Filter struct {
	Status     string `form:"status"`
	ResellerID uint   `form:"reseller_id"`
	ClientID   uint   `form:"client_id"`
	Page       int    `form:"page"`
	Limit      int    `form:"limit"`
}

// Create ships a new bag. Either every line is reserved from stock or
// nothing is.
func (s *Service) Create(ctx context.Context, in CreateInput) (*Detail, error) {
	if len(in.Items) == 0 {
		return nil, ErrEmptyBag
	}

	var bagID uint
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var reseller models.Reseller
		if err := tx.First(&reseller, in.ResellerID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrResellerNotFound
			}
			return err
		}
		if !reseller.Active {
			return fmt.Errorf("%w: reseller %d is inactive", ErrResellerNotFound, reseller.ID)
		}

		if in.ClientID != nil {
			var client models.Client
			if err := tx.First(&client, *in.ClientID).Error; err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return ErrClientNotFound
				}
				return err
			}
		}

		items := make([]models.ConsignmentItem, 0, len(in.Items))
		total := decimal.Zero
		count := 0
		for _, line := range in.Items {
			qty := line.Quantity
			if qty == 0 {
				qty = 1
			}
			if qty < 0 {
				return ErrInvalidQuantity
			}

			barcode := strings.TrimSpace(line.Barcode)
			var v models.ProductVariant
			err := tx.Preload("Product").Where("barcode = ?", barcode).First(&v).Error
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("%w: %q", ErrVariantNotFound, barcode)
			}
			if err != nil {
				return err
			}
			if v.Product == nil || !v.Product.Active {
				return fmt.Errorf("%w: %q belongs to an inactive product", ErrVariantNotFound, barcode)
			}

			items = append(items, models.ConsignmentItem{
				ProductVariantID: v.ID,
				Quantity:         qty,
				UnitPrice:        v.Product.BasePrice,
			})
			total = total.Add(v.Product.BasePrice.Mul(decimal.NewFromInt(int64(qty))))
			count += qty
		}

		bag := models.Consignment{
			ResellerID: reseller.ID,
			ClientID:   in.ClientID,
			TotalItems: count,
			TotalValue: total,
			Status:     models.StatusOpen,
			CreatedBy:  in.CreatedBy,
			Items:      items,
		}
		if err := tx.Create(&bag).Error; err != nil {
			return err
		}

		for _, it := range bag.Items {
			_, err := inventory.Apply(tx, inventory.Change{
				VariantID:     it.ProductVariantID,
				Delta:         -it.Quantity,
				Kind:          models.MovementConsignmentOut,
				ConsignmentID: &bag.ID,
				Reason:        fmt.Sprintf("bag #%d shipped", bag.ID),
			})
			if err != nil {
				return err
			}
		}
		bagID = bag.ID
		return nil
	})
	if err != nil {
		return nil, err
	}

	metrics.ConsignmentsCreated.Inc()
	s.log.Info().Uint("consignment_id", bagID).Uint("reseller_id", in.ResellerID).Msg("consignment created")
	return s.Get(ctx, bagID)
}

// Get returns the bag with reseller, client, items and settlement.
func (s *Service) Get(ctx context.Context, id uint) (*Detail, error) {
	bag, err := loadBag(s.db.WithContext(ctx), id)
	if err != nil {
		return nil, err
	}
	summary, err := s.summarize(bag)
	if err != nil {
		return nil, err
	}
	return &Detail{Consignment: *bag, Settlement: summary}, nil
}

// List returns bags newest first and the total number of matches.
func (s *Service) List(ctx context.Context, f Filter) ([]models.Consignment, int64, error) {
	q := s.db.WithContext(ctx).Model(&models.Consignment{})
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	if f.ResellerID != 0 {
		q = q.Where("reseller_id = ?", f.ResellerID)
	}
	if f.ClientID != 0 {
		q = q.Where("client_id = ?", f.ClientID)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	page, limit := f.Page, f.Limit
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 200 {
		limit = 50
	}

	var bags []models.Consignment
	err := q.Preload("Reseller", models.WithDeleted).
		Preload("Client").
		Order("created_at DESC, id DESC").
		Offset((page - 1) * limit).Limit(limit).
		Find(&bags).Error
	return bags, total, err
}

// Preview settles the bag as it stands without persisting anything.
func (s *Service) Preview(ctx context.Context, id uint) (settlement.Summary, error) {
	bag, err := loadBag(s.db.WithContext(ctx), id)
	if err != nil {
		return settlement.Summary{}, err
	}
	return s.summarize(bag)
}

// ScanReturn counts one returned unit for barcode. The first line with units
// still out takes it; when none is left the scan is a no-op with a warning.
func (s *Service) ScanReturn(ctx context.Context, id uint, barcode string) (*ReturnResult, error) {
	barcode = strings.TrimSpace(barcode)

	release, err := s.acquire(ctx, id)
	if err != nil {
		return nil, err
	}
	defer release()

	bag, err := s.openBag(ctx, id)
	if err != nil {
		return nil, err
	}

	var matches []*models.ConsignmentItem
	for i := range bag.Items {
		it := &bag.Items[i]
		if it.ProductVariant != nil && it.ProductVariant.Barcode == barcode {
			matches = append(matches, it)
		}
	}
	if len(matches) == 0 {
		metrics.ReturnScans.WithLabelValues("not_in_bag").Inc()
		return nil, fmt.Errorf("%w: %q", ErrItemNotInBag, barcode)
	}

	var target *models.ConsignmentItem
	for _, it := range matches {
		if it.ReturnedQuantity < it.Quantity {
			target = it
			break
		}
	}

	result := &ReturnResult{}
	if target == nil {
		result.Item = *matches[0]
		result.Warning = WarnFullyReturned
		metrics.ReturnScans.WithLabelValues("already_returned").Inc()
	} else {
		counted, err := countReturn(s.db.WithContext(ctx), target.ID)
		if err != nil {
			return nil, err
		}
		if !counted {
			if err := s.ensureOpen(ctx, id); err != nil {
				return nil, err
			}
			result.Warning = WarnFullyReturned
			metrics.ReturnScans.WithLabelValues("already_returned").Inc()
		} else {
			target.ReturnedQuantity++
			metrics.ReturnScans.WithLabelValues("returned").Inc()
		}
		result.Item = *target
	}

	result.Settlement, err = s.summarize(bag)
	if err != nil {
		return nil, err
	}
	return result, nil
}

// AdjustReturn moves an item's returned count by delta, clamped to [0, sent].
func (s *Service) AdjustReturn(ctx context.Context, id, itemID uint, delta int) (*ReturnResult, error) {
	release, err := s.acquire(ctx, id)
	if err != nil {
		return nil, err
	}
	defer release()

	bag, err := s.openBag(ctx, id)
	if err != nil {
		return nil, err
	}

	var target *models.ConsignmentItem
	for i := range bag.Items {
		if bag.Items[i].ID == itemID {
			target = &bag.Items[i]
			break
		}
	}
	if target == nil {
		return nil, ErrItemNotFound
	}

	returned := settlement.Adjust(target.ReturnedQuantity, delta, target.Quantity)
	if returned != target.ReturnedQuantity {
		changed, err := setReturned(s.db.WithContext(ctx), target.ID, returned)
		if err != nil {
			return nil, err
		}
		if !changed {
			if err := s.ensureOpen(ctx, id); err != nil {
				return nil, err
			}
		}
		target.ReturnedQuantity = returned
	}

	summary, err := s.summarize(bag)
	if err != nil {
		return nil, err
	}
	return &ReturnResult{Item: *target, Settlement: summary}, nil
}

// Close settles the bag: returned units go back to stock and the settlement
// is frozen on the row. Closing a closed bag changes nothing and reports the
// stored settlement.
func (s *Service) Close(ctx context.Context, id uint, closedBy *uint) (*CloseResult, error) {
	release, err := s.acquire(ctx, id)
	if err != nil {
		return nil, err
	}
	defer release()

	result := &CloseResult{}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		bag, err := loadBag(tx, id)
		if err != nil {
			return err
		}
		if bag.Status == models.StatusClosed {
			result.AlreadyClosed = true
			return nil
		}

		summary, err := s.summarize(bag)
		if err != nil {
			return err
		}

		res := tx.Model(&models.Consignment{}).
			Where("id = ? AND status = ?", id, models.StatusOpen).
			Updates(map[string]interface{}{
				"status":    models.StatusClosed,
				"closed_at": s.now(),
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			result.AlreadyClosed = true
			return nil
		}

		for _, it := range bag.Items {
			returned := settlement.Clamp(it.ReturnedQuantity, it.Quantity)
			err := tx.Model(&models.ConsignmentItem{}).
				Where("id = ?", it.ID).
				Updates(map[string]interface{}{
					"returned_quantity": returned,
					"sold_quantity":     it.Quantity - returned,
				}).Error
			if err != nil {
				return err
			}
			if returned == 0 {
				continue
			}
			_, err = inventory.Apply(tx, inventory.Change{
				VariantID:     it.ProductVariantID,
				Delta:         returned,
				Kind:          models.MovementConsignmentReturn,
				ConsignmentID: &bag.ID,
				Reason:        fmt.Sprintf("bag #%d settled", bag.ID),
			})
			if err != nil {
				return err
			}
		}

		return tx.Model(&models.Consignment{}).
			Where("id = ?", id).
			Updates(map[string]interface{}{
				"commission_percent": summary.CommissionPercent,
				"total_sold":         summary.TotalSold,
				"commission":         summary.Commission,
				"net_to_store":       summary.NetToStore,
				"closed_by":          closedBy,
			}).Error
	})
	if err != nil {
		return nil, err
	}

	detail, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	result.Consignment = detail.Consignment
	result.Settlement = detail.Settlement

	if result.AlreadyClosed {
		s.log.Info().Uint("consignment_id", id).Msg("close requested on a settled consignment, nothing to do")
		return result, nil
	}
	metrics.ObserveSettlement(detail.Settlement.TotalSold, detail.Settlement.Commission, detail.Settlement.NetToStore)
	s.log.Info().
		Uint("consignment_id", id).
		Str("total_sold", detail.Settlement.TotalSold.StringFixed(2)).
		Str("commission", detail.Settlement.Commission.StringFixed(2)).
		Str("net_to_store", detail.Settlement.NetToStore.StringFixed(2)).
		Int("restocked", detail.Settlement.ReturnedItems).
		Msg("consignment closed")
	return result, nil
}

func (s *Service) acquire(ctx context.Context, id uint) (func(), error) {
	return s.locker.Acquire(ctx, fmt.Sprintf("lock:consignment:%d", id))
}

func (s *Service) openBag(ctx context.Context, id uint) (*models.Consignment, error) {
	bag, err := loadBag(s.db.WithContext(ctx), id)
	if err != nil {
		return nil, err
	}
	if bag.Status != models.StatusOpen {
		return nil, ErrClosed
	}
	return bag, nil
}

// ensureOpen re-reads the status after a guarded item update matched nothing.
func (s *Service) ensureOpen(ctx context.Context, id uint) error {
	var bag models.Consignment
	err := s.db.WithContext(ctx).Select("id", "status").First(&bag, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	if err != nil {
		return err
	}
	if bag.Status != models.StatusOpen {
		return ErrClosed
	}
	return nil
}

// whileOpen limits item updates to bags that are still open. The bag lock
// can expire under a slow close, so the row update checks on its own.
func whileOpen(db *gorm.DB) *gorm.DB {
	open := db.Session(&gorm.Session{NewDB: true}).
		Model(&models.Consignment{}).
		Select("id").
		Where("status = ?", models.StatusOpen)
	return db.Where("consignment_id IN (?)", open)
}

// countReturn adds one returned unit if the line still has units out.
func countReturn(db *gorm.DB, itemID uint) (bool, error) {
	res := db.Model(&models.ConsignmentItem{}).
		Scopes(whileOpen).
		Where("id = ? AND returned_quantity < quantity", itemID).
		Update("returned_quantity", gorm.Expr("returned_quantity + 1"))
	return res.RowsAffected > 0, res.Error
}

func setReturned(db *gorm.DB, itemID uint, returned int) (bool, error) {
	res := db.Model(&models.ConsignmentItem{}).
		Scopes(whileOpen).
		Where("id = ?", itemID).
		Update("returned_quantity", returned)
	return res.RowsAffected > 0, res.Error
}

// summarize settles a bag at its rate: the frozen one once closed, otherwise
// the reseller's current default.
func (s *Service) summarize(bag *models.Consignment) (settlement.Summary, error) {
	rate := s.defaultRate
	switch {
	case bag.Status == models.StatusClosed:
		rate = bag.CommissionPercent
	case bag.Reseller != nil:
		rate = bag.Reseller.DefaultCommissionPercent
	}

	lines := make([]settlement.Line, 0, len(bag.Items))
	for _, it := range bag.Items {
		lines = append(lines, settlement.Line{
			Sent:      it.Quantity,
			Returned:  it.ReturnedQuantity,
			UnitPrice: it.UnitPrice,
		})
	}
	return settlement.Compute(lines, rate)
}

func loadBag(db *gorm.DB, id uint) (*models.Consignment, error) {
	var bag models.Consignment
	err := db.Preload("Reseller", models.WithDeleted).
		Preload("Client").
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("id") }).
		Preload("Items.ProductVariant.Product").
		First(&bag, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &bag, nil
}
