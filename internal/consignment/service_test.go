package consignment

import (
	"context"
	"sync"
	"testing"

	"go-consign/internal/cache"
	"go-consign/internal/database"
	"go-consign/internal/models"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestService(t *testing.T) (*Service, *gorm.DB) {
	t.Helper()
	db, err := database.Open("sqlite", ":memory:", logger.Silent)
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))
	return New(db, cache.NewLocalLocker(), zerolog.Nop(), decimal.NewFromInt(30)), db
}

func seedVariant(t *testing.T, db *gorm.DB, barcode, price string, stock int) models.ProductVariant {
	t.Helper()
	p := models.Product{
		Title:     "Vestido " + barcode,
		Category:  "vestidos",
		BasePrice: decimal.RequireFromString(price),
		CostPrice: decimal.NewFromInt(10),
		Active:    true,
	}
	require.NoError(t, db.Create(&p).Error)
	v := models.ProductVariant{ProductID: p.ID, Size: "M", Color: "Preto", Barcode: barcode, StockQuantity: stock}
	require.NoError(t, db.Create(&v).Error)
	return v
}

func seedReseller(t *testing.T, db *gorm.DB, rate string) models.Reseller {
	t.Helper()
	r := models.Reseller{
		Name:                     "Maria Souza",
		DefaultCommissionPercent: decimal.RequireFromString(rate),
		CreditLimit:              decimal.NewFromInt(1000),
		Active:                   true,
	}
	require.NoError(t, db.Create(&r).Error)
	return r
}

func stockOf(t *testing.T, db *gorm.DB, id uint) int {
	t.Helper()
	var v models.ProductVariant
	require.NoError(t, db.First(&v, id).Error)
	return v.StockQuantity
}

func assertMoney(t *testing.T, want string, got decimal.Decimal) {
	t.Helper()
	assert.True(t, decimal.RequireFromString(want).Equal(got), "want %s, got %s", want, got)
}

func TestCreateReservesStock(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()
	a := seedVariant(t, db, "A1", "50", 5)
	b := seedVariant(t, db, "B1", "80", 2)
	r := seedReseller(t, db, "30")

	bag, err := svc.Create(ctx, CreateInput{
		ResellerID: r.ID,
		Items:      []ItemInput{{Barcode: "A1"}, {Barcode: "A1"}, {Barcode: " B1 "}},
	})
	require.NoError(t, err)

	assert.Equal(t, models.StatusOpen, bag.Status)
	assert.Equal(t, 3, bag.TotalItems)
	assertMoney(t, "180", bag.TotalValue)
	require.Len(t, bag.Items, 3)
	for _, it := range bag.Items {
		assert.Equal(t, 1, it.Quantity)
		require.NotNil(t, it.ProductVariant)
		require.NotNil(t, it.ProductVariant.Product)
	}
	require.NotNil(t, bag.Reseller)
	assert.Equal(t, "Maria Souza", bag.Reseller.Name)

	assert.Equal(t, 3, stockOf(t, db, a.ID))
	assert.Equal(t, 1, stockOf(t, db, b.ID))

	var moves []models.StockMovement
	require.NoError(t, db.Where("consignment_id = ?", bag.ID).Find(&moves).Error)
	require.Len(t, moves, 3)
	for _, m := range moves {
		assert.Equal(t, models.MovementConsignmentOut, m.Kind)
		assert.Equal(t, -1, m.Quantity)
		assert.Equal(t, m.StockBefore-1, m.StockAfter)
	}
}

func TestCreateInsufficientStockRollsBack(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()
	a := seedVariant(t, db, "A1", "50", 3)
	b := seedVariant(t, db, "B1", "80", 1)
	r := seedReseller(t, db, "30")

	_, err := svc.Create(ctx, CreateInput{
		ResellerID: r.ID,
		Items:      []ItemInput{{Barcode: "A1", Quantity: 2}, {Barcode: "B1", Quantity: 2}},
	})
	require.ErrorIs(t, err, ErrInsufficientStock)

	assert.Equal(t, 3, stockOf(t, db, a.ID), "earlier lines are rolled back too")
	assert.Equal(t, 1, stockOf(t, db, b.ID))

	var bags, moves int64
	db.Model(&models.Consignment{}).Count(&bags)
	db.Model(&models.StockMovement{}).Count(&moves)
	assert.Zero(t, bags)
	assert.Zero(t, moves)
}

func TestCreateValidation(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()
	seedVariant(t, db, "A1", "50", 3)
	r := seedReseller(t, db, "30")
	missingClient := uint(99)

	tests := []struct {
		name string
		in   CreateInput
		want error
	}{
		{"empty bag", CreateInput{ResellerID: r.ID}, ErrEmptyBag},
		{"unknown reseller", CreateInput{ResellerID: 42, Items: []ItemInput{{Barcode: "A1"}}}, ErrResellerNotFound},
		{"unknown client", CreateInput{ResellerID: r.ID, ClientID: &missingClient, Items: []ItemInput{{Barcode: "A1"}}}, ErrClientNotFound},
		{"unknown barcode", CreateInput{ResellerID: r.ID, Items: []ItemInput{{Barcode: "ZZZ"}}}, ErrVariantNotFound},
		{"negative quantity", CreateInput{ResellerID: r.ID, Items: []ItemInput{{Barcode: "A1", Quantity: -1}}}, ErrInvalidQuantity},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Create(ctx, tt.in)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestCreateRejectsDeletedReseller(t *testing.T) {
	svc, db := newTestService(t)
	seedVariant(t, db, "A1", "50", 3)
	r := seedReseller(t, db, "30")
	require.NoError(t, db.Delete(&r).Error)

	_, err := svc.Create(context.Background(), CreateInput{ResellerID: r.ID, Items: []ItemInput{{Barcode: "A1"}}})
	assert.ErrorIs(t, err, ErrResellerNotFound)
}

func TestScanReturnSettlesThreeItemBag(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()
	seedVariant(t, db, "A1", "50", 10)
	r := seedReseller(t, db, "30")

	bag, err := svc.Create(ctx, CreateInput{ResellerID: r.ID, Items: []ItemInput{{Barcode: "A1", Quantity: 3}}})
	require.NoError(t, err)

	res, err := svc.ScanReturn(ctx, bag.ID, "A1")
	require.NoError(t, err)
	assert.Empty(t, res.Warning)
	assert.Equal(t, 1, res.Item.ReturnedQuantity)
	assert.Equal(t, 2, res.Settlement.SoldItems)
	assertMoney(t, "100", res.Settlement.TotalSold)
	assertMoney(t, "30", res.Settlement.Commission)
	assertMoney(t, "70", res.Settlement.NetToStore)

	// persisted, not just reported
	preview, err := svc.Preview(ctx, bag.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, preview.ReturnedItems)

	for i := 0; i < 2; i++ {
		_, err = svc.ScanReturn(ctx, bag.ID, "A1")
		require.NoError(t, err)
	}
	res, err = svc.ScanReturn(ctx, bag.ID, "A1")
	require.NoError(t, err)
	assert.Equal(t, WarnFullyReturned, res.Warning)
	assert.Equal(t, 3, res.Item.ReturnedQuantity)
	assert.Equal(t, 0, res.Settlement.SoldItems)
}

func TestScanReturnMovesToNextLine(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()
	seedVariant(t, db, "A1", "50", 10)
	r := seedReseller(t, db, "30")

	bag, err := svc.Create(ctx, CreateInput{ResellerID: r.ID, Items: []ItemInput{{Barcode: "A1"}, {Barcode: "A1"}}})
	require.NoError(t, err)

	first, err := svc.ScanReturn(ctx, bag.ID, "A1")
	require.NoError(t, err)
	second, err := svc.ScanReturn(ctx, bag.ID, "A1")
	require.NoError(t, err)
	assert.NotEqual(t, first.Item.ID, second.Item.ID)
	assert.Equal(t, 2, second.Settlement.ReturnedItems)
}

func TestScanReturnRejectsForeignItem(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()
	seedVariant(t, db, "A1", "50", 10)
	seedVariant(t, db, "B1", "80", 10)
	r := seedReseller(t, db, "30")

	bag, err := svc.Create(ctx, CreateInput{ResellerID: r.ID, Items: []ItemInput{{Barcode: "A1"}}})
	require.NoError(t, err)

	_, err = svc.ScanReturn(ctx, bag.ID, "B1")
	assert.ErrorIs(t, err, ErrItemNotInBag)
	_, err = svc.ScanReturn(ctx, bag.ID, "nope")
	assert.ErrorIs(t, err, ErrItemNotInBag)
	_, err = svc.ScanReturn(ctx, bag.ID+100, "A1")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestAdjustReturnClamps(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()
	seedVariant(t, db, "A1", "20", 10)
	r := seedReseller(t, db, "30")

	bag, err := svc.Create(ctx, CreateInput{ResellerID: r.ID, Items: []ItemInput{{Barcode: "A1", Quantity: 2}}})
	require.NoError(t, err)
	itemID := bag.Items[0].ID

	res, err := svc.AdjustReturn(ctx, bag.ID, itemID, 5)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Item.ReturnedQuantity)
	assert.Equal(t, res.Item.Quantity, res.Settlement.SoldItems+res.Settlement.ReturnedItems)

	res, err = svc.AdjustReturn(ctx, bag.ID, itemID, -10)
	require.NoError(t, err)
	assert.Equal(t, 0, res.Item.ReturnedQuantity)

	res, err = svc.AdjustReturn(ctx, bag.ID, itemID, 1)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Item.ReturnedQuantity)
	assert.Equal(t, 1, res.Settlement.SoldItems)

	_, err = svc.AdjustReturn(ctx, bag.ID, itemID+100, 1)
	assert.ErrorIs(t, err, ErrItemNotFound)
}

func TestCloseRestocksOnceAndFreezesSettlement(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()
	a := seedVariant(t, db, "A1", "50", 5)
	r := seedReseller(t, db, "30")
	closer := uint(7)

	bag, err := svc.Create(ctx, CreateInput{ResellerID: r.ID, Items: []ItemInput{{Barcode: "A1", Quantity: 3}}})
	require.NoError(t, err)
	assert.Equal(t, 2, stockOf(t, db, a.ID))

	_, err = svc.ScanReturn(ctx, bag.ID, "A1")
	require.NoError(t, err)

	res, err := svc.Close(ctx, bag.ID, &closer)
	require.NoError(t, err)
	assert.False(t, res.AlreadyClosed)
	assert.Equal(t, models.StatusClosed, res.Consignment.Status)
	require.NotNil(t, res.Consignment.ClosedAt)
	require.NotNil(t, res.Consignment.ClosedBy)
	assert.Equal(t, closer, *res.Consignment.ClosedBy)
	assertMoney(t, "100", res.Consignment.TotalSold)
	assertMoney(t, "30", res.Consignment.Commission)
	assertMoney(t, "70", res.Consignment.NetToStore)
	assertMoney(t, "30", res.Consignment.CommissionPercent)
	assert.Equal(t, 3, stockOf(t, db, a.ID))

	require.Len(t, res.Consignment.Items, 1)
	assert.Equal(t, 1, res.Consignment.Items[0].ReturnedQuantity)
	assert.Equal(t, 2, res.Consignment.Items[0].SoldQuantity)

	// the reseller's rate changing later does not move a settled bag
	require.NoError(t, db.Model(&r).Update("default_commission_percent", decimal.NewFromInt(50)).Error)

	again, err := svc.Close(ctx, bag.ID, &closer)
	require.NoError(t, err)
	assert.True(t, again.AlreadyClosed)
	assertMoney(t, "70", again.Settlement.NetToStore)
	assert.Equal(t, 3, stockOf(t, db, a.ID), "stock is not returned twice")

	var returns int64
	db.Model(&models.StockMovement{}).Where("kind = ?", models.MovementConsignmentReturn).Count(&returns)
	assert.Equal(t, int64(1), returns)
}

func TestClosedBagRejectsReturns(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()
	seedVariant(t, db, "A1", "50", 5)
	r := seedReseller(t, db, "30")

	bag, err := svc.Create(ctx, CreateInput{ResellerID: r.ID, Items: []ItemInput{{Barcode: "A1"}}})
	require.NoError(t, err)
	_, err = svc.Close(ctx, bag.ID, nil)
	require.NoError(t, err)

	_, err = svc.ScanReturn(ctx, bag.ID, "A1")
	assert.ErrorIs(t, err, ErrClosed)
	_, err = svc.AdjustReturn(ctx, bag.ID, bag.Items[0].ID, 1)
	assert.ErrorIs(t, err, ErrClosed)
}

func TestItemUpdatesSkipClosedBag(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()
	seedVariant(t, db, "A1", "50", 5)
	r := seedReseller(t, db, "30")

	bag, err := svc.Create(ctx, CreateInput{ResellerID: r.ID, Items: []ItemInput{{Barcode: "A1", Quantity: 2}}})
	require.NoError(t, err)
	itemID := bag.Items[0].ID

	// the status flips underneath a caller that already checked it
	require.NoError(t, db.Model(&models.Consignment{}).Where("id = ?", bag.ID).Update("status", models.StatusClosed).Error)

	counted, err := countReturn(db, itemID)
	require.NoError(t, err)
	assert.False(t, counted)
	changed, err := setReturned(db, itemID, 2)
	require.NoError(t, err)
	assert.False(t, changed)
	assert.ErrorIs(t, svc.ensureOpen(ctx, bag.ID), ErrClosed)

	var item models.ConsignmentItem
	require.NoError(t, db.First(&item, itemID).Error)
	assert.Equal(t, 0, item.ReturnedQuantity)

	require.NoError(t, db.Model(&models.Consignment{}).Where("id = ?", bag.ID).Update("status", models.StatusOpen).Error)
	counted, err = countReturn(db, itemID)
	require.NoError(t, err)
	assert.True(t, counted)
	assert.NoError(t, svc.ensureOpen(ctx, bag.ID))
	assert.ErrorIs(t, svc.ensureOpen(ctx, 999), ErrNotFound)
}

func TestCloseWithoutReturns(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()
	a := seedVariant(t, db, "A1", "45.50", 5)
	r := seedReseller(t, db, "30")

	bag, err := svc.Create(ctx, CreateInput{ResellerID: r.ID, Items: []ItemInput{{Barcode: "A1", Quantity: 2}}})
	require.NoError(t, err)

	res, err := svc.Close(ctx, bag.ID, nil)
	require.NoError(t, err)

	want := res.Settlement.TotalValue.Mul(decimal.RequireFromString("0.7")).Round(2)
	assertMoney(t, want.String(), res.Settlement.NetToStore)
	assertMoney(t, "63.7", res.Settlement.NetToStore)
	assert.Equal(t, 3, stockOf(t, db, a.ID))
}

func TestConcurrentClosesSettleOnce(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()
	a := seedVariant(t, db, "A1", "50", 5)
	r := seedReseller(t, db, "30")

	bag, err := svc.Create(ctx, CreateInput{ResellerID: r.ID, Items: []ItemInput{{Barcode: "A1", Quantity: 4}}})
	require.NoError(t, err)
	_, err = svc.AdjustReturn(ctx, bag.ID, bag.Items[0].ID, 4)
	require.NoError(t, err)

	var (
		wg     sync.WaitGroup
		mu     sync.Mutex
		closed int
	)
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := svc.Close(ctx, bag.ID, nil)
			if err != nil {
				assert.ErrorIs(t, err, ErrBusy)
				return
			}
			if !res.AlreadyClosed {
				mu.Lock()
				closed++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, closed)
	assert.Equal(t, 5, stockOf(t, db, a.ID))
}

func TestListFilters(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()
	seedVariant(t, db, "A1", "50", 10)
	r1 := seedReseller(t, db, "30")
	r2 := seedReseller(t, db, "20")

	first, err := svc.Create(ctx, CreateInput{ResellerID: r1.ID, Items: []ItemInput{{Barcode: "A1"}}})
	require.NoError(t, err)
	_, err = svc.Create(ctx, CreateInput{ResellerID: r2.ID, Items: []ItemInput{{Barcode: "A1"}}})
	require.NoError(t, err)
	_, err = svc.Close(ctx, first.ID, nil)
	require.NoError(t, err)

	all, total, err := svc.List(ctx, Filter{})
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	assert.Len(t, all, 2)

	open, total, err := svc.List(ctx, Filter{Status: models.StatusOpen})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, open, 1)
	assert.Equal(t, r2.ID, open[0].ResellerID)
	require.NotNil(t, open[0].Reseller)

	mine, _, err := svc.List(ctx, Filter{ResellerID: r1.ID})
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, first.ID, mine[0].ID)
}
