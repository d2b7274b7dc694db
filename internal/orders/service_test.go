package orders

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/groweasy/groweasy/internal/counterparty"
	"github.com/groweasy/groweasy/internal/inventory"
	"github.com/groweasy/groweasy/internal/sequence"
)

type fakeProduct struct {
	tenantID int64
	name     string
	stock    int64
	minLevel int64
	active   bool
}

type cpAggregate struct {
	total decimal.Decimal
	count int64
}

// memoryOrderRepo emulates the transactional contract: the mutex stands in
// for the row locks, a state snapshot stands in for rollback.
type memoryOrderRepo struct {
	mu        sync.Mutex
	sequences map[string]int64
	products  map[int64]*fakeProduct
	orders    []Document
	deltas    []inventory.DeltaParams
	parties   map[string]*cpAggregate
}

func newMemoryOrderRepo() *memoryOrderRepo {
	return &memoryOrderRepo{
		sequences: make(map[string]int64),
		products:  make(map[int64]*fakeProduct),
		parties:   make(map[string]*cpAggregate),
	}
}

func (r *memoryOrderRepo) addProduct(id, tenantID int64, name string, stock, minLevel int64) {
	r.products[id] = &fakeProduct{tenantID: tenantID, name: name, stock: stock, minLevel: minLevel, active: true}
}

func seqKey(tenantID int64, docType sequence.DocType) string {
	return fmt.Sprintf("%d:%s", tenantID, docType)
}

func cpKey(tenantID int64, kind counterparty.Kind, name string) string {
	return fmt.Sprintf("%d:%s:%s", tenantID, kind, name)
}

type snapshot struct {
	products map[int64]fakeProduct
	orders   int
	deltas   int
	parties  map[string]cpAggregate
}

func (r *memoryOrderRepo) snapshot() snapshot {
	s := snapshot{
		products: make(map[int64]fakeProduct, len(r.products)),
		orders:   len(r.orders),
		deltas:   len(r.deltas),
		parties:  make(map[string]cpAggregate, len(r.parties)),
	}
	for id, p := range r.products {
		s.products[id] = *p
	}
	for k, c := range r.parties {
		s.parties[k] = *c
	}
	return s
}

// restore rolls product, order and counterparty state back. Sequence values
// stay consumed, mirroring the atomic counter behaviour where an aborted
// attempt burns its number.
func (r *memoryOrderRepo) restore(s snapshot) {
	for id, p := range s.products {
		cp := p
		r.products[id] = &cp
	}
	r.orders = r.orders[:s.orders]
	r.deltas = r.deltas[:s.deltas]
	r.parties = make(map[string]*cpAggregate, len(s.parties))
	for k, c := range s.parties {
		cc := c
		r.parties[k] = &cc
	}
}

func (r *memoryOrderRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	snap := r.snapshot()
	if err := fn(ctx, &memoryOrderTx{repo: r}); err != nil {
		r.restore(snap)
		return err
	}
	return nil
}

func (r *memoryOrderRepo) CurrentSequence(ctx context.Context, tenantID int64, docType sequence.DocType) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sequences[seqKey(tenantID, docType)], nil
}

type memoryOrderTx struct {
	repo *memoryOrderRepo
}

func (t *memoryOrderTx) NextDocumentNumber(ctx context.Context, tenantID int64, docType sequence.DocType) (string, error) {
	key := seqKey(tenantID, docType)
	t.repo.sequences[key]++
	return sequence.Format(docType.Prefix(), t.repo.sequences[key]), nil
}

func (t *memoryOrderTx) LockProducts(ctx context.Context, tenantID int64, ids []int64) (map[int64]inventory.LockedProduct, error) {
	out := make(map[int64]inventory.LockedProduct, len(ids))
	for _, id := range ids {
		p, ok := t.repo.products[id]
		if !ok || p.tenantID != tenantID {
			return nil, &inventory.ProductNotFoundError{ProductID: id}
		}
		if !p.active {
			return nil, &inventory.ProductNotFoundError{ProductID: id, Name: p.name, Inactive: true}
		}
		out[id] = inventory.LockedProduct{
			ID:            id,
			Name:          p.name,
			CurrentStock:  p.stock,
			MinStockLevel: p.minLevel,
			IsActive:      true,
		}
	}
	return out, nil
}

func (t *memoryOrderTx) ApplyDelta(ctx context.Context, d inventory.DeltaParams) (int64, error) {
	p, ok := t.repo.products[d.ProductID]
	if !ok || p.tenantID != d.TenantID {
		return 0, &inventory.ProductNotFoundError{ProductID: d.ProductID}
	}
	newStock := p.stock + d.Quantity
	if newStock < 0 {
		return 0, inventory.ErrNegativeStock
	}
	p.stock = newStock
	t.repo.deltas = append(t.repo.deltas, d)
	return newStock, nil
}

func (t *memoryOrderTx) InsertOrder(ctx context.Context, doc Document) (int64, error) {
	t.repo.orders = append(t.repo.orders, doc)
	return int64(len(t.repo.orders)), nil
}

func (t *memoryOrderTx) UpsertCounterparty(ctx context.Context, p counterparty.UpsertParams) error {
	key := cpKey(p.TenantID, p.Kind, p.Name)
	agg, ok := t.repo.parties[key]
	if !ok {
		agg = &cpAggregate{}
		t.repo.parties[key] = agg
	}
	agg.total = agg.total.Add(p.Amount)
	agg.count++
	return nil
}

type captureNotifier struct {
	mu    sync.Mutex
	notes []StockAlertNote
}

func (n *captureNotifier) NotifyStockAlert(ctx context.Context, note StockAlertNote) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.notes = append(n.notes, note)
	return nil
}

type captureInvalidator struct {
	mu      sync.Mutex
	tenants []int64
}

func (i *captureInvalidator) Invalidate(ctx context.Context, tenantID int64) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.tenants = append(i.tenants, tenantID)
}

type captureMetrics struct {
	mu     sync.Mutex
	orders map[string]int
	alerts map[string]int
}

func (m *captureMetrics) ObserveOrder(orderType, outcome string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.orders == nil {
		m.orders = map[string]int{}
	}
	m.orders[orderType+"/"+outcome]++
}

func (m *captureMetrics) ObserveStockAlert(alertType string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.alerts == nil {
		m.alerts = map[string]int{}
	}
	m.alerts[alertType]++
}

func salePayload(name string, items ...Item) Payload {
	total := decimal.Zero
	for i := range items {
		if items[i].LineTotal.IsZero() {
			items[i].LineTotal = items[i].UnitPrice.Mul(decimal.NewFromInt(items[i].Quantity))
		}
		total = total.Add(items[i].LineTotal)
	}
	return Payload{
		CounterpartyName: name,
		Items:            items,
		Subtotal:         total,
		GrandTotal:       total,
	}
}

func TestProcessSaleHappyPath(t *testing.T) {
	repo := newMemoryOrderRepo()
	repo.addProduct(1, 1, "Seed Tray", 10, 2)
	proc := NewProcessor(repo, nil, nil, nil, nil, nil)
	ctx := context.Background()

	number, err := proc.ProcessSale(ctx, 1, salePayload("Green Thumb Ltd", Item{
		ProductID: 1, Name: "Seed Tray", Quantity: 3, UnitPrice: decimal.NewFromInt(5),
	}))
	require.NoError(t, err)
	require.Equal(t, "INV-00001", number)

	require.Equal(t, int64(7), repo.products[1].stock)
	require.Len(t, repo.orders, 1)
	require.Equal(t, sequence.DocTypeInvoice, repo.orders[0].DocumentType)
	require.Equal(t, "paid", repo.orders[0].Status)

	require.Len(t, repo.deltas, 1)
	require.Equal(t, int64(-3), repo.deltas[0].Quantity)
	require.Equal(t, inventory.MovementSale, repo.deltas[0].Type)
	require.Equal(t, "INV-00001", repo.deltas[0].ReferenceID)
	require.Equal(t, "Sold 3 units via Invoice: INV-00001", repo.deltas[0].Notes)

	agg := repo.parties[cpKey(1, counterparty.KindCustomer, "Green Thumb Ltd")]
	require.NotNil(t, agg)
	require.Equal(t, int64(1), agg.count)
	require.True(t, agg.total.Equal(decimal.NewFromInt(15)))
}

func TestProcessPurchaseSkipsStockValidation(t *testing.T) {
	repo := newMemoryOrderRepo()
	repo.addProduct(1, 1, "Compost Bag", 0, 5)
	proc := NewProcessor(repo, nil, nil, nil, nil, nil)
	ctx := context.Background()

	number, err := proc.ProcessPurchase(ctx, 1, salePayload("AgroSupply Co", Item{
		ProductID: 1, Name: "Compost Bag", Quantity: 100, UnitPrice: decimal.NewFromInt(2),
	}))
	require.NoError(t, err)
	require.Equal(t, "PO-00001", number)

	require.Equal(t, int64(100), repo.products[1].stock)
	require.Equal(t, "pending", repo.orders[0].Status)
	require.Equal(t, int64(100), repo.deltas[0].Quantity)
	require.Equal(t, inventory.MovementPurchase, repo.deltas[0].Type)
	require.Equal(t, "Purchased 100 units via PO: PO-00001", repo.deltas[0].Notes)

	agg := repo.parties[cpKey(1, counterparty.KindSupplier, "AgroSupply Co")]
	require.NotNil(t, agg)
	require.Equal(t, int64(1), agg.count)
}

func TestValidationFailureTouchesNothing(t *testing.T) {
	repo := newMemoryOrderRepo()
	repo.addProduct(1, 1, "Seed Tray", 10, 2)
	proc := NewProcessor(repo, nil, nil, nil, nil, nil)
	ctx := context.Background()

	cases := []Payload{
		{CounterpartyName: "No Items"},
		salePayload("", Item{ProductID: 1, Name: "Seed Tray", Quantity: 1}),
		salePayload("Bad Qty", Item{ProductID: 1, Name: "Seed Tray", Quantity: 0}),
		{CounterpartyName: "Negative", Items: []Item{{Name: "x", Quantity: 1}}, GrandTotal: decimal.NewFromInt(-1)},
	}
	for _, payload := range cases {
		_, err := proc.ProcessSale(ctx, 1, payload)
		var invalid *InvalidOrderDataError
		require.ErrorAs(t, err, &invalid)
	}
	_, err := proc.ProcessSale(ctx, 0, salePayload("No Tenant", Item{Name: "x", Quantity: 1}))
	var invalid *InvalidOrderDataError
	require.ErrorAs(t, err, &invalid)

	// Rejected payloads consume nothing, not even a sequence value.
	current, err := repo.CurrentSequence(ctx, 1, sequence.DocTypeInvoice)
	require.NoError(t, err)
	require.Zero(t, current)
	require.Empty(t, repo.orders)
	require.Equal(t, int64(10), repo.products[1].stock)
}

func TestInsufficientStockRollsBackEverything(t *testing.T) {
	repo := newMemoryOrderRepo()
	repo.addProduct(1, 1, "Seed Tray", 10, 2)
	repo.addProduct(2, 1, "Grow Light", 1, 1)
	proc := NewProcessor(repo, nil, nil, nil, nil, nil)
	ctx := context.Background()

	_, err := proc.ProcessSale(ctx, 1, salePayload("Green Thumb Ltd",
		Item{ProductID: 1, Name: "Seed Tray", Quantity: 4, UnitPrice: decimal.NewFromInt(5)},
		Item{ProductID: 2, Name: "Grow Light", Quantity: 3, UnitPrice: decimal.NewFromInt(60)},
	))
	var shortfall *inventory.InsufficientStockError
	require.ErrorAs(t, err, &shortfall)
	require.Equal(t, "Grow Light", shortfall.ProductName)
	require.Equal(t, int64(3), shortfall.Requested)
	require.Equal(t, int64(1), shortfall.Available)

	// Business failures are returned as-is, never wrapped as system faults.
	require.True(t, IsBusinessError(err))
	var pe *ProcessingError
	require.False(t, errors.As(err, &pe))

	require.Equal(t, int64(10), repo.products[1].stock)
	require.Equal(t, int64(1), repo.products[2].stock)
	require.Empty(t, repo.orders)
	require.Empty(t, repo.parties)

	// The aborted attempt burned its number; the next sale skips it.
	current, err := repo.CurrentSequence(ctx, 1, sequence.DocTypeInvoice)
	require.NoError(t, err)
	require.Equal(t, int64(1), current)

	number, err := proc.ProcessSale(ctx, 1, salePayload("Green Thumb Ltd",
		Item{ProductID: 1, Name: "Seed Tray", Quantity: 1, UnitPrice: decimal.NewFromInt(5)},
	))
	require.NoError(t, err)
	require.Equal(t, "INV-00002", number)
}

func TestUnknownProductFailsWholeOrder(t *testing.T) {
	repo := newMemoryOrderRepo()
	repo.addProduct(1, 1, "Seed Tray", 10, 2)
	proc := NewProcessor(repo, nil, nil, nil, nil, nil)
	ctx := context.Background()

	_, err := proc.ProcessSale(ctx, 1, salePayload("Green Thumb Ltd",
		Item{ProductID: 1, Name: "Seed Tray", Quantity: 1},
		Item{ProductID: 99, Name: "Ghost", Quantity: 1},
	))
	var missing *inventory.ProductNotFoundError
	require.ErrorAs(t, err, &missing)
	require.Equal(t, int64(10), repo.products[1].stock)
	require.Empty(t, repo.orders)
}

func TestDuplicateItemsAggregateIntoOneMovement(t *testing.T) {
	repo := newMemoryOrderRepo()
	repo.addProduct(1, 1, "Seed Tray", 10, 2)
	proc := NewProcessor(repo, nil, nil, nil, nil, nil)
	ctx := context.Background()

	_, err := proc.ProcessSale(ctx, 1, salePayload("Green Thumb Ltd",
		Item{ProductID: 1, Name: "Seed Tray", Quantity: 2, UnitPrice: decimal.NewFromInt(5)},
		Item{ProductID: 1, Name: "Seed Tray", Quantity: 3, UnitPrice: decimal.NewFromInt(5)},
	))
	require.NoError(t, err)
	require.Equal(t, int64(5), repo.products[1].stock)
	require.Len(t, repo.deltas, 1)
	require.Equal(t, int64(-5), repo.deltas[0].Quantity)
}

func TestFreeTextItemsSkipInventory(t *testing.T) {
	repo := newMemoryOrderRepo()
	proc := NewProcessor(repo, nil, nil, nil, nil, nil)
	ctx := context.Background()

	number, err := proc.ProcessSale(ctx, 1, salePayload("Green Thumb Ltd",
		Item{Name: "Consulting visit", Quantity: 1, UnitPrice: decimal.NewFromInt(150)},
	))
	require.NoError(t, err)
	require.Equal(t, "INV-00001", number)
	require.Len(t, repo.orders, 1)
	require.Empty(t, repo.deltas)
	require.NotNil(t, repo.parties[cpKey(1, counterparty.KindCustomer, "Green Thumb Ltd")])
}

func TestSequencesIsolatedPerTenantAndSeries(t *testing.T) {
	repo := newMemoryOrderRepo()
	repo.addProduct(1, 1, "Seed Tray", 100, 2)
	repo.addProduct(2, 2, "Seed Tray", 100, 2)
	proc := NewProcessor(repo, nil, nil, nil, nil, nil)
	ctx := context.Background()

	n1, err := proc.ProcessSale(ctx, 1, salePayload("A", Item{ProductID: 1, Name: "Seed Tray", Quantity: 1}))
	require.NoError(t, err)
	n2, err := proc.ProcessSale(ctx, 2, salePayload("B", Item{ProductID: 2, Name: "Seed Tray", Quantity: 1}))
	require.NoError(t, err)
	n3, err := proc.ProcessPurchase(ctx, 1, salePayload("C", Item{ProductID: 1, Name: "Seed Tray", Quantity: 1}))
	require.NoError(t, err)
	n4, err := proc.ProcessSale(ctx, 1, salePayload("A", Item{ProductID: 1, Name: "Seed Tray", Quantity: 1}))
	require.NoError(t, err)

	require.Equal(t, "INV-00001", n1)
	require.Equal(t, "INV-00001", n2)
	require.Equal(t, "PO-00001", n3)
	require.Equal(t, "INV-00002", n4)
}

func TestConcurrentSalesNeverOversell(t *testing.T) {
	repo := newMemoryOrderRepo()
	repo.addProduct(1, 1, "Seed Tray", 10, 0)
	proc := NewProcessor(repo, nil, nil, nil, nil, nil)
	ctx := context.Background()

	var (
		mu        sync.Mutex
		succeeded []string
		failed    int
	)
	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < 5; i++ {
		g.Go(func() error {
			number, err := proc.ProcessSale(gctx, 1, salePayload("Green Thumb Ltd",
				Item{ProductID: 1, Name: "Seed Tray", Quantity: 3, UnitPrice: decimal.NewFromInt(5)},
			))
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				succeeded = append(succeeded, number)
				return nil
			}
			var shortfall *inventory.InsufficientStockError
			require.ErrorAs(t, err, &shortfall)
			failed++
			return nil
		})
	}
	require.NoError(t, g.Wait())

	// 10 units serve exactly three sales of 3; the rest are rejected and
	// stock never goes negative.
	require.Len(t, succeeded, 3)
	require.Equal(t, 2, failed)
	require.Equal(t, int64(1), repo.products[1].stock)
	require.Len(t, repo.orders, 3)

	// Every committed order got its own number. Rejected attempts burn
	// theirs, so the three survivors need not be consecutive.
	seen := map[string]bool{}
	for _, n := range succeeded {
		require.False(t, seen[n], "document number %s assigned twice", n)
		seen[n] = true
	}
}

func TestConcurrentPurchaseNumbersContiguous(t *testing.T) {
	repo := newMemoryOrderRepo()
	repo.addProduct(1, 1, "Seed Tray", 0, 0)
	proc := NewProcessor(repo, nil, nil, nil, nil, nil)

	var (
		mu      sync.Mutex
		numbers []string
	)
	g, gctx := errgroup.WithContext(context.Background())
	for i := 0; i < 5; i++ {
		g.Go(func() error {
			number, err := proc.ProcessPurchase(gctx, 1, salePayload("AgroSupply Co",
				Item{ProductID: 1, Name: "Seed Tray", Quantity: 10, UnitPrice: decimal.NewFromInt(2)},
			))
			if err != nil {
				return err
			}
			mu.Lock()
			numbers = append(numbers, number)
			mu.Unlock()
			return nil
		})
	}
	require.NoError(t, g.Wait())

	// Nothing rolled back, so the five numbers must be exactly the first
	// five of the PO series with no gap and no duplicate.
	require.ElementsMatch(t,
		[]string{"PO-00001", "PO-00002", "PO-00003", "PO-00004", "PO-00005"},
		numbers)
}

func TestStockMatchesMovementSum(t *testing.T) {
	repo := newMemoryOrderRepo()
	repo.addProduct(1, 1, "Seed Tray", 10, 0)
	proc := NewProcessor(repo, nil, nil, nil, nil, nil)
	ctx := context.Background()

	_, err := proc.ProcessSale(ctx, 1, salePayload("Green Thumb Ltd",
		Item{ProductID: 1, Name: "Seed Tray", Quantity: 3, UnitPrice: decimal.NewFromInt(5)}))
	require.NoError(t, err)
	_, err = proc.ProcessPurchase(ctx, 1, salePayload("AgroSupply Co",
		Item{ProductID: 1, Name: "Seed Tray", Quantity: 7, UnitPrice: decimal.NewFromInt(2)}))
	require.NoError(t, err)
	_, err = proc.ProcessSale(ctx, 1, salePayload("Green Thumb Ltd",
		Item{ProductID: 1, Name: "Seed Tray", Quantity: 2, UnitPrice: decimal.NewFromInt(5)}))
	require.NoError(t, err)

	// Opening stock plus the sum of recorded movement quantities must
	// reconcile with the stock on hand.
	var sum int64
	for _, d := range repo.deltas {
		require.Equal(t, int64(1), d.ProductID)
		sum += d.Quantity
	}
	require.Equal(t, int64(10)+sum, repo.products[1].stock)
	require.Equal(t, int64(12), repo.products[1].stock)
}

func TestOrderOutcomesObserved(t *testing.T) {
	repo := newMemoryOrderRepo()
	repo.addProduct(1, 1, "Fertiliser 5kg", 5, 4)
	metrics := &captureMetrics{}
	proc := NewProcessor(repo, nil, nil, nil, metrics, nil)
	ctx := context.Background()

	_, err := proc.ProcessSale(ctx, 1, salePayload("Green Thumb Ltd",
		Item{ProductID: 1, Name: "Fertiliser 5kg", Quantity: 2, UnitPrice: decimal.NewFromInt(20)}))
	require.NoError(t, err)

	_, err = proc.ProcessSale(ctx, 1, salePayload("Green Thumb Ltd",
		Item{ProductID: 1, Name: "Fertiliser 5kg", Quantity: 10, UnitPrice: decimal.NewFromInt(20)}))
	require.Error(t, err)

	_, err = proc.ProcessSale(ctx, 1, Payload{CounterpartyName: "No Items"})
	require.Error(t, err)

	require.Equal(t, 1, metrics.orders["sale/success"])
	require.Equal(t, 2, metrics.orders["sale/rejected"])
	require.Equal(t, 1, metrics.alerts["low_stock"])
}

func TestStockAlertNotesDispatchedAfterCommit(t *testing.T) {
	repo := newMemoryOrderRepo()
	repo.addProduct(1, 1, "Fertiliser 5kg", 3, 5)
	repo.addProduct(2, 1, "Grow Light", 4, 2)
	notifier := &captureNotifier{}
	invalidator := &captureInvalidator{}
	proc := NewProcessor(repo, nil, notifier, invalidator, nil, nil)
	ctx := context.Background()

	_, err := proc.ProcessSale(ctx, 1, salePayload("Green Thumb Ltd",
		Item{ProductID: 1, Name: "Fertiliser 5kg", Quantity: 3, UnitPrice: decimal.NewFromInt(20)},
		Item{ProductID: 2, Name: "Grow Light", Quantity: 2, UnitPrice: decimal.NewFromInt(60)},
	))
	require.NoError(t, err)

	require.Len(t, notifier.notes, 2)
	byProduct := map[int64]StockAlertNote{}
	for _, n := range notifier.notes {
		byProduct[n.ProductID] = n
	}
	require.Equal(t, inventory.AlertOutOfStock, byProduct[1].AlertType)
	require.Equal(t, int64(0), byProduct[1].CurrentStock)
	require.NotEmpty(t, byProduct[1].EventID)
	require.Equal(t, inventory.AlertLowStock, byProduct[2].AlertType)
	require.Equal(t, int64(2), byProduct[2].CurrentStock)

	require.Equal(t, []int64{1}, invalidator.tenants)
}

func TestNoNotificationsOnFailedOrder(t *testing.T) {
	repo := newMemoryOrderRepo()
	repo.addProduct(1, 1, "Fertiliser 5kg", 3, 5)
	notifier := &captureNotifier{}
	proc := NewProcessor(repo, nil, notifier, nil, nil, nil)
	ctx := context.Background()

	_, err := proc.ProcessSale(ctx, 1, salePayload("Green Thumb Ltd",
		Item{ProductID: 1, Name: "Fertiliser 5kg", Quantity: 4, UnitPrice: decimal.NewFromInt(20)},
	))
	require.Error(t, err)
	require.Empty(t, notifier.notes)
}

func TestCurrentSequenceRejectsUnknownSeries(t *testing.T) {
	repo := newMemoryOrderRepo()
	proc := NewProcessor(repo, nil, nil, nil, nil, nil)

	_, err := proc.CurrentSequence(context.Background(), 1, sequence.DocType("QUOTE"))
	require.ErrorIs(t, err, sequence.ErrUnknownDocType)
}
