package stock

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/georgemunganga/shopledger/internal/modules/catalog"
	"github.com/georgemunganga/shopledger/internal/modules/ledger"
	"github.com/georgemunganga/shopledger/internal/modules/scope"
	"github.com/georgemunganga/shopledger/internal/platform/apperr"
)

func TestStatusFor(t *testing.T) {
	cases := []struct {
		current int64
		reorder int
		want    Status
	}{
		{-3, 5, StatusLow},
		{0, 0, StatusLow},
		{5, 5, StatusLow},
		{6, 5, StatusWarning},
		{7, 5, StatusWarning},
		{8, 5, StatusOK},
		{1, 0, StatusWarning},
		{3, 0, StatusOK},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, StatusFor(tc.current, tc.reorder), "current=%d reorder=%d", tc.current, tc.reorder)
	}
}

type fixture struct {
	svc      Service
	ledger   *ledger.MemoryRepository
	logs     *observer.ObservedLogs
	owner    scope.Scope
	clerk    scope.Scope
	g13, g14 *catalog.Shop
	roseOud  *catalog.Product
	musk     *catalog.Product
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	cr := catalog.NewMemoryRepository()
	lr := ledger.NewMemoryRepository()

	f := &fixture{ledger: lr}
	f.g13 = &catalog.Shop{ID: uuid.New(), Code: "G13", Name: "Garden 13"}
	f.g14 = &catalog.Shop{ID: uuid.New(), Code: "G14", Name: "Garden 14"}
	require.NoError(t, cr.CreateShop(ctx, f.g13))
	require.NoError(t, cr.CreateShop(ctx, f.g14))
	f.roseOud = &catalog.Product{ID: uuid.New(), Code: "RO-01", Name: "Rose Oud", SellingPrice: decimal.NewFromInt(65), ReorderLevel: 5}
	f.musk = &catalog.Product{ID: uuid.New(), Code: "WM-02", Name: "White Musk", SellingPrice: decimal.RequireFromString("12.25"), ReorderLevel: 2}
	require.NoError(t, cr.CreateProduct(ctx, f.roseOud))
	require.NoError(t, cr.CreateProduct(ctx, f.musk))

	core, logs := observer.New(zap.InfoLevel)
	f.logs = logs
	f.svc = NewService(lr, cr, zap.New(core))
	f.owner = scope.Owner(uuid.New(), "owner@shop.io")
	f.clerk = scope.Employee(uuid.New(), "clerk@shop.io", f.g13.ID)
	return f
}

func (f *fixture) receive(t *testing.T, shop *catalog.Shop, p *catalog.Product, qty int) {
	t.Helper()
	require.NoError(t, f.ledger.AppendReceipt(context.Background(), &ledger.Receipt{
		ID: uuid.New(), ShopID: shop.ID, ProductID: p.ID, Quantity: qty, ReceivedOn: time.Now().UTC(),
	}, nil))
}

func (f *fixture) ticket(shop *catalog.Shop, lines ...ledger.LineItem) *ledger.Ticket {
	total := decimal.Zero
	for i := range lines {
		lines[i].ID = uuid.New()
		lines[i].Position = i + 1
		total = total.Add(lines[i].LineTotal)
	}
	return &ledger.Ticket{
		ID: uuid.New(), ShopID: shop.ID, EmployeeID: f.clerk.EmployeeID, SoldAt: time.Now().UTC(),
		Total: total, Lines: lines,
	}
}

func (f *fixture) sell(t *testing.T, shop *catalog.Shop, lines ...ledger.LineItem) {
	t.Helper()
	require.NoError(t, f.ledger.AppendTicket(context.Background(), f.ticket(shop, lines...), nil))
}

func line(p *catalog.Product, qty int) ledger.LineItem {
	return ledger.LineItem{
		ProductID: p.ID, Quantity: qty, UnitPrice: p.SellingPrice,
		LineTotal: p.SellingPrice.Mul(decimal.NewFromInt(int64(qty))),
	}
}

func TestCurrentStock_RoseOudScenario(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.receive(t, f.g13, f.roseOud, 20)
	f.sell(t, f.g13, line(f.roseOud, 3))
	f.sell(t, f.g13, line(f.roseOud, 12))

	level, err := f.svc.CurrentStock(ctx, f.clerk, f.g13.ID, f.roseOud.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(20), level.Received)
	assert.Equal(t, int64(15), level.Sold)
	assert.Equal(t, int64(5), level.CurrentStock)
	assert.Equal(t, StatusLow, level.Status)
	assert.Equal(t, "Rose Oud", level.ProductName)
	assert.Equal(t, "G13", level.ShopCode)
}

func TestCurrentStock_ExactPairOnly(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.receive(t, f.g13, f.roseOud, 20)
	f.receive(t, f.g14, f.roseOud, 4)
	f.receive(t, f.g13, f.musk, 9)
	f.sell(t, f.g14, line(f.roseOud, 1))

	level, err := f.svc.CurrentStock(ctx, f.owner, f.g14.ID, f.roseOud.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(3), level.CurrentStock)

	// Never moved: reported at zero.
	level, err = f.svc.CurrentStock(ctx, f.owner, f.g14.ID, f.musk.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), level.CurrentStock)
	assert.Equal(t, StatusLow, level.Status)
}

func TestCurrentStock_NegativeWhenOversold(t *testing.T) {
	f := newFixture(t)
	f.receive(t, f.g13, f.roseOud, 1)
	f.sell(t, f.g13, line(f.roseOud, 1))
	f.sell(t, f.g13, line(f.roseOud, 1))

	level, err := f.svc.CurrentStock(context.Background(), f.clerk, f.g13.ID, f.roseOud.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(-1), level.CurrentStock)
	assert.Equal(t, StatusLow, level.Status)
}

func TestCurrentStock_Scope(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.CurrentStock(ctx, f.clerk, f.g14.ID, f.roseOud.ID)
	assert.True(t, apperr.IsKind(err, apperr.KindScopeViolation))
	warns := f.logs.FilterMessage("scope violation").All()
	require.Len(t, warns, 1)
	assert.Equal(t, "current_stock", warns[0].ContextMap()["operation"])

	_, err = f.svc.CurrentStock(ctx, f.owner, f.g13.ID, uuid.New())
	assert.True(t, apperr.IsKind(err, apperr.KindNotFound))
	_, err = f.svc.CurrentStock(ctx, f.owner, uuid.New(), f.roseOud.ID)
	assert.True(t, apperr.IsKind(err, apperr.KindNotFound))
}

func TestListStock(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.receive(t, f.g13, f.roseOud, 20) // ok
	f.receive(t, f.g13, f.musk, 4)     // warning
	f.receive(t, f.g14, f.roseOud, 5)  // low
	f.receive(t, f.g14, f.musk, 10)
	f.sell(t, f.g14, line(f.musk, 9)) // low

	all, err := f.svc.ListStock(ctx, f.owner, Filter{})
	require.NoError(t, err)
	assert.Len(t, all, 4)

	mine, err := f.svc.ListStock(ctx, f.clerk, Filter{})
	require.NoError(t, err)
	require.Len(t, mine, 2)
	for _, l := range mine {
		assert.Equal(t, f.g13.ID, l.ShopID)
	}

	_, err = f.svc.ListStock(ctx, f.clerk, Filter{ShopID: &f.g14.ID})
	assert.True(t, apperr.IsKind(err, apperr.KindScopeViolation))

	low, err := f.svc.ListStock(ctx, f.owner, Filter{LowOnly: true})
	require.NoError(t, err)
	require.Len(t, low, 2)
	for _, l := range low {
		assert.Equal(t, f.g14.ID, l.ShopID)
		assert.Equal(t, StatusLow, l.Status)
	}

	musk, err := f.svc.ListStock(ctx, f.owner, Filter{ProductName: "MUSK", ShopID: &f.g13.ID})
	require.NoError(t, err)
	require.Len(t, musk, 1)
	assert.Equal(t, StatusWarning, musk[0].Status)

	none, err := f.svc.ListStock(ctx, f.owner, Filter{ProductName: "amber"})
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestSummary(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.receive(t, f.g13, f.roseOud, 20)
	f.receive(t, f.g13, f.musk, 4)
	f.receive(t, f.g14, f.roseOud, 2)
	f.sell(t, f.g13, line(f.roseOud, 3), line(f.musk, 1)) // 195 + 12.25
	f.sell(t, f.g13, line(f.roseOud, 12))                 // 780
	f.sell(t, f.g14, line(f.roseOud, 1))                  // 65

	sum, err := f.svc.Summary(ctx, f.owner, SummaryFilter{})
	require.NoError(t, err)
	assert.Equal(t, 3, sum.TicketCount)
	assert.Equal(t, int64(17), sum.UnitsSold)
	assert.True(t, sum.TotalSales.Equal(decimal.RequireFromString("1052.25")), sum.TotalSales.String())
	assert.Equal(t, 3, sum.PairCount)
	assert.Equal(t, 2, sum.LowCount) // G13 rose at 5, G14 rose at 1
	assert.Equal(t, 1, sum.WarningCount)

	mine, err := f.svc.Summary(ctx, f.clerk, SummaryFilter{})
	require.NoError(t, err)
	assert.Equal(t, 2, mine.TicketCount)
	assert.Equal(t, f.g13.ID, *mine.ShopID)
	assert.Equal(t, 1, mine.LowCount)

	tomorrow := time.Now().UTC().AddDate(0, 0, 1)
	later, err := f.svc.Summary(ctx, f.owner, SummaryFilter{From: &tomorrow})
	require.NoError(t, err)
	assert.Equal(t, 0, later.TicketCount)
	assert.True(t, later.TotalSales.IsZero())
	assert.Equal(t, 2, later.LowCount, "stock counts ignore the date range")

	_, err = f.svc.Summary(ctx, f.clerk, SummaryFilter{ShopID: &f.g14.ID})
	assert.True(t, apperr.IsKind(err, apperr.KindScopeViolation))
}

// Readers racing multi-line tickets must never see a ticket half applied.
func TestReadsNeverObservePartialTickets(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.receive(t, f.g13, f.roseOud, 1000)
	f.receive(t, f.g13, f.musk, 1000)

	const tickets = 100
	var writers, readers sync.WaitGroup
	done := make(chan struct{})

	for i := 0; i < tickets; i++ {
		writers.Add(1)
		go func() {
			defer writers.Done()
			tk := f.ticket(f.g13, line(f.roseOud, 2), line(f.roseOud, 3), line(f.musk, 1))
			assert.NoError(t, f.ledger.AppendTicket(ctx, tk, nil))
		}()
	}
	for i := 0; i < 4; i++ {
		readers.Add(1)
		go func() {
			defer readers.Done()
			for {
				select {
				case <-done:
					return
				default:
				}
				levels, err := f.svc.ListStock(ctx, f.clerk, Filter{})
				if !assert.NoError(t, err) {
					return
				}
				var rose, musk *Level
				for _, l := range levels {
					switch l.ProductID {
					case f.roseOud.ID:
						rose = l
					case f.musk.ID:
						musk = l
					}
				}
				if assert.NotNil(t, rose) && assert.NotNil(t, musk) {
					assert.Equal(t, int64(0), rose.Sold%5)
					assert.Equal(t, rose.Sold, musk.Sold*5)
				}

				one, err := f.svc.CurrentStock(ctx, f.clerk, f.g13.ID, f.roseOud.ID)
				if assert.NoError(t, err) {
					assert.Equal(t, int64(0), one.Sold%5)
				}
			}
		}()
	}
	writers.Wait()
	close(done)
	readers.Wait()

	level, err := f.svc.CurrentStock(ctx, f.owner, f.g13.ID, f.roseOud.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1000-5*tickets), level.CurrentStock)
}

func TestHandler(t *testing.T) {
	f := newFixture(t)
	f.receive(t, f.g13, f.roseOud, 20)
	f.sell(t, f.g13, line(f.roseOud, 15))

	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			next.ServeHTTP(w, req.WithContext(scope.NewContext(req.Context(), f.clerk)))
		})
	})
	NewHandler(f.svc, zap.NewNop()).RegisterRoutes(r)

	get := func(path string) *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		return rec
	}

	rec := get("/api/v1/stock/" + f.g13.ID.String() + "/" + f.roseOud.ID.String())
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var level map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &level))
	assert.Equal(t, float64(5), level["current_stock"])
	assert.Equal(t, "low", level["status"])

	assert.Equal(t, http.StatusForbidden, get("/api/v1/stock/"+f.g14.ID.String()+"/"+f.roseOud.ID.String()).Code)
	assert.Equal(t, http.StatusBadRequest, get("/api/v1/stock/g13/"+f.roseOud.ID.String()).Code)
	assert.Equal(t, http.StatusBadRequest, get("/api/v1/stock?low=maybe").Code)

	rec = get("/api/v1/stock?view=low")
	require.Equal(t, http.StatusOK, rec.Code)
	var levels []map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &levels))
	assert.Len(t, levels, 1)

	rec = get("/api/v1/stock/summary")
	require.Equal(t, http.StatusOK, rec.Code)
	var sum map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &sum))
	assert.Equal(t, "975", sum["total_sales"])
	assert.Equal(t, float64(1), sum["low_stock_count"])
}
