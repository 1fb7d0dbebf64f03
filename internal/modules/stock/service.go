package stock

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/georgemunganga/shopledger/internal/modules/catalog"
	"github.com/georgemunganga/shopledger/internal/modules/ledger"
	"github.com/georgemunganga/shopledger/internal/modules/scope"
	"github.com/georgemunganga/shopledger/internal/platform/config"
	"github.com/georgemunganga/shopledger/internal/platform/observability"
)

// Service defines the projection reads.
type Service interface {
	// CurrentStock returns the level of one pair. A pair with no history is
	// reported at zero.
	CurrentStock(ctx context.Context, actor scope.Scope, shopID, productID uuid.UUID) (*Level, error)
	// ListStock returns one row per pair that has ever moved.
	ListStock(ctx context.Context, actor scope.Scope, filter Filter) ([]*Level, error)
	Summary(ctx context.Context, actor scope.Scope, filter SummaryFilter) (*Summary, error)
}

type service struct {
	ledger  ledger.Repository
	catalog catalog.Repository
	log     *zap.Logger
	tracer  trace.Tracer
}

func NewService(lr ledger.Repository, cr catalog.Repository, log *zap.Logger) Service {
	return &service{
		ledger:  lr,
		catalog: cr,
		log:     log.Named("stock"),
		tracer:  otel.Tracer(config.ServiceName + "/stock"),
	}
}

func (s *service) CurrentStock(ctx context.Context, actor scope.Scope, shopID, productID uuid.UUID) (level *Level, err error) {
	ctx, span := s.tracer.Start(ctx, "stock.current", trace.WithAttributes(
		attribute.String("shop.id", shopID.String()),
		attribute.String("product.id", productID.String()),
	))
	defer func() { observability.End(span, err) }()

	if _, err := actor.ShopFilter(&shopID); err != nil {
		return nil, scope.Audit(s.log, actor, "current_stock", err,
			zap.String("requested_shop_id", shopID.String()))
	}
	names := catalog.NewNames(s.catalog)
	if _, err := names.Shop(ctx, shopID); err != nil {
		return nil, err
	}
	if _, err := names.Product(ctx, productID); err != nil {
		return nil, err
	}
	b, err := s.ledger.OnHand(ctx, ledger.Pair{ShopID: shopID, ProductID: productID})
	if err != nil {
		return nil, err
	}
	level, err = s.level(ctx, names, b)
	if err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.Int64("stock.current", level.CurrentStock), attribute.String("stock.status", string(level.Status)))
	return level, nil
}

func (s *service) ListStock(ctx context.Context, actor scope.Scope, filter Filter) (levels []*Level, err error) {
	ctx, span := s.tracer.Start(ctx, "stock.list")
	defer func() { observability.End(span, err) }()

	shopID, err := actor.ShopFilter(filter.ShopID)
	if err != nil {
		return nil, scope.Audit(s.log, actor, "list_stock", err)
	}
	bf := ledger.BalanceFilter{ShopID: shopID}
	if name := strings.TrimSpace(filter.ProductName); name != "" {
		if bf.ProductIDs, err = catalog.ProductIDsByName(ctx, s.catalog, name); err != nil {
			return nil, err
		}
	}
	balances, err := s.ledger.Balances(ctx, bf)
	if err != nil {
		return nil, err
	}

	names := catalog.NewNames(s.catalog)
	levels = make([]*Level, 0, len(balances))
	for _, b := range balances {
		l, err := s.level(ctx, names, b)
		if err != nil {
			return nil, err
		}
		if filter.LowOnly && l.Status != StatusLow {
			continue
		}
		levels = append(levels, l)
	}
	span.SetAttributes(attribute.Int("stock.rows", len(levels)))
	return levels, nil
}

// Summary reads sales and stock concurrently. Each half is consistent on its
// own; the two are not taken at the same instant.
func (s *service) Summary(ctx context.Context, actor scope.Scope, filter SummaryFilter) (sum *Summary, err error) {
	ctx, span := s.tracer.Start(ctx, "stock.summary")
	defer func() { observability.End(span, err) }()

	shopID, err := actor.ShopFilter(filter.ShopID)
	if err != nil {
		return nil, scope.Audit(s.log, actor, "stock_summary", err)
	}
	sum = &Summary{ShopID: shopID, TotalSales: decimal.Zero}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		tickets, err := s.ledger.ListTickets(gctx, ledger.TicketFilter{ShopID: shopID, From: filter.From, To: filter.To})
		if err != nil {
			return err
		}
		for _, t := range tickets {
			sum.TotalSales = sum.TotalSales.Add(t.Total)
			for _, l := range t.Lines {
				sum.UnitsSold += int64(l.Quantity)
			}
		}
		sum.TicketCount = len(tickets)
		return nil
	})
	g.Go(func() error {
		balances, err := s.ledger.Balances(gctx, ledger.BalanceFilter{ShopID: shopID})
		if err != nil {
			return err
		}
		names := catalog.NewNames(s.catalog)
		for _, b := range balances {
			p, err := names.Product(gctx, b.ProductID)
			if err != nil {
				return err
			}
			switch StatusFor(b.OnHand(), p.ReorderLevel) {
			case StatusLow:
				sum.LowCount++
			case StatusWarning:
				sum.WarningCount++
			}
		}
		sum.PairCount = len(balances)
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	span.SetAttributes(
		attribute.Int("summary.tickets", sum.TicketCount),
		attribute.Int("summary.low", sum.LowCount),
	)
	return sum, nil
}

func (s *service) level(ctx context.Context, names *catalog.Names, b ledger.Balance) (*Level, error) {
	shop, err := names.Shop(ctx, b.ShopID)
	if err != nil {
		return nil, err
	}
	p, err := names.Product(ctx, b.ProductID)
	if err != nil {
		return nil, err
	}
	current := b.OnHand()
	return &Level{
		ShopID:       shop.ID,
		ShopCode:     shop.Code,
		ShopName:     shop.Name,
		ProductID:    p.ID,
		ProductCode:  p.Code,
		ProductName:  p.Name,
		Category:     p.Category,
		ReorderLevel: p.ReorderLevel,
		Received:     b.Received,
		Sold:         b.Sold,
		CurrentStock: current,
		Status:       StatusFor(current, p.ReorderLevel),
	}, nil
}
