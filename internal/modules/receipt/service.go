// Package receipt records stock deliveries, the only path that adds stock to
// a (shop, product) pair.
package receipt

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/georgemunganga/shopledger/internal/modules/catalog"
	"github.com/georgemunganga/shopledger/internal/modules/ledger"
	"github.com/georgemunganga/shopledger/internal/modules/scope"
	"github.com/georgemunganga/shopledger/internal/platform/apperr"
	"github.com/georgemunganga/shopledger/internal/platform/config"
	"github.com/georgemunganga/shopledger/internal/platform/observability"
)

const dateLayout = "2006-01-02"

// Service defines stock receipt operations.
type Service interface {
	Record(ctx context.Context, actor scope.Scope, req RecordRequest) (*View, error)
	List(ctx context.Context, actor scope.Scope, filter Filter) ([]*View, error)
	// Reverse appends a compensating receipt with the negated quantity. A
	// receipt can be reversed once, and a reversal cannot be reversed.
	Reverse(ctx context.Context, actor scope.Scope, id uuid.UUID, req ReverseRequest) (*View, error)
}

type service struct {
	ledger   ledger.Repository
	catalog  catalog.Repository
	oversell config.OversellPolicy
	log      *zap.Logger
	tracer   trace.Tracer
	now      func() time.Time
}

func NewService(lr ledger.Repository, cr catalog.Repository, oversell config.OversellPolicy, log *zap.Logger) Service {
	return &service{
		ledger:   lr,
		catalog:  cr,
		oversell: oversell,
		log:      log.Named("receipt"),
		tracer:   otel.Tracer(config.ServiceName + "/receipt"),
		now:      time.Now,
	}
}

func (s *service) Record(ctx context.Context, actor scope.Scope, req RecordRequest) (view *View, err error) {
	ctx, span := s.tracer.Start(ctx, "receipt.record")
	defer func() { observability.End(span, err) }()

	shopID, err := s.resolveShop(actor, req.ShopID)
	if err != nil {
		return nil, scope.Audit(s.log, actor, "record_receipt", err, zap.String("requested_shop_id", req.ShopID))
	}
	productID, err := uuid.Parse(strings.TrimSpace(req.ProductID))
	if err != nil {
		return nil, apperr.Validation("product_id", "must be a valid UUID")
	}
	if req.Quantity <= 0 {
		return nil, apperr.Validation("quantity", "must be greater than zero")
	}
	receivedOn, err := s.parseDate(req.ReceivedOn)
	if err != nil {
		return nil, err
	}

	names := catalog.NewNames(s.catalog)
	if _, err := names.Shop(ctx, shopID); err != nil {
		return nil, err
	}
	if _, err := names.Product(ctx, productID); err != nil {
		return nil, err
	}

	rc := &ledger.Receipt{
		ID:         uuid.New(),
		ShopID:     shopID,
		ProductID:  productID,
		Quantity:   req.Quantity,
		ReceivedOn: receivedOn,
		Supplier:   strings.TrimSpace(req.Supplier),
		Notes:      strings.TrimSpace(req.Notes),
		RecordedBy: actor.EmployeeID,
	}
	span.SetAttributes(
		attribute.String("shop.id", shopID.String()),
		attribute.String("product.id", productID.String()),
		attribute.Int("receipt.quantity", rc.Quantity),
	)
	if err := s.ledger.AppendReceipt(ctx, rc, nil); err != nil {
		return nil, err
	}
	s.log.Info("receipt recorded",
		zap.String("receipt_id", rc.ID.String()),
		zap.String("shop_id", shopID.String()),
		zap.String("product_id", productID.String()),
		zap.Int("quantity", rc.Quantity),
		zap.String("actor_id", actor.EmployeeID.String()))
	return s.view(ctx, names, rc)
}

func (s *service) List(ctx context.Context, actor scope.Scope, filter Filter) (views []*View, err error) {
	ctx, span := s.tracer.Start(ctx, "receipt.list")
	defer func() { observability.End(span, err) }()

	shopID, err := actor.ShopFilter(filter.ShopID)
	if err != nil {
		return nil, scope.Audit(s.log, actor, "list_receipts", err)
	}
	receipts, err := s.ledger.ListReceipts(ctx, ledger.ReceiptFilter{
		ShopID:    shopID,
		ProductID: filter.ProductID,
		From:      filter.From,
		To:        filter.To,
	})
	if err != nil {
		return nil, err
	}
	names := catalog.NewNames(s.catalog)
	views = make([]*View, 0, len(receipts))
	for _, rc := range receipts {
		v, err := s.view(ctx, names, rc)
		if err != nil {
			return nil, err
		}
		views = append(views, v)
	}
	return views, nil
}

func (s *service) Reverse(ctx context.Context, actor scope.Scope, id uuid.UUID, req ReverseRequest) (view *View, err error) {
	ctx, span := s.tracer.Start(ctx, "receipt.reverse", trace.WithAttributes(attribute.String("receipt.id", id.String())))
	defer func() { observability.End(span, err) }()

	orig, err := s.ledger.GetReceipt(ctx, id)
	if err != nil {
		return nil, err
	}
	if !actor.Allows(orig.ShopID) {
		return nil, scope.Audit(s.log, actor, "reverse_receipt",
			apperr.ScopeViolation("receipt %s belongs to another shop", id),
			zap.String("requested_shop_id", orig.ShopID.String()))
	}
	if orig.ReversesID != nil {
		return nil, apperr.Validation("id", "a reversal cannot itself be reversed")
	}
	reason := strings.TrimSpace(req.Reason)
	if reason == "" {
		return nil, apperr.Validation("reason", "is required")
	}

	rev := &ledger.Receipt{
		ID:         uuid.New(),
		ShopID:     orig.ShopID,
		ProductID:  orig.ProductID,
		Quantity:   -orig.Quantity,
		ReceivedOn: s.today(),
		Supplier:   orig.Supplier,
		Notes:      "reversal: " + reason,
		ReversesID: &orig.ID,
		RecordedBy: actor.EmployeeID,
	}
	var guard ledger.Guard
	if s.oversell == config.OversellBlock {
		guard = func(onHand map[ledger.Pair]int64) error {
			if left := onHand[rev.Pair()] + int64(rev.Quantity); left < 0 {
				return apperr.InsufficientStock("reversing receipt %s would leave %d on hand", id, left)
			}
			return nil
		}
	}
	if err := s.ledger.AppendReceipt(ctx, rev, guard); err != nil {
		return nil, err
	}
	s.log.Info("receipt reversed",
		zap.String("receipt_id", rev.ID.String()),
		zap.String("reverses_id", orig.ID.String()),
		zap.Int("quantity", rev.Quantity),
		zap.String("actor_id", actor.EmployeeID.String()))
	return s.view(ctx, catalog.NewNames(s.catalog), rev)
}

// resolveShop applies the receipt scope rule: employees may omit the shop and
// get their own, but naming any other shop is a violation.
func (s *service) resolveShop(actor scope.Scope, raw string) (uuid.UUID, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		if actor.IsOwner() {
			return uuid.Nil, apperr.Validation("shop_id", "is required")
		}
		return actor.ShopID, nil
	}
	shopID, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, apperr.Validation("shop_id", "must be a valid UUID")
	}
	if !actor.Allows(shopID) {
		return uuid.Nil, apperr.ScopeViolation("shop %s is outside the caller's scope", shopID)
	}
	return shopID, nil
}

func (s *service) parseDate(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return s.today(), nil
	}
	d, err := time.Parse(dateLayout, raw)
	if err != nil {
		return time.Time{}, apperr.Validation("received_on", "must be a date in YYYY-MM-DD form")
	}
	return d, nil
}

func (s *service) today() time.Time {
	y, m, d := s.now().UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func (s *service) view(ctx context.Context, names *catalog.Names, rc *ledger.Receipt) (*View, error) {
	shop, err := names.Shop(ctx, rc.ShopID)
	if err != nil {
		return nil, err
	}
	product, err := names.Product(ctx, rc.ProductID)
	if err != nil {
		return nil, err
	}
	return &View{
		Receipt:     rc,
		ShopCode:    shop.Code,
		ShopName:    shop.Name,
		ProductCode: product.Code,
		ProductName: product.Name,
	}, nil
}
