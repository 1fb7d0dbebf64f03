// Package sales composes and reads sales tickets.
package sales

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
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

// Service defines ticket operations.
type Service interface {
	// Compose prices every line from the catalog and commits the ticket with
	// all of its lines, or nothing.
	Compose(ctx context.Context, actor scope.Scope, req ComposeRequest) (*View, error)
	List(ctx context.Context, actor scope.Scope, filter Filter) ([]*View, error)
	Get(ctx context.Context, actor scope.Scope, code string) (*View, error)
}

// Policies configures the two open-ended rules of ticket composition.
type Policies struct {
	Oversell    config.OversellPolicy
	ForeignShop config.ForeignShopPolicy
}

type service struct {
	ledger   ledger.Repository
	catalog  catalog.Repository
	policies Policies
	log      *zap.Logger
	tracer   trace.Tracer
	now      func() time.Time
}

func NewService(lr ledger.Repository, cr catalog.Repository, policies Policies, log *zap.Logger) Service {
	return &service{
		ledger:   lr,
		catalog:  cr,
		policies: policies,
		log:      log.Named("sales"),
		tracer:   otel.Tracer(config.ServiceName + "/sales"),
		now:      time.Now,
	}
}

func (s *service) Compose(ctx context.Context, actor scope.Scope, req ComposeRequest) (view *View, err error) {
	ctx, span := s.tracer.Start(ctx, "ticket.compose")
	defer func() { observability.End(span, err) }()

	names := catalog.NewNames(s.catalog)
	shop, err := s.resolveShop(ctx, names, actor, req.ShopID)
	if err != nil {
		return nil, err
	}
	seller, err := s.resolveSeller(ctx, names, actor, shop.ID, req.EmployeeID)
	if err != nil {
		return nil, err
	}
	if len(req.Lines) == 0 {
		return nil, apperr.Validation("lines", "at least one line is required")
	}

	t := &ledger.Ticket{
		ID:         uuid.New(),
		ShopID:     shop.ID,
		EmployeeID: seller.ID,
		SoldAt:     s.now().UTC(),
		Notes:      strings.TrimSpace(req.Notes),
		Total:      decimal.Zero,
		Lines:      make([]ledger.LineItem, 0, len(req.Lines)),
	}
	for i, lr := range req.Lines {
		field := fmt.Sprintf("lines[%d]", i)
		productID, err := uuid.Parse(strings.TrimSpace(lr.ProductID))
		if err != nil {
			return nil, apperr.Validation(field+".product_id", "must be a valid UUID")
		}
		if lr.Quantity <= 0 {
			return nil, apperr.Validation(field+".quantity", "must be greater than zero")
		}
		product, err := names.Product(ctx, productID)
		if apperr.IsKind(err, apperr.KindNotFound) {
			return nil, apperr.Validation(field+".product_id", "product %s does not exist", productID)
		}
		if err != nil {
			return nil, err
		}
		lineTotal := product.SellingPrice.Mul(decimal.NewFromInt(int64(lr.Quantity))).Round(2)
		t.Lines = append(t.Lines, ledger.LineItem{
			ID:        uuid.New(),
			Position:  i + 1,
			ProductID: productID,
			Quantity:  lr.Quantity,
			UnitPrice: product.SellingPrice,
			LineTotal: lineTotal,
			Notes:     strings.TrimSpace(lr.Notes),
		})
		t.Total = t.Total.Add(lineTotal)
	}

	span.SetAttributes(
		attribute.String("shop.id", shop.ID.String()),
		attribute.Int("ticket.lines", len(t.Lines)),
		attribute.String("ticket.total", t.Total.StringFixed(2)),
	)
	if err := s.ledger.AppendTicket(ctx, t, s.stockGuard(ctx, names, t)); err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.String("ticket.code", t.Code))
	s.log.Info("ticket committed",
		zap.String("ticket_code", t.Code),
		zap.String("shop_id", t.ShopID.String()),
		zap.String("employee_id", t.EmployeeID.String()),
		zap.Int("lines", len(t.Lines)),
		zap.String("total", t.Total.StringFixed(2)))
	return s.view(ctx, names, t)
}

// stockGuard returns nil under the allow policy. Under block it rejects a
// ticket whose demand on any pair exceeds what is on hand.
func (s *service) stockGuard(ctx context.Context, names *catalog.Names, t *ledger.Ticket) ledger.Guard {
	if s.policies.Oversell != config.OversellBlock {
		return nil
	}
	demand := t.Demand()
	return func(onHand map[ledger.Pair]int64) error {
		for _, pair := range t.Pairs() {
			if onHand[pair] >= demand[pair] {
				continue
			}
			label := pair.ProductID.String()
			if p, err := names.Product(ctx, pair.ProductID); err == nil {
				label = p.Code
			}
			return apperr.InsufficientStock("product %s: %d requested, %d on hand", label, demand[pair], onHand[pair])
		}
		return nil
	}
}

// resolveShop applies the ticket scope rule. Employees always sell from their
// bound shop; naming another one is overridden or rejected per policy.
func (s *service) resolveShop(ctx context.Context, names *catalog.Names, actor scope.Scope, raw string) (*catalog.Shop, error) {
	raw = strings.TrimSpace(raw)
	if actor.IsOwner() {
		if raw == "" {
			return nil, apperr.Validation("shop_id", "is required")
		}
		id, err := uuid.Parse(raw)
		if err != nil {
			return nil, apperr.Validation("shop_id", "must be a valid UUID")
		}
		return names.Shop(ctx, id)
	}

	if raw == "" {
		return names.Shop(ctx, actor.ShopID)
	}
	requested, err := uuid.Parse(raw)
	if err != nil {
		return nil, apperr.Validation("shop_id", "must be a valid UUID")
	}
	if requested != actor.ShopID {
		if s.policies.ForeignShop == config.ForeignShopReject {
			return nil, scope.Audit(s.log, actor, "compose_ticket",
				apperr.ScopeViolation("shop %s is outside the caller's scope", raw),
				zap.String("requested_shop_id", raw))
		}
		s.log.Warn("foreign shop overridden",
			append(actor.Fields(), zap.String("operation", "compose_ticket"), zap.String("requested_shop_id", raw))...)
	}
	return names.Shop(ctx, actor.ShopID)
}

// resolveSeller picks the employee credited with the sale. Employees can only
// credit themselves; owners may credit anyone working at the ticket's shop.
func (s *service) resolveSeller(ctx context.Context, names *catalog.Names, actor scope.Scope, shopID uuid.UUID, raw string) (*catalog.Employee, error) {
	raw = strings.TrimSpace(raw)
	id := actor.EmployeeID
	if raw != "" {
		parsed, err := uuid.Parse(raw)
		if err != nil {
			return nil, apperr.Validation("employee_id", "must be a valid UUID")
		}
		id = parsed
	}
	if !actor.IsOwner() && id != actor.EmployeeID {
		return nil, scope.Audit(s.log, actor, "compose_ticket",
			apperr.ScopeViolation("employees can only sell under their own account"))
	}
	e, err := names.Employee(ctx, id)
	if apperr.IsKind(err, apperr.KindNotFound) {
		return nil, apperr.Validation("employee_id", "employee %s does not exist", id)
	}
	if err != nil {
		return nil, err
	}
	if e.Role == scope.RoleEmployee && (e.ShopID == nil || *e.ShopID != shopID) {
		return nil, apperr.Validation("employee_id", "employee %s does not work at shop %s", id, shopID)
	}
	return e, nil
}

func (s *service) List(ctx context.Context, actor scope.Scope, filter Filter) (views []*View, err error) {
	ctx, span := s.tracer.Start(ctx, "ticket.list")
	defer func() { observability.End(span, err) }()

	shopID, err := actor.ShopFilter(filter.ShopID)
	if err != nil {
		return nil, scope.Audit(s.log, actor, "list_tickets", err)
	}
	lf := ledger.TicketFilter{
		ShopID:     shopID,
		EmployeeID: filter.EmployeeID,
		From:       filter.From,
		To:         filter.To,
	}
	if name := strings.TrimSpace(filter.ProductName); name != "" {
		if lf.ProductIDs, err = catalog.ProductIDsByName(ctx, s.catalog, name); err != nil {
			return nil, err
		}
	}
	tickets, err := s.ledger.ListTickets(ctx, lf)
	if err != nil {
		return nil, err
	}
	names := catalog.NewNames(s.catalog)
	views = make([]*View, 0, len(tickets))
	for _, t := range tickets {
		v, err := s.view(ctx, names, t)
		if err != nil {
			return nil, err
		}
		views = append(views, v)
	}
	return views, nil
}

func (s *service) Get(ctx context.Context, actor scope.Scope, code string) (view *View, err error) {
	ctx, span := s.tracer.Start(ctx, "ticket.get", trace.WithAttributes(attribute.String("ticket.code", code)))
	defer func() { observability.End(span, err) }()

	t, err := s.ledger.GetTicketByCode(ctx, strings.TrimSpace(code))
	if err != nil {
		return nil, err
	}
	if !actor.Allows(t.ShopID) {
		// Report the attempt but do not reveal that the ticket exists.
		scope.Audit(s.log, actor, "get_ticket",
			apperr.ScopeViolation("ticket %s belongs to another shop", code),
			zap.String("requested_shop_id", t.ShopID.String()))
		return nil, apperr.NotFound("ticket", code)
	}
	return s.view(ctx, catalog.NewNames(s.catalog), t)
}

func (s *service) view(ctx context.Context, names *catalog.Names, t *ledger.Ticket) (*View, error) {
	shop, err := names.Shop(ctx, t.ShopID)
	if err != nil {
		return nil, err
	}
	seller, err := names.Employee(ctx, t.EmployeeID)
	if err != nil {
		return nil, err
	}
	v := &View{
		Ticket:       t,
		ShopCode:     shop.Code,
		ShopName:     shop.Name,
		EmployeeName: seller.Name,
		Lines:        make([]LineView, 0, len(t.Lines)),
	}
	for _, l := range t.Lines {
		product, err := names.Product(ctx, l.ProductID)
		if err != nil {
			return nil, err
		}
		v.Lines = append(v.Lines, LineView{LineItem: l, ProductCode: product.Code, ProductName: product.Name})
	}
	return v, nil
}
