package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/vlima/comanda/internal/core/domain"
	"github.com/vlima/comanda/internal/port"
)

var (
	ErrInsufficientStock = port.ErrInsufficientStock
	ErrPayloadTooLarge   = port.ErrPayloadTooLarge

	ErrEmptyOrder      = errors.New("order has no items")
	ErrProductNotFound = errors.New("product not found")
	ErrOrderNotFound   = errors.New("order not found")
	ErrInvalidStatus   = errors.New("invalid order status")
	ErrInvalidProduct  = errors.New("invalid product")
	ErrNoPaymentMethod = errors.New("payment method required")
)

// OrderLine is a customer's requested quantity of one product. Name and price
// are resolved from the catalog at creation time, never taken from the client.
type OrderLine struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

// POSService owns every write to products, orders and table sessions and
// enforces the invariants that span them: stock decrements on order creation,
// stock restoration on cancellation, and the table-close lifecycle. Nothing
// else writes the store directly.
type POSService struct {
	store port.Store
}

func NewPOSService(store port.Store) *POSService {
	return &POSService{store: store}
}

// SaveProduct updates a product in place when its id resolves in the store.
// Otherwise it folds the entry into an existing product with the same name,
// summing stock and overwriting price, description, category and image, so
// repeated staff entry never duplicates the catalog. Only when no name
// matches is a new product created.
func (s *POSService) SaveProduct(ctx context.Context, p domain.Product) (domain.Product, error) {
	if p.Name == "" || p.Price < 0 || p.Stock < 0 {
		return domain.Product{}, ErrInvalidProduct
	}
	if p.ImageURL == "" {
		p.ImageURL = domain.DefaultImageURL
	}

	if p.ID != "" {
		existing, err := s.store.GetProduct(ctx, p.ID)
		if err != nil {
			return domain.Product{}, fmt.Errorf("save product: %w", err)
		}
		if existing != nil {
			if err := s.store.PutProduct(ctx, p); err != nil {
				return domain.Product{}, fmt.Errorf("save product: %w", err)
			}
			return p, nil
		}
	}

	same, err := s.store.FindProductByName(ctx, p.Name)
	if err != nil {
		return domain.Product{}, fmt.Errorf("save product: %w", err)
	}
	if same != nil {
		same.Stock += p.Stock
		same.Price = p.Price
		same.Description = p.Description
		same.Category = p.Category
		same.ImageURL = p.ImageURL
		if err := s.store.PutProduct(ctx, *same); err != nil {
			return domain.Product{}, fmt.Errorf("save product: %w", err)
		}
		return *same, nil
	}

	p.ID = uuid.NewString()
	if err := s.store.PutProduct(ctx, p); err != nil {
		return domain.Product{}, fmt.Errorf("save product: %w", err)
	}
	return p, nil
}

// DeleteProduct removes a product; deleting an unknown id is a no-op.
func (s *POSService) DeleteProduct(ctx context.Context, id string) error {
	if err := s.store.DeleteProduct(ctx, id); err != nil {
		return fmt.Errorf("delete product: %w", err)
	}
	return nil
}

// CreateOrder snapshots the requested lines from the current catalog,
// decrements each product's stock atomically and persists a PENDING order
// whose total is fixed at creation time. If any line cannot be fully
// decremented the whole order is rejected and decrements already applied are
// rolled back best-effort.
func (s *POSService) CreateOrder(ctx context.Context, tableID int, lines []OrderLine, observation string) (domain.Order, error) {
	if len(lines) == 0 {
		return domain.Order{}, ErrEmptyOrder
	}
	for _, l := range lines {
		if l.Quantity <= 0 {
			return domain.Order{}, ErrEmptyOrder
		}
	}

	items := make([]domain.OrderItem, 0, len(lines))
	var total float64
	var decremented []domain.OrderItem

	for _, l := range lines {
		p, err := s.store.GetProduct(ctx, l.ProductID)
		if err != nil {
			s.rollbackStock(ctx, decremented)
			return domain.Order{}, fmt.Errorf("create order: %w", err)
		}
		if p == nil {
			s.rollbackStock(ctx, decremented)
			return domain.Order{}, fmt.Errorf("%w: %s", ErrProductNotFound, l.ProductID)
		}

		if err := s.store.AdjustStock(ctx, p.ID, -l.Quantity); err != nil {
			s.rollbackStock(ctx, decremented)
			if errors.Is(err, port.ErrInsufficientStock) {
				return domain.Order{}, fmt.Errorf("%w: %s", ErrInsufficientStock, p.Name)
			}
			return domain.Order{}, fmt.Errorf("create order: %w", err)
		}

		item := domain.OrderItem{ProductID: p.ID, Name: p.Name, Price: p.Price, Quantity: l.Quantity}
		decremented = append(decremented, item)
		items = append(items, item)
		total += p.Price * float64(l.Quantity)
	}

	order := domain.Order{
		ID:          uuid.NewString(),
		TableID:     tableID,
		Status:      domain.OrderStatusPending,
		Timestamp:   time.Now(),
		Items:       items,
		Total:       total,
		Observation: observation,
	}

	if err := s.store.PutOrder(ctx, order); err != nil {
		s.rollbackStock(ctx, decremented)
		return domain.Order{}, fmt.Errorf("create order: %w", err)
	}
	return order, nil
}

func (s *POSService) rollbackStock(ctx context.Context, items []domain.OrderItem) {
	for _, item := range items {
		if err := s.store.AdjustStock(ctx, item.ProductID, item.Quantity); err != nil {
			logrus.WithError(err).WithField("product_id", item.ProductID).Error("stock rollback failed")
		}
	}
}

// UpdateOrderStatus moves an order to any valid status. Entering CANCELED
// from a non-CANCELED state restores every line's quantity to product stock;
// cancelling an already-cancelled order never restores twice.
func (s *POSService) UpdateOrderStatus(ctx context.Context, orderID string, status domain.OrderStatus) (domain.Order, error) {
	if !status.Valid() {
		return domain.Order{}, ErrInvalidStatus
	}

	order, err := s.store.GetOrder(ctx, orderID)
	if err != nil {
		return domain.Order{}, fmt.Errorf("update order status: %w", err)
	}
	if order == nil {
		return domain.Order{}, ErrOrderNotFound
	}

	if status == domain.OrderStatusCanceled && order.Status != domain.OrderStatusCanceled {
		for _, item := range order.Items {
			if err := s.store.AdjustStock(ctx, item.ProductID, item.Quantity); err != nil {
				logrus.WithError(err).WithFields(logrus.Fields{
					"order_id":   orderID,
					"product_id": item.ProductID,
				}).Error("stock restore failed")
			}
		}
	}

	order.Status = status
	if err := s.store.PutOrder(ctx, *order); err != nil {
		return domain.Order{}, fmt.Errorf("update order status: %w", err)
	}
	return *order, nil
}

// RequestTableClose records the customer's bill request and chosen payment
// method. The session stays until staff finalize the table.
func (s *POSService) RequestTableClose(ctx context.Context, tableID int, paymentMethod string) error {
	if paymentMethod == "" {
		return ErrNoPaymentMethod
	}
	sess := domain.TableSession{
		TableID:       tableID,
		Status:        domain.SessionClosingRequested,
		PaymentMethod: paymentMethod,
	}
	if err := s.store.PutSession(ctx, sess); err != nil {
		return fmt.Errorf("request table close: %w", err)
	}
	return nil
}

// FinalizeTable is the authoritative "table is clear" operation: it removes
// the session record, which is the customer's confirmation signal, then marks
// every open order of the table PAID.
func (s *POSService) FinalizeTable(ctx context.Context, tableID int) error {
	if err := s.store.DeleteSession(ctx, tableID); err != nil {
		return fmt.Errorf("finalize table: %w", err)
	}

	orders, err := s.store.ListOrders(ctx)
	if err != nil {
		return fmt.Errorf("finalize table: %w", err)
	}
	for _, o := range orders {
		if o.TableID != tableID || o.Status.Terminal() {
			continue
		}
		o.Status = domain.OrderStatusPaid
		if err := s.store.PutOrder(ctx, o); err != nil {
			return fmt.Errorf("finalize table: mark order %s paid: %w", o.ID, err)
		}
	}
	return nil
}

func (s *POSService) GetProductsOnce(ctx context.Context) ([]domain.Product, error) {
	return s.store.ListProducts(ctx)
}

func (s *POSService) GetOrdersOnce(ctx context.Context) ([]domain.Order, error) {
	return s.store.ListOrders(ctx)
}

func (s *POSService) GetSession(ctx context.Context, tableID int) (*domain.TableSession, error) {
	return s.store.GetSession(ctx, tableID)
}

func (s *POSService) SubscribeProducts(ctx context.Context, fn func([]domain.Product)) (port.CancelFunc, error) {
	return s.store.SubscribeProducts(ctx, fn)
}

func (s *POSService) SubscribeOrders(ctx context.Context, fn func([]domain.Order)) (port.CancelFunc, error) {
	return s.store.SubscribeOrders(ctx, fn)
}

func (s *POSService) SubscribeSessions(ctx context.Context, fn func(map[int]domain.TableSession)) (port.CancelFunc, error) {
	return s.store.SubscribeSessions(ctx, fn)
}

// SalesSummary aggregates order history for reporting.
type SalesSummary struct {
	GeneratedAt    time.Time       `json:"generated_at"`
	TotalOrders    int             `json:"total_orders"`
	PaidOrders     int             `json:"paid_orders"`
	CanceledOrders int             `json:"canceled_orders"`
	Revenue        float64         `json:"revenue"`
	UnitsByProduct map[string]int  `json:"units_by_product"`
	RevenueByTable map[int]float64 `json:"revenue_by_table"`
}

// SalesReport builds the aggregate fed to the report generator from a
// one-shot read of all orders. Revenue counts PAID orders only; unit counts
// skip cancelled orders.
func (s *POSService) SalesReport(ctx context.Context) (SalesSummary, error) {
	orders, err := s.store.ListOrders(ctx)
	if err != nil {
		return SalesSummary{}, fmt.Errorf("sales report: %w", err)
	}

	summary := SalesSummary{
		GeneratedAt:    time.Now(),
		TotalOrders:    len(orders),
		UnitsByProduct: make(map[string]int),
		RevenueByTable: make(map[int]float64),
	}
	for _, o := range orders {
		switch o.Status {
		case domain.OrderStatusCanceled:
			summary.CanceledOrders++
			continue
		case domain.OrderStatusPaid:
			summary.PaidOrders++
			summary.Revenue += o.Total
			summary.RevenueByTable[o.TableID] += o.Total
		}
		for _, item := range o.Items {
			summary.UnitsByProduct[item.Name] += item.Quantity
		}
	}
	return summary, nil
}
