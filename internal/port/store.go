package port

import (
	"context"
	"errors"

	"github.com/vlima/comanda/internal/core/domain"
)

var (
	// ErrInsufficientStock is returned by AdjustStock when a decrement would
	// drive a product's stock below zero. Stock is never stored negative.
	ErrInsufficientStock = errors.New("insufficient stock")

	// ErrPayloadTooLarge is returned when a document exceeds the backend's
	// size limit (oversized product images, in practice).
	ErrPayloadTooLarge = errors.New("payload too large")
)

// CancelFunc stops a subscription. After it returns, the callback is never
// invoked again and any timer or listener behind the subscription is released.
// Safe to call more than once.
type CancelFunc func()

// Store is the backend-agnostic persistence contract. Exactly one
// implementation is selected at startup: the remote document store when
// configured, the local fallback store otherwise.
//
// Point reads return (nil, nil) when the entity is absent. Subscription
// callbacks always receive complete, self-consistent snapshots, never deltas,
// and a failing read cycle skips the callback rather than killing the
// subscription.
type Store interface {
	// ListProducts returns the full catalog ordered by name ascending.
	ListProducts(ctx context.Context) ([]domain.Product, error)

	// GetProduct retrieves a product by id.
	GetProduct(ctx context.Context, id string) (*domain.Product, error)

	// FindProductByName retrieves a product by exact name match.
	FindProductByName(ctx context.Context, name string) (*domain.Product, error)

	// PutProduct inserts or fully replaces a product document.
	PutProduct(ctx context.Context, p domain.Product) error

	// DeleteProduct removes a product; deleting an absent id is not an error.
	DeleteProduct(ctx context.Context, id string) error

	// AdjustStock atomically applies delta to a product's stock, rejecting
	// decrements below zero with ErrInsufficientStock.
	AdjustStock(ctx context.Context, productID string, delta int) error

	// ListOrders returns all orders ordered by timestamp descending.
	ListOrders(ctx context.Context) ([]domain.Order, error)

	// GetOrder retrieves an order by id.
	GetOrder(ctx context.Context, id string) (*domain.Order, error)

	// PutOrder inserts or fully replaces an order document.
	PutOrder(ctx context.Context, o domain.Order) error

	// GetSession retrieves the session record for a table.
	GetSession(ctx context.Context, tableID int) (*domain.TableSession, error)

	// PutSession upserts the session record for a table.
	PutSession(ctx context.Context, s domain.TableSession) error

	// DeleteSession removes a table's session record; absent id is not an error.
	DeleteSession(ctx context.Context, tableID int) error

	// ListSessions returns every active session keyed by table id.
	ListSessions(ctx context.Context) (map[int]domain.TableSession, error)

	SubscribeProducts(ctx context.Context, fn func([]domain.Product)) (CancelFunc, error)
	SubscribeOrders(ctx context.Context, fn func([]domain.Order)) (CancelFunc, error)
	SubscribeSessions(ctx context.Context, fn func(map[int]domain.TableSession)) (CancelFunc, error)

	Close() error
}
