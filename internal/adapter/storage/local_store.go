package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/vlima/comanda/internal/core/domain"
	"github.com/vlima/comanda/internal/port"
)

const (
	keyProducts = "products"
	keyOrders   = "orders"
	keyTables   = "tables"
	keyConfig   = "config"
)

// DefaultPollInterval is how often local-mode subscriptions re-deliver a
// snapshot. Polling is unconditional: callbacks fire whether or not anything
// changed, matching the push-feed contract of the remote backend.
const DefaultPollInterval = 2 * time.Second

// LocalStore is the fallback backend used when no remote store is configured.
// Each key is one JSON file under dir, mirrored in memory; once a key is
// loaded the mirror is authoritative and file writes are best-effort, so a
// revoked or full disk degrades to volatile storage instead of failing
// operations.
type LocalStore struct {
	mu           sync.Mutex
	dir          string
	pollInterval time.Duration
	mirror       map[string][]byte
	loaded       map[string]bool
	present      map[string]bool
	seedChecked  bool
}

func NewLocalStore(dir string, pollInterval time.Duration) *LocalStore {
	if pollInterval <= 0 {
		pollInterval = DefaultPollInterval
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		logrus.WithError(err).WithField("dir", dir).Warn("state dir unavailable, running volatile")
	}
	return &LocalStore{
		dir:          dir,
		pollInterval: pollInterval,
		mirror:       make(map[string][]byte),
		loaded:       make(map[string]bool),
		present:      make(map[string]bool),
	}
}

func (s *LocalStore) Close() error { return nil }

func (s *LocalStore) path(key string) string {
	return filepath.Join(s.dir, key+".json")
}

// loadKey returns the raw value for key, reading the file once and serving
// from the mirror afterwards. Callers hold s.mu.
func (s *LocalStore) loadKey(key string) []byte {
	if s.loaded[key] {
		return s.mirror[key]
	}
	s.loaded[key] = true

	raw, err := os.ReadFile(s.path(key))
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		logrus.WithError(err).WithField("key", key).Warn("local read failed, using in-memory mirror")
		return s.mirror[key]
	}
	s.mirror[key] = raw
	s.present[key] = true
	return raw
}

// storeKey updates the mirror and persists best-effort. Callers hold s.mu.
func (s *LocalStore) storeKey(key string, raw []byte) {
	s.mirror[key] = raw
	s.loaded[key] = true
	s.present[key] = true
	if err := os.WriteFile(s.path(key), raw, 0o644); err != nil {
		logrus.WithError(err).WithField("key", key).Warn("local write failed, keeping in-memory mirror")
	}
}

// decodeKey unmarshals the stored value into out. Malformed JSON resets the
// key to empty rather than poisoning every later read.
func (s *LocalStore) decodeKey(key string, out any, empty string) {
	raw := s.loadKey(key)
	if len(raw) == 0 {
		raw = []byte(empty)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		logrus.WithError(err).WithField("key", key).Warn("malformed local data, resetting key")
		s.storeKey(key, []byte(empty))
		_ = json.Unmarshal([]byte(empty), out)
	}
}

func (s *LocalStore) products() []domain.Product {
	var products []domain.Product
	s.decodeKey(keyProducts, &products, "[]")
	return products
}

func (s *LocalStore) storeProducts(products []domain.Product) {
	raw, err := json.Marshal(products)
	if err != nil {
		logrus.WithError(err).Error("encode products")
		return
	}
	s.storeKey(keyProducts, raw)
}

func (s *LocalStore) orders() []domain.Order {
	var orders []domain.Order
	s.decodeKey(keyOrders, &orders, "[]")
	return orders
}

func (s *LocalStore) storeOrders(orders []domain.Order) {
	raw, err := json.Marshal(orders)
	if err != nil {
		logrus.WithError(err).Error("encode orders")
		return
	}
	s.storeKey(keyOrders, raw)
}

func (s *LocalStore) sessions() map[int]domain.TableSession {
	sessions := make(map[int]domain.TableSession)
	s.decodeKey(keyTables, &sessions, "{}")
	return sessions
}

func (s *LocalStore) storeSessions(sessions map[int]domain.TableSession) {
	raw, err := json.Marshal(sessions)
	if err != nil {
		logrus.WithError(err).Error("encode sessions")
		return
	}
	s.storeKey(keyTables, raw)
}

// seedCatalog seeds the starter catalog the first time products are touched
// on an installation that never stored any. An explicitly emptied catalog
// stays empty.
func (s *LocalStore) seedCatalog() {
	if s.seedChecked {
		return
	}
	s.seedChecked = true
	products := s.products()
	if len(products) == 0 && !s.present[keyProducts] {
		s.storeProducts(domain.StarterCatalog())
	}
}

func (s *LocalStore) ListProducts(ctx context.Context) ([]domain.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	products := s.products()
	sort.Slice(products, func(i, j int) bool { return products[i].Name < products[j].Name })
	return products, nil
}

func (s *LocalStore) GetProduct(ctx context.Context, id string) (*domain.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.products() {
		if p.ID == id {
			return &p, nil
		}
	}
	return nil, nil
}

func (s *LocalStore) FindProductByName(ctx context.Context, name string) (*domain.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.products() {
		if p.Name == name {
			return &p, nil
		}
	}
	return nil, nil
}

func (s *LocalStore) PutProduct(ctx context.Context, p domain.Product) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	products := s.products()
	replaced := false
	for i := range products {
		if products[i].ID == p.ID {
			products[i] = p
			replaced = true
			break
		}
	}
	if !replaced {
		products = append(products, p)
	}
	s.storeProducts(products)
	return nil
}

func (s *LocalStore) DeleteProduct(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	products := s.products()
	kept := products[:0]
	for _, p := range products {
		if p.ID != id {
			kept = append(kept, p)
		}
	}
	s.storeProducts(kept)
	return nil
}

func (s *LocalStore) AdjustStock(ctx context.Context, productID string, delta int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	products := s.products()
	for i := range products {
		if products[i].ID != productID {
			continue
		}
		next := products[i].Stock + delta
		if next < 0 {
			return port.ErrInsufficientStock
		}
		products[i].Stock = next
		s.storeProducts(products)
		return nil
	}
	if delta < 0 {
		return port.ErrInsufficientStock
	}
	// Restocking a product that was deleted in the meantime has nowhere to
	// land; the quantity is dropped.
	return nil
}

func (s *LocalStore) ListOrders(ctx context.Context) ([]domain.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	orders := s.orders()
	sort.Slice(orders, func(i, j int) bool { return orders[i].Timestamp.After(orders[j].Timestamp) })
	return orders, nil
}

func (s *LocalStore) GetOrder(ctx context.Context, id string) (*domain.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, o := range s.orders() {
		if o.ID == id {
			return &o, nil
		}
	}
	return nil, nil
}

func (s *LocalStore) PutOrder(ctx context.Context, o domain.Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	orders := s.orders()
	replaced := false
	for i := range orders {
		if orders[i].ID == o.ID {
			orders[i] = o
			replaced = true
			break
		}
	}
	if !replaced {
		orders = append(orders, o)
	}
	s.storeOrders(orders)
	return nil
}

func (s *LocalStore) GetSession(ctx context.Context, tableID int) (*domain.TableSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sess, ok := s.sessions()[tableID]; ok {
		return &sess, nil
	}
	return nil, nil
}

func (s *LocalStore) PutSession(ctx context.Context, sess domain.TableSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sessions := s.sessions()
	sessions[sess.TableID] = sess
	s.storeSessions(sessions)
	return nil
}

func (s *LocalStore) DeleteSession(ctx context.Context, tableID int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sessions := s.sessions()
	delete(sessions, tableID)
	s.storeSessions(sessions)
	return nil
}

func (s *LocalStore) ListSessions(ctx context.Context) (map[int]domain.TableSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sessions(), nil
}

func (s *LocalStore) SubscribeProducts(ctx context.Context, fn func([]domain.Product)) (port.CancelFunc, error) {
	s.mu.Lock()
	s.seedCatalog()
	s.mu.Unlock()

	return s.poll(ctx, func(ctx context.Context) {
		products, err := s.ListProducts(ctx)
		if err != nil {
			return
		}
		fn(products)
	}), nil
}

func (s *LocalStore) SubscribeOrders(ctx context.Context, fn func([]domain.Order)) (port.CancelFunc, error) {
	return s.poll(ctx, func(ctx context.Context) {
		orders, err := s.ListOrders(ctx)
		if err != nil {
			return
		}
		fn(orders)
	}), nil
}

func (s *LocalStore) SubscribeSessions(ctx context.Context, fn func(map[int]domain.TableSession)) (port.CancelFunc, error) {
	return s.poll(ctx, func(ctx context.Context) {
		sessions, err := s.ListSessions(ctx)
		if err != nil {
			return
		}
		fn(sessions)
	}), nil
}

// poll emits one snapshot immediately, then one per tick until cancelled.
func (s *LocalStore) poll(ctx context.Context, emit func(context.Context)) port.CancelFunc {
	done := make(chan struct{})
	go func() {
		emit(ctx)
		ticker := time.NewTicker(s.pollInterval)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ctx.Done():
				return
			case <-ticker.C:
				emit(ctx)
			}
		}
	}()

	var once sync.Once
	return func() { once.Do(func() { close(done) }) }
}

// ReadKey, WriteKey and DeleteKey expose the raw config slot so the backend
// selector can persist staff-entered connection settings alongside the
// entity keys.
func (s *LocalStore) ReadKey(key string) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	raw := s.loadKey(key)
	return raw, len(raw) > 0
}

func (s *LocalStore) WriteKey(key string, raw []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.storeKey(key, raw)
	return nil
}

func (s *LocalStore) DeleteKey(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.mirror, key)
	s.loaded[key] = true
	s.present[key] = false
	if err := os.Remove(s.path(key)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		logrus.WithError(err).WithField("key", key).Warn("local delete failed")
		return fmt.Errorf("delete %s: %w", key, err)
	}
	return nil
}

// ConfigKey is the local slot holding staff-entered backend settings.
const ConfigKey = keyConfig
