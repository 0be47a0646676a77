package storage

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/vlima/comanda/internal/core/domain"
	"github.com/vlima/comanda/internal/port"
)

const testPoll = 20 * time.Millisecond

func TestLocalStore_SeedsCatalogOnFirstSubscription(t *testing.T) {
	store := NewLocalStore(t.TempDir(), testPoll)

	got := make(chan []domain.Product, 1)
	cancel, err := store.SubscribeProducts(context.Background(), func(products []domain.Product) {
		select {
		case got <- products:
		default:
		}
	})
	if err != nil {
		t.Fatalf("subscribe failed: %v", err)
	}
	defer cancel()

	select {
	case products := <-got:
		if len(products) != len(domain.StarterCatalog()) {
			t.Errorf("expected seeded catalog of %d, got %d", len(domain.StarterCatalog()), len(products))
		}
	case <-time.After(time.Second):
		t.Fatal("no initial snapshot delivered")
	}
}

func TestLocalStore_DoesNotReseedEmptiedCatalog(t *testing.T) {
	dir := t.TempDir()
	store := NewLocalStore(dir, testPoll)
	ctx := context.Background()

	cancel, err := store.SubscribeProducts(ctx, func([]domain.Product) {})
	if err != nil {
		t.Fatalf("subscribe failed: %v", err)
	}
	cancel()

	products, _ := store.ListProducts(ctx)
	for _, p := range products {
		store.DeleteProduct(ctx, p.ID)
	}

	// A fresh instance over the same dir sees a deliberately empty catalog,
	// not a reseeded one.
	reopened := NewLocalStore(dir, testPoll)
	cancel, err = reopened.SubscribeProducts(ctx, func([]domain.Product) {})
	if err != nil {
		t.Fatalf("subscribe failed: %v", err)
	}
	cancel()

	products, _ = reopened.ListProducts(ctx)
	if len(products) != 0 {
		t.Errorf("expected emptied catalog to stay empty, got %d products", len(products))
	}
}

func TestLocalStore_PollingStopsAfterCancel(t *testing.T) {
	store := NewLocalStore(t.TempDir(), testPoll)

	var calls atomic.Int32
	cancel, err := store.SubscribeOrders(context.Background(), func([]domain.Order) {
		calls.Add(1)
	})
	if err != nil {
		t.Fatalf("subscribe failed: %v", err)
	}

	deadline := time.Now().Add(time.Second)
	for calls.Load() < 2 && time.Now().Before(deadline) {
		time.Sleep(testPoll)
	}
	if calls.Load() < 2 {
		t.Fatal("polling never fired")
	}

	cancel()
	cancel() // safe to call twice
	time.Sleep(2 * testPoll) // let any in-flight emit drain
	after := calls.Load()
	time.Sleep(5 * testPoll)
	if calls.Load() != after {
		t.Errorf("callback fired after cancel: %d -> %d", after, calls.Load())
	}
}

func TestLocalStore_AdjustStockNeverNegative(t *testing.T) {
	store := NewLocalStore(t.TempDir(), testPoll)
	ctx := context.Background()

	p := domain.Product{ID: "p1", Name: "Suco", Price: 5, Stock: 3}
	if err := store.PutProduct(ctx, p); err != nil {
		t.Fatalf("put failed: %v", err)
	}

	if err := store.AdjustStock(ctx, "p1", -5); err != port.ErrInsufficientStock {
		t.Fatalf("expected ErrInsufficientStock, got: %v", err)
	}
	got, _ := store.GetProduct(ctx, "p1")
	if got.Stock != 3 {
		t.Errorf("expected stock untouched at 3, got %d", got.Stock)
	}

	if err := store.AdjustStock(ctx, "p1", -3); err != nil {
		t.Fatalf("full decrement failed: %v", err)
	}
	got, _ = store.GetProduct(ctx, "p1")
	if got.Stock != 0 {
		t.Errorf("expected stock 0, got %d", got.Stock)
	}
}

func TestLocalStore_PersistsAcrossInstances(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	store := NewLocalStore(dir, testPoll)
	if err := store.PutOrder(ctx, domain.Order{ID: "o1", TableID: 4, Status: domain.OrderStatusPending, Timestamp: time.Now()}); err != nil {
		t.Fatalf("put order failed: %v", err)
	}
	if err := store.PutSession(ctx, domain.TableSession{TableID: 4, Status: domain.SessionClosingRequested, PaymentMethod: "PIX"}); err != nil {
		t.Fatalf("put session failed: %v", err)
	}

	reopened := NewLocalStore(dir, testPoll)
	order, err := reopened.GetOrder(ctx, "o1")
	if err != nil || order == nil {
		t.Fatalf("expected order to survive restart, got %v (err %v)", order, err)
	}
	sess, err := reopened.GetSession(ctx, 4)
	if err != nil || sess == nil {
		t.Fatalf("expected session to survive restart, got %v (err %v)", sess, err)
	}
	if sess.PaymentMethod != "PIX" {
		t.Errorf("expected PIX, got %q", sess.PaymentMethod)
	}
}

func TestLocalStore_MalformedFileResets(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "orders.json"), []byte("{not json"), 0o644); err != nil {
		t.Fatalf("write garbage: %v", err)
	}

	store := NewLocalStore(dir, testPoll)
	orders, err := store.ListOrders(context.Background())
	if err != nil {
		t.Fatalf("expected reset, got error: %v", err)
	}
	if len(orders) != 0 {
		t.Errorf("expected empty orders after reset, got %d", len(orders))
	}

	raw, err := os.ReadFile(filepath.Join(dir, "orders.json"))
	if err != nil {
		t.Fatalf("read reset file: %v", err)
	}
	if string(raw) != "[]" {
		t.Errorf("expected key reset to [], got %q", raw)
	}
}

func TestLocalStore_ConfigKeyRoundTrip(t *testing.T) {
	store := NewLocalStore(t.TempDir(), testPoll)

	if _, ok := store.ReadKey(ConfigKey); ok {
		t.Fatal("expected no saved config")
	}
	if err := store.WriteKey(ConfigKey, []byte(`{"addr":"localhost:6379"}`)); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	raw, ok := store.ReadKey(ConfigKey)
	if !ok || string(raw) != `{"addr":"localhost:6379"}` {
		t.Fatalf("unexpected read: %q (ok=%v)", raw, ok)
	}
	if err := store.DeleteKey(ConfigKey); err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	if _, ok := store.ReadKey(ConfigKey); ok {
		t.Error("expected config gone after delete")
	}
}
