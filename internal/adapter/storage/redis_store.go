package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"sync"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/vlima/comanda/internal/core/domain"
	"github.com/vlima/comanda/internal/port"
)

const (
	productsKey    = "products"
	ordersKey      = "orders"
	tablesKey      = "tables"
	stockKeyPrefix = "stock:"
	changeChannel  = "comanda:changes"

	// maxDocumentBytes mirrors the document size limit of hosted document
	// stores; in practice only base64 product images ever hit it.
	maxDocumentBytes = 1 << 20
)

var adjustStockScript = redis.NewScript(`
local key = KEYS[1]
local delta = tonumber(ARGV[1])

local current = redis.call('GET', key)
if not current then
	if delta < 0 then
		return 0
	end
	redis.call('SET', key, delta)
	return 1
end

current = tonumber(current)
if current + delta < 0 then
	return 0
end

redis.call('INCRBY', key, delta)
return 1
`)

// RedisStore is the remote backend: one hash per collection holding JSON
// documents, per-product stock counters under stock:<id> so decrements stay
// atomic, and a pub/sub channel as the change feed driving subscriptions.
type RedisStore struct {
	client *redis.Client
}

func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func (r *RedisStore) Close() error {
	return r.client.Close()
}

func (r *RedisStore) notify(ctx context.Context, collection string) {
	if err := r.client.Publish(ctx, changeChannel, collection).Err(); err != nil {
		logrus.WithError(err).WithField("collection", collection).Warn("change notification failed")
	}
}

func (r *RedisStore) ListProducts(ctx context.Context) ([]domain.Product, error) {
	raw, err := r.client.HGetAll(ctx, productsKey).Result()
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}

	products := make([]domain.Product, 0, len(raw))
	stockKeys := make([]string, 0, len(raw))
	for _, doc := range raw {
		var p domain.Product
		if err := json.Unmarshal([]byte(doc), &p); err != nil {
			return nil, fmt.Errorf("decode product: %w", err)
		}
		products = append(products, p)
		stockKeys = append(stockKeys, stockKeyPrefix+p.ID)
	}

	// Stock counters are authoritative; the document copy goes stale as
	// orders decrement.
	if len(stockKeys) > 0 {
		stocks, err := r.client.MGet(ctx, stockKeys...).Result()
		if err != nil {
			return nil, fmt.Errorf("read stock counters: %w", err)
		}
		for i, v := range stocks {
			if s, ok := v.(string); ok {
				if n, err := strconv.Atoi(s); err == nil {
					products[i].Stock = n
				}
			}
		}
	}

	sort.Slice(products, func(i, j int) bool { return products[i].Name < products[j].Name })
	return products, nil
}

func (r *RedisStore) GetProduct(ctx context.Context, id string) (*domain.Product, error) {
	doc, err := r.client.HGet(ctx, productsKey, id).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get product: %w", err)
	}

	var p domain.Product
	if err := json.Unmarshal([]byte(doc), &p); err != nil {
		return nil, fmt.Errorf("decode product: %w", err)
	}
	if stock, err := r.client.Get(ctx, stockKeyPrefix+id).Int(); err == nil {
		p.Stock = stock
	}
	return &p, nil
}

func (r *RedisStore) FindProductByName(ctx context.Context, name string) (*domain.Product, error) {
	products, err := r.ListProducts(ctx)
	if err != nil {
		return nil, err
	}
	for i := range products {
		if products[i].Name == name {
			return &products[i], nil
		}
	}
	return nil, nil
}

func (r *RedisStore) PutProduct(ctx context.Context, p domain.Product) error {
	doc, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("encode product: %w", err)
	}
	if len(doc) > maxDocumentBytes {
		return port.ErrPayloadTooLarge
	}

	pipe := r.client.TxPipeline()
	pipe.HSet(ctx, productsKey, p.ID, doc)
	pipe.Set(ctx, stockKeyPrefix+p.ID, p.Stock, 0)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("put product: %w", err)
	}

	r.notify(ctx, productsKey)
	return nil
}

func (r *RedisStore) DeleteProduct(ctx context.Context, id string) error {
	pipe := r.client.TxPipeline()
	pipe.HDel(ctx, productsKey, id)
	pipe.Del(ctx, stockKeyPrefix+id)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("delete product: %w", err)
	}

	r.notify(ctx, productsKey)
	return nil
}

func (r *RedisStore) AdjustStock(ctx context.Context, productID string, delta int) error {
	key := stockKeyPrefix + productID

	result, err := adjustStockScript.Run(ctx, r.client, []string{key}, delta).Int()
	if err != nil {
		return fmt.Errorf("adjust stock: %w", err)
	}
	if result == 0 {
		return port.ErrInsufficientStock
	}

	r.notify(ctx, productsKey)
	return nil
}

func (r *RedisStore) ListOrders(ctx context.Context) ([]domain.Order, error) {
	raw, err := r.client.HGetAll(ctx, ordersKey).Result()
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}

	orders := make([]domain.Order, 0, len(raw))
	for _, doc := range raw {
		var o domain.Order
		if err := json.Unmarshal([]byte(doc), &o); err != nil {
			return nil, fmt.Errorf("decode order: %w", err)
		}
		orders = append(orders, o)
	}

	sort.Slice(orders, func(i, j int) bool { return orders[i].Timestamp.After(orders[j].Timestamp) })
	return orders, nil
}

func (r *RedisStore) GetOrder(ctx context.Context, id string) (*domain.Order, error) {
	doc, err := r.client.HGet(ctx, ordersKey, id).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get order: %w", err)
	}

	var o domain.Order
	if err := json.Unmarshal([]byte(doc), &o); err != nil {
		return nil, fmt.Errorf("decode order: %w", err)
	}
	return &o, nil
}

func (r *RedisStore) PutOrder(ctx context.Context, o domain.Order) error {
	doc, err := json.Marshal(o)
	if err != nil {
		return fmt.Errorf("encode order: %w", err)
	}
	if len(doc) > maxDocumentBytes {
		return port.ErrPayloadTooLarge
	}
	if err := r.client.HSet(ctx, ordersKey, o.ID, doc).Err(); err != nil {
		return fmt.Errorf("put order: %w", err)
	}

	r.notify(ctx, ordersKey)
	return nil
}

func (r *RedisStore) GetSession(ctx context.Context, tableID int) (*domain.TableSession, error) {
	doc, err := r.client.HGet(ctx, tablesKey, strconv.Itoa(tableID)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}

	var s domain.TableSession
	if err := json.Unmarshal([]byte(doc), &s); err != nil {
		return nil, fmt.Errorf("decode session: %w", err)
	}
	return &s, nil
}

func (r *RedisStore) PutSession(ctx context.Context, s domain.TableSession) error {
	doc, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	if err := r.client.HSet(ctx, tablesKey, strconv.Itoa(s.TableID), doc).Err(); err != nil {
		return fmt.Errorf("put session: %w", err)
	}

	r.notify(ctx, tablesKey)
	return nil
}

func (r *RedisStore) DeleteSession(ctx context.Context, tableID int) error {
	if err := r.client.HDel(ctx, tablesKey, strconv.Itoa(tableID)).Err(); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}

	r.notify(ctx, tablesKey)
	return nil
}

func (r *RedisStore) ListSessions(ctx context.Context) (map[int]domain.TableSession, error) {
	raw, err := r.client.HGetAll(ctx, tablesKey).Result()
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}

	sessions := make(map[int]domain.TableSession, len(raw))
	for field, doc := range raw {
		tableID, err := strconv.Atoi(field)
		if err != nil {
			continue
		}
		var s domain.TableSession
		if err := json.Unmarshal([]byte(doc), &s); err != nil {
			return nil, fmt.Errorf("decode session: %w", err)
		}
		sessions[tableID] = s
	}
	return sessions, nil
}

func (r *RedisStore) SubscribeProducts(ctx context.Context, fn func([]domain.Product)) (port.CancelFunc, error) {
	return r.subscribe(ctx, productsKey, func(ctx context.Context) error {
		products, err := r.ListProducts(ctx)
		if err != nil {
			return err
		}
		fn(products)
		return nil
	})
}

func (r *RedisStore) SubscribeOrders(ctx context.Context, fn func([]domain.Order)) (port.CancelFunc, error) {
	return r.subscribe(ctx, ordersKey, func(ctx context.Context) error {
		orders, err := r.ListOrders(ctx)
		if err != nil {
			return err
		}
		fn(orders)
		return nil
	})
}

func (r *RedisStore) SubscribeSessions(ctx context.Context, fn func(map[int]domain.TableSession)) (port.CancelFunc, error) {
	return r.subscribe(ctx, tablesKey, func(ctx context.Context) error {
		sessions, err := r.ListSessions(ctx)
		if err != nil {
			return err
		}
		fn(sessions)
		return nil
	})
}

// subscribe delivers an initial snapshot, then a fresh one for every change
// notification touching the collection. A failed read skips that cycle; the
// feed itself stays alive until the cancel func runs.
func (r *RedisStore) subscribe(ctx context.Context, collection string, emit func(context.Context) error) (port.CancelFunc, error) {
	pubsub := r.client.Subscribe(ctx, changeChannel)
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return nil, fmt.Errorf("subscribe %s: %w", collection, err)
	}

	done := make(chan struct{})
	go func() {
		if err := emit(ctx); err != nil {
			logrus.WithError(err).WithField("collection", collection).Warn("snapshot read failed")
		}
		ch := pubsub.Channel()
		for {
			select {
			case <-done:
				return
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				if msg.Payload != collection {
					continue
				}
				if err := emit(ctx); err != nil {
					logrus.WithError(err).WithField("collection", collection).Warn("snapshot read failed")
				}
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			close(done)
			pubsub.Close()
		})
	}, nil
}
