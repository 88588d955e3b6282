package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/nqvinh/inventory-core/internal/core/domain"
)

const (
	levelKeyPrefix = "level:"
	levelTTL       = 1 * time.Hour
	alertChannel   = "inventory:alerts"
)

// RedisAdapter caches current stock levels for the dashboard read path
// and publishes alert notifications. The ledger store stays the source
// of truth; every cached entry expires.
type RedisAdapter struct {
	client *redis.Client
}

func NewRedisAdapter(client *redis.Client) *RedisAdapter {
	return &RedisAdapter{client: client}
}

func levelKey(productID, warehouseID string) string {
	return levelKeyPrefix + productID + ":" + warehouseID
}

func (r *RedisAdapter) SetLevel(ctx context.Context, productID, warehouseID string, quantity int, version int64) error {
	value := fmt.Sprintf("%d|%d", quantity, version)
	return r.client.Set(ctx, levelKey(productID, warehouseID), value, levelTTL).Err()
}

func (r *RedisAdapter) GetLevel(ctx context.Context, productID, warehouseID string) (int, int64, bool, error) {
	value, err := r.client.Get(ctx, levelKey(productID, warehouseID)).Result()
	if errors.Is(err, redis.Nil) {
		return 0, 0, false, nil
	}
	if err != nil {
		return 0, 0, false, err
	}

	quantityPart, versionPart, ok := strings.Cut(value, "|")
	if !ok {
		return 0, 0, false, fmt.Errorf("malformed level entry %q", value)
	}
	quantity, err := strconv.Atoi(quantityPart)
	if err != nil {
		return 0, 0, false, fmt.Errorf("malformed level entry %q", value)
	}
	version, err := strconv.ParseInt(versionPart, 10, 64)
	if err != nil {
		return 0, 0, false, fmt.Errorf("malformed level entry %q", value)
	}

	return quantity, version, true, nil
}

type alertPayload struct {
	ProductID   string `json:"product_id"`
	WarehouseID string `json:"warehouse_id"`
	Quantity    int    `json:"quantity"`
	Threshold   int    `json:"threshold"`
	Kind        string `json:"kind"`
	EmittedAt   string `json:"emitted_at"`
}

func (r *RedisAdapter) Notify(ctx context.Context, n domain.AlertNotification) error {
	payload, err := json.Marshal(alertPayload{
		ProductID:   n.ProductID,
		WarehouseID: n.WarehouseID,
		Quantity:    n.Quantity,
		Threshold:   n.Threshold,
		Kind:        string(n.Kind),
		EmittedAt:   n.EmittedAt.Format(time.RFC3339Nano),
	})
	if err != nil {
		return fmt.Errorf("marshal alert: %w", err)
	}

	return r.client.Publish(ctx, alertChannel, payload).Err()
}
