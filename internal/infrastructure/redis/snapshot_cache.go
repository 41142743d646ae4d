package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"auction-engine/internal/domain"

	"github.com/go-redis/redis/v8"
)

// Snapshots of closed auctions linger this long for late readers, then the
// store serves them.
const closedSnapshotTTL = 24 * time.Hour

type SnapshotCache struct {
	client *redis.Client
}

func NewSnapshotCache(client *redis.Client) *SnapshotCache {
	return &SnapshotCache{client: client}
}

func snapshotKey(auctionID string) string {
	return fmt.Sprintf("auction:%s:snapshot", auctionID)
}

func (c *SnapshotCache) SetSnapshot(ctx context.Context, snapshot *domain.AuctionSnapshot) error {
	payload, err := json.Marshal(snapshot)
	if err != nil {
		return err
	}

	ttl := time.Duration(0)
	if !snapshot.Active {
		ttl = closedSnapshotTTL
	}
	return c.client.Set(ctx, snapshotKey(snapshot.AuctionID), payload, ttl).Err()
}

// GetSnapshot returns ErrAuctionNotFound on a cache miss; callers fall back
// to the store.
func (c *SnapshotCache) GetSnapshot(ctx context.Context, auctionID string) (*domain.AuctionSnapshot, error) {
	payload, err := c.client.Get(ctx, snapshotKey(auctionID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, domain.ErrAuctionNotFound
		}
		return nil, err
	}

	var snapshot domain.AuctionSnapshot
	if err := json.Unmarshal([]byte(payload), &snapshot); err != nil {
		return nil, err
	}
	return &snapshot, nil
}
