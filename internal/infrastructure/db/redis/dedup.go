package redis

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

const dedupTTL = 24 * time.Hour

// DedupChecker remembers recently credited deposit references.
// Key format: dedup:deposit:<reference>
type DedupChecker struct {
	client *redis.Client
}

// NewDedupChecker creates a DedupChecker wrapping the given Redis client.
func NewDedupChecker(client *redis.Client) *DedupChecker {
	return &DedupChecker{client: client}
}

// IsApplied reports whether the deposit reference was already credited.
func (d *DedupChecker) IsApplied(ctx context.Context, reference string) (bool, error) {
	n, err := d.client.Exists(ctx, d.key(reference)).Result()
	if err != nil {
		return false, remoteErr("dedup check", err)
	}
	return n > 0, nil
}

// MarkApplied records that the reference was credited (expires after dedupTTL).
func (d *DedupChecker) MarkApplied(ctx context.Context, reference string) error {
	return d.client.Set(ctx, d.key(reference), "1", dedupTTL).Err()
}

func (d *DedupChecker) key(reference string) string {
	return "dedup:deposit:" + reference
}
