package redisclient

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	refPrefix = "EV-"

	// refMinTTL keeps counters for past or same-day dates alive long
	// enough to avoid handing out a number twice.
	refMinTTL = 72 * time.Hour
)

// ReferenceIssuer hands out human-readable booking references.
type ReferenceIssuer interface {
	Next(ctx context.Context, clinicID uuid.UUID, date time.Time) (string, error)
}

// RedisReferences numbers bookings per clinic and appointment date, giving
// codes like EV-20261020-0007.
type RedisReferences struct {
	client *redis.Client
}

func NewReferenceIssuer(client *redis.Client) *RedisReferences {
	return &RedisReferences{client: client}
}

func (r *RedisReferences) Next(ctx context.Context, clinicID uuid.UUID, date time.Time) (string, error) {
	day := date.Format("20060102")
	key := fmt.Sprintf("refcode:%s:%s", clinicID, day)

	pipe := r.client.TxPipeline()
	incr := pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, counterTTL(date))
	if _, err := pipe.Exec(ctx); err != nil {
		return "", fmt.Errorf("next reference: %w", err)
	}

	return fmt.Sprintf("%s%s-%04d", refPrefix, day, incr.Val()), nil
}

// counterTTL keeps the counter until two days after the appointment date,
// which covers the end of that day in every timezone.
func counterTTL(date time.Time) time.Duration {
	ttl := time.Until(date.AddDate(0, 0, 2))
	if ttl < refMinTTL {
		return refMinTTL
	}
	return ttl
}

// RandomReference is used when no counter is reachable. Collisions are
// possible, so callers re-roll on a unique violation.
func RandomReference(date time.Time) string {
	var suffix int64
	n, err := rand.Int(rand.Reader, big.NewInt(1_000_000))
	if err != nil {
		suffix = time.Now().UnixNano() % 1_000_000
	} else {
		suffix = n.Int64()
	}
	return fmt.Sprintf("%s%s-%06d", refPrefix, date.Format("20060102"), suffix)
}

// RandomReferences issues random codes without a counter.
type RandomReferences struct{}

func (RandomReferences) Next(_ context.Context, _ uuid.UUID, date time.Time) (string, error) {
	return RandomReference(date), nil
}
