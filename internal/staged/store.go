// Package staged persists reservations awaiting payment confirmation
// in Redis.  Records are keyed by the provider token and carry a TTL;
// a staged reservation that never receives its callback simply ages
// out and is discarded, so expiry is a property of the store rather
// than of any in-process session.
package staged

import (
    "context"
    "encoding/json"
    "errors"
    "fmt"
    "time"

    "github.com/redis/go-redis/v9"

    "github.com/happyhu/event-booking/internal/model"
)

// ErrNotFound is returned when a token does not resolve to a staged
// reservation, either because it never existed or because it expired.
var ErrNotFound = errors.New("staged reservation not found")

// Store wraps a Redis client with the staged-reservation schema.
type Store struct {
    rdb *redis.Client
    ttl time.Duration
}

// New returns a Store using the given client and record TTL.
func New(rdb *redis.Client, ttl time.Duration) *Store {
    return &Store{rdb: rdb, ttl: ttl}
}

func key(token string) string { return "staged:" + token }

// Put stores a staged reservation under its token with the configured
// TTL, overwriting any previous record for the same token.
func (s *Store) Put(ctx context.Context, r *model.StagedReservation) error {
    raw, err := json.Marshal(r)
    if err != nil {
        return fmt.Errorf("staged: encode %s: %w", r.Token, err)
    }
    if err := s.rdb.Set(ctx, key(r.Token), raw, s.ttl).Err(); err != nil {
        return fmt.Errorf("staged: store %s: %w", r.Token, err)
    }
    return nil
}

// Get resolves a token to its staged reservation.
func (s *Store) Get(ctx context.Context, token string) (*model.StagedReservation, error) {
    raw, err := s.rdb.Get(ctx, key(token)).Bytes()
    if err != nil {
        if err == redis.Nil {
            return nil, ErrNotFound
        }
        return nil, fmt.Errorf("staged: load %s: %w", token, err)
    }
    var r model.StagedReservation
    if err := json.Unmarshal(raw, &r); err != nil {
        return nil, fmt.Errorf("staged: decode %s: %w", token, err)
    }
    return &r, nil
}

// Save rewrites an existing record, keeping whatever TTL remains so a
// resolved record expires on the schedule set when it was staged.
func (s *Store) Save(ctx context.Context, r *model.StagedReservation) error {
    raw, err := json.Marshal(r)
    if err != nil {
        return fmt.Errorf("staged: encode %s: %w", r.Token, err)
    }
    ok, err := s.rdb.SetXX(ctx, key(r.Token), raw, redis.KeepTTL).Result()
    if err != nil {
        return fmt.Errorf("staged: update %s: %w", r.Token, err)
    }
    if !ok {
        return ErrNotFound
    }
    return nil
}

// Delete discards a staged reservation.  Deleting an unknown token is
// not an error.
func (s *Store) Delete(ctx context.Context, token string) error {
    if err := s.rdb.Del(ctx, key(token)).Err(); err != nil {
        return fmt.Errorf("staged: delete %s: %w", token, err)
    }
    return nil
}
