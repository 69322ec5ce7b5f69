package broadcast

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
)

const presencePrefix = "collab:presence:"

// PresenceStore keeps each room's latest presence set in a Redis hash so a
// joining client can seed its collaborator cache without waiting for the
// next broadcast. Entries are ephemeral; the hash expires with the room's
// TTL and a periodic sweep drops records whose last_seen went stale.
type PresenceStore struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewPresenceStore(rdb *redis.Client, ttl time.Duration) *PresenceStore {
	return &PresenceStore{rdb: rdb, ttl: ttl}
}

// Set writes one user's presence record and refreshes the room TTL.
func (s *PresenceStore) Set(ctx context.Context, room, userID string, state interface{}) error {
	raw, err := json.Marshal(state)
	if err != nil {
		return err
	}
	key := presencePrefix + room
	pipe := s.rdb.Pipeline()
	pipe.HSet(ctx, key, userID, raw)
	pipe.Expire(ctx, key, s.ttl)
	_, err = pipe.Exec(ctx)
	return err
}

// Remove drops one user's record from the room.
func (s *PresenceStore) Remove(ctx context.Context, room, userID string) error {
	return s.rdb.HDel(ctx, presencePrefix+room, userID).Err()
}

// All returns the room's full presence set keyed by user id.
func (s *PresenceStore) All(ctx context.Context, room string) (map[string]json.RawMessage, error) {
	raw, err := s.rdb.HGetAll(ctx, presencePrefix+room).Result()
	if err != nil {
		return nil, err
	}
	out := make(map[string]json.RawMessage, len(raw))
	for userID, v := range raw {
		out[userID] = json.RawMessage(v)
	}
	return out, nil
}

// Sweep removes presence records across all rooms whose last_seen is older
// than maxAge. A crashed client leaves its record behind; this is the
// clean-up path for those.
func (s *PresenceStore) Sweep(ctx context.Context, maxAge time.Duration) (int, error) {
	cutoff := time.Now().Add(-maxAge)
	removed := 0

	iter := s.rdb.Scan(ctx, 0, presencePrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()
		entries, err := s.rdb.HGetAll(ctx, key).Result()
		if err != nil {
			return removed, err
		}
		for userID, raw := range entries {
			var rec struct {
				LastSeen time.Time `json:"last_seen"`
			}
			if err := json.Unmarshal([]byte(raw), &rec); err != nil || rec.LastSeen.Before(cutoff) {
				if err := s.rdb.HDel(ctx, key, userID).Err(); err != nil {
					return removed, err
				}
				removed++
			}
		}
	}
	return removed, iter.Err()
}
