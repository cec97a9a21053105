package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"owner_ledger/internal/models"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

const (
	lookupPrefix = "lookups:"
	draftPrefix  = "draft:"
)

type Client struct {
	rdb      *redis.Client
	draftTTL time.Duration
	// session scopes draft keys to this process; row keys restart at 1
	// on every start.
	session string
}

// Draft is an unsaved ledger row kept until it is saved or expires.
// Session names the process whose row Key refers to.
type Draft struct {
	Session string          `json:"session"`
	Key     uint64          `json:"key"`
	Row     json.RawMessage `json:"row"`
	SavedAt time.Time       `json:"saved_at"`
}

func Initialize(redisURL string, draftTTL time.Duration) (*Client, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	rdb := redis.NewClient(opt)

	// Test connection
	ctx := context.Background()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return New(rdb, draftTTL), nil
}

// New wraps an existing go-redis client under a fresh draft session.
func New(rdb *redis.Client, draftTTL time.Duration) *Client {
	return &Client{rdb: rdb, draftTTL: draftTTL, session: uuid.NewString()}
}

// Session identifies the drafts written by this client.
func (c *Client) Session() string {
	return c.session
}

func lookupKey(kind models.LookupKind) string {
	return lookupPrefix + string(kind)
}

func draftKey(session string, key uint64) string {
	return fmt.Sprintf("%s%s:%d", draftPrefix, session, key)
}

// Lookup listing cache
func (c *Client) SetLookups(ctx context.Context, kind models.LookupKind, lookups []models.Lookup, ttl time.Duration) error {
	jsonData, err := json.Marshal(lookups)
	if err != nil {
		return fmt.Errorf("failed to marshal lookups: %w", err)
	}

	return c.rdb.Set(ctx, lookupKey(kind), jsonData, ttl).Err()
}

// GetLookups returns found=false on a cache miss.
func (c *Client) GetLookups(ctx context.Context, kind models.LookupKind) ([]models.Lookup, bool, error) {
	val, err := c.rdb.Get(ctx, lookupKey(kind)).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("failed to get lookups: %w", err)
	}

	var lookups []models.Lookup
	if err := json.Unmarshal([]byte(val), &lookups); err != nil {
		return nil, false, fmt.Errorf("failed to unmarshal lookups: %w", err)
	}
	return lookups, true, nil
}

func (c *Client) InvalidateLookups(ctx context.Context, kinds ...models.LookupKind) error {
	if len(kinds) == 0 {
		return nil
	}
	keys := make([]string, 0, len(kinds))
	for _, k := range kinds {
		keys = append(keys, lookupKey(k))
	}
	return c.rdb.Del(ctx, keys...).Err()
}

// Drafts of unsaved rows. Only this session's drafts are written or
// deleted; ListDrafts returns every session's.
func (c *Client) SetDraft(ctx context.Context, key uint64, row interface{}) error {
	rowData, err := json.Marshal(row)
	if err != nil {
		return fmt.Errorf("failed to marshal draft row: %w", err)
	}
	jsonData, err := json.Marshal(Draft{Session: c.session, Key: key, Row: rowData, SavedAt: time.Now()})
	if err != nil {
		return fmt.Errorf("failed to marshal draft: %w", err)
	}

	return c.rdb.Set(ctx, draftKey(c.session, key), jsonData, c.draftTTL).Err()
}

func (c *Client) DeleteDraft(ctx context.Context, key uint64) error {
	return c.rdb.Del(ctx, draftKey(c.session, key)).Err()
}

func (c *Client) ListDrafts(ctx context.Context) ([]Draft, error) {
	var keys []string
	iter := c.rdb.Scan(ctx, 0, draftPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("failed to scan drafts: %w", err)
	}
	if len(keys) == 0 {
		return nil, nil
	}

	vals, err := c.rdb.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get drafts: %w", err)
	}

	drafts := make([]Draft, 0, len(vals))
	for _, v := range vals {
		s, ok := v.(string)
		if !ok {
			// expired between SCAN and MGET
			continue
		}
		var d Draft
		if err := json.Unmarshal([]byte(s), &d); err != nil {
			return nil, fmt.Errorf("failed to unmarshal draft: %w", err)
		}
		drafts = append(drafts, d)
	}
	return drafts, nil
}

func (c *Client) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

// Close Redis connection
func (c *Client) Close() error {
	return c.rdb.Close()
}
