package cache

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

// DefaultBucket is the KV bucket used when none is configured.
const DefaultBucket = "EVORAO_TAXONOMY_CACHE"

const (
	labelKeyPrefix = "label."
	metaFetchedAt  = "meta.fetched_at"
)

// KVStore keeps one KV entry per label in a NATS JetStream bucket. Labels
// are base64url encoded since KV keys cannot carry spaces.
type KVStore struct {
	kv   jetstream.KeyValue
	conn *nats.Conn
}

// NewKVStore returns a store on bucket, creating the bucket if needed.
func NewKVStore(ctx context.Context, js jetstream.JetStream, bucket string) (*KVStore, error) {
	if bucket == "" {
		bucket = DefaultBucket
	}
	kv, err := getOrCreateBucket(ctx, js, bucket)
	if err != nil {
		return nil, fmt.Errorf("create %s bucket: %w", bucket, err)
	}
	return &KVStore{kv: kv}, nil
}

// DialKVStore connects to the NATS server at url and opens bucket. Close
// releases the connection.
func DialKVStore(ctx context.Context, url, bucket string) (*KVStore, error) {
	if url == "" {
		url = nats.DefaultURL
	}
	nc, err := nats.Connect(url, nats.Name("evorao"))
	if err != nil {
		return nil, fmt.Errorf("connect to %s: %w", url, err)
	}
	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("jetstream: %w", err)
	}
	s, err := NewKVStore(ctx, js, bucket)
	if err != nil {
		nc.Close()
		return nil, err
	}
	s.conn = nc
	return s, nil
}

func getOrCreateBucket(ctx context.Context, js jetstream.JetStream, name string) (jetstream.KeyValue, error) {
	kv, err := js.KeyValue(ctx, name)
	if err == nil {
		return kv, nil
	}
	// Bucket doesn't exist, create it
	return js.CreateKeyValue(ctx, bucketConfig(name))
}

const bucketDescription = "EVORAO taxonomy resolution cache"

func bucketConfig(name string) jetstream.KeyValueConfig {
	return jetstream.KeyValueConfig{
		Bucket:      name,
		Description: bucketDescription,
		History:     1,
	}
}

func (s *KVStore) Driver() Driver { return DriverNATS }

func (s *KVStore) Close() error {
	if s.conn != nil {
		s.conn.Close()
	}
	return nil
}

// Load reads every label entry in the bucket.
func (s *KVStore) Load(ctx context.Context) (*Cache, error) {
	keys, err := s.kv.Keys(ctx)
	if err != nil {
		if errors.Is(err, jetstream.ErrNoKeysFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("list keys: %w", err)
	}

	c := New()
	for _, key := range keys {
		entry, err := s.kv.Get(ctx, key)
		if err != nil {
			if isNotFound(err) {
				continue
			}
			return nil, fmt.Errorf("get %s: %w", key, err)
		}

		if key == metaFetchedAt {
			if t, perr := time.Parse(time.RFC3339Nano, string(entry.Value())); perr == nil {
				c.Stamp(t)
			}
			continue
		}
		label, ok := labelFromKey(key)
		if !ok {
			continue
		}
		c.Set(label, decodeEntry(entry.Value()))
	}
	return c, nil
}

// Save puts every entry. Each put is atomic on its own; entries are never
// removed, so an interrupted save leaves earlier entries intact.
func (s *KVStore) Save(ctx context.Context, c *Cache) error {
	for _, label := range c.Labels() {
		res, _ := c.Lookup(label)
		raw, err := encodeEntry(res)
		if err != nil {
			return fmt.Errorf("encode %q: %w", label, err)
		}
		if _, err := s.kv.Put(ctx, keyForLabel(label), raw); err != nil {
			return fmt.Errorf("put %q: %w", label, err)
		}
	}
	if !c.FetchedAt().IsZero() {
		if _, err := s.kv.PutString(ctx, metaFetchedAt, c.FetchedAt().Format(time.RFC3339Nano)); err != nil {
			return fmt.Errorf("put fetched_at: %w", err)
		}
	}
	return nil
}

func keyForLabel(label string) string {
	return labelKeyPrefix + base64.RawURLEncoding.EncodeToString([]byte(label))
}

func labelFromKey(key string) (string, bool) {
	encoded, ok := strings.CutPrefix(key, labelKeyPrefix)
	if !ok {
		return "", false
	}
	b, err := base64.RawURLEncoding.DecodeString(encoded)
	if err != nil {
		return "", false
	}
	return string(b), true
}

func isNotFound(err error) bool {
	return errors.Is(err, jetstream.ErrKeyNotFound) || errors.Is(err, jetstream.ErrKeyDeleted)
}
