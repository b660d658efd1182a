package params

import (
	"errors"
	"fmt"

	"github.com/nats-io/nats.go"
)

// KV is a Store backed by a JetStream key/value bucket, so flags written by
// the engine are visible to UI processes on other hosts.
type KV struct {
	kv nats.KeyValue
}

// NewKV binds to bucket, creating it when it does not exist yet.
func NewKV(nc *nats.Conn, bucket string) (*KV, error) {
	if nc == nil {
		return nil, errors.New("nats connection is required")
	}
	js, err := nc.JetStream()
	if err != nil {
		return nil, fmt.Errorf("jetstream: %w", err)
	}
	kv, err := js.KeyValue(bucket)
	if errors.Is(err, nats.ErrBucketNotFound) {
		kv, err = js.CreateKeyValue(&nats.KeyValueConfig{
			Bucket:      bucket,
			Description: "drive-events volatile flags",
			History:     1,
			Storage:     nats.MemoryStorage,
		})
	}
	if err != nil {
		return nil, fmt.Errorf("bind kv bucket %s: %w", bucket, err)
	}
	return &KV{kv: kv}, nil
}

func (s *KV) Get(key string) (string, error) {
	entry, err := s.kv.Get(key)
	if err != nil {
		if errors.Is(err, nats.ErrKeyNotFound) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("kv get %s: %w", key, err)
	}
	return string(entry.Value()), nil
}

func (s *KV) Put(key, value string) error {
	if _, err := s.kv.PutString(key, value); err != nil {
		return fmt.Errorf("kv put %s: %w", key, err)
	}
	return nil
}

func (s *KV) Remove(key string) error {
	if err := s.kv.Delete(key); err != nil && !errors.Is(err, nats.ErrKeyNotFound) {
		return fmt.Errorf("kv delete %s: %w", key, err)
	}
	return nil
}
