package agent

import (
	"encoding/json"
	"fmt"
	"time"

	bolt "go.etcd.io/bbolt"
)

var checkpointBucket = []byte("checkpoints")

// Checkpointer persists run state keyed by thread id so an interrupted run
// resumes on the next message. Implementations must be safe for concurrent
// use. A nil *BoltCheckpointer is a no-op: runs proceed without durability.
type Checkpointer interface {
	Save(threadID string, state *State) error
	Load(threadID string) (*State, bool, error)
	Delete(threadID string) error
	Close() error
}

// BoltCheckpointer stores one JSON-encoded State per thread id in a bbolt
// key-value file.
type BoltCheckpointer struct {
	db *bolt.DB
}

// NewBoltCheckpointer opens (or creates) the checkpoint file at path.
func NewBoltCheckpointer(path string) (*BoltCheckpointer, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("open checkpoint store: %w", err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(checkpointBucket)
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create checkpoint bucket: %w", err)
	}
	return &BoltCheckpointer{db: db}, nil
}

// Save writes the state for a thread, replacing any previous checkpoint.
func (c *BoltCheckpointer) Save(threadID string, state *State) error {
	if c == nil {
		return nil
	}
	payload, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("encode checkpoint: %w", err)
	}
	return c.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(checkpointBucket).Put([]byte(threadID), payload)
	})
}

// Load returns the checkpointed state for a thread, if any.
func (c *BoltCheckpointer) Load(threadID string) (*State, bool, error) {
	if c == nil {
		return nil, false, nil
	}
	var payload []byte
	err := c.db.View(func(tx *bolt.Tx) error {
		if raw := tx.Bucket(checkpointBucket).Get([]byte(threadID)); raw != nil {
			payload = append([]byte(nil), raw...)
		}
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	if payload == nil {
		return nil, false, nil
	}
	var state State
	if err := json.Unmarshal(payload, &state); err != nil {
		return nil, false, fmt.Errorf("decode checkpoint: %w", err)
	}
	return &state, true, nil
}

// Delete removes a thread's checkpoint. Missing keys are not an error.
func (c *BoltCheckpointer) Delete(threadID string) error {
	if c == nil {
		return nil
	}
	return c.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(checkpointBucket).Delete([]byte(threadID))
	})
}

// Close releases the underlying file.
func (c *BoltCheckpointer) Close() error {
	if c == nil {
		return nil
	}
	return c.db.Close()
}
