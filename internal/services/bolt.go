package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/pagemate/pagemate/internal/models"
)

const conversationBucket = "conversations"

// BoltStore implements the conversation store on a BoltDB backend, so conversations
// survive coordinator restarts. Each conversation is stored as one JSON value keyed by
// its ID.
type BoltStore struct {
	db *bolt.DB
}

// NewBoltStore creates a new BoltStore backed by the database file at path. It
// initializes the required bucket and returns an error if the database cannot be opened
// or initialized. The database file is created with 0600 permissions if it doesn't
// exist.
func NewBoltStore(path string) (BoltStore, error) {
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return BoltStore{}, fmt.Errorf("failed to open bolt db: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(conversationBucket))
		return err
	})

	return BoltStore{db: db}, err
}

// CreateConversation stores a new conversation record. An existing record under the
// same ID is overwritten; last write wins.
func (b BoltStore) CreateConversation(_ context.Context, conv models.Conversation) error {
	return b.db.Update(func(tx *bolt.Tx) error {
		v, err := json.Marshal(conv)
		if err != nil {
			return fmt.Errorf("failed to marshal conversation: %w", err)
		}
		return tx.Bucket([]byte(conversationBucket)).Put([]byte(conv.ID), v)
	})
}

// Conversation retrieves the conversation stored under id. It returns
// models.ErrConversationNotFound when no record exists.
func (b BoltStore) Conversation(_ context.Context, id string) (models.Conversation, error) {
	var conv models.Conversation
	err := b.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket([]byte(conversationBucket)).Get([]byte(id))
		if v == nil {
			return models.ErrConversationNotFound
		}
		if err := json.Unmarshal(v, &conv); err != nil {
			return fmt.Errorf("failed to unmarshal conversation: %w", err)
		}
		return nil
	})
	return conv, err
}

// AppendMessage appends msg to the conversation stored under id. It returns
// models.ErrConversationNotFound when no record exists; the condition is reported
// upstream rather than silently swallowed.
func (b BoltStore) AppendMessage(_ context.Context, id string, msg models.Message) error {
	return b.db.Update(func(tx *bolt.Tx) error {
		bkt := tx.Bucket([]byte(conversationBucket))

		v := bkt.Get([]byte(id))
		if v == nil {
			return models.ErrConversationNotFound
		}

		var conv models.Conversation
		if err := json.Unmarshal(v, &conv); err != nil {
			return fmt.Errorf("failed to unmarshal conversation: %w", err)
		}

		conv.Messages = append(conv.Messages, msg)

		v, err := json.Marshal(conv)
		if err != nil {
			return fmt.Errorf("failed to marshal conversation: %w", err)
		}
		return bkt.Put([]byte(id), v)
	})
}

// DeleteConversation removes the conversation stored under id. Deleting an unknown ID
// is a no-op.
func (b BoltStore) DeleteConversation(_ context.Context, id string) error {
	return b.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(conversationBucket)).Delete([]byte(id))
	})
}

// ExpireOlderThan removes every conversation whose creation timestamp strictly predates
// threshold and returns the number removed. A conversation created exactly at the
// threshold is retained.
func (b BoltStore) ExpireOlderThan(_ context.Context, threshold time.Time) (int, error) {
	removed := 0
	err := b.db.Update(func(tx *bolt.Tx) error {
		bkt := tx.Bucket([]byte(conversationBucket))

		var expired [][]byte
		err := bkt.ForEach(func(k, v []byte) error {
			var conv models.Conversation
			if err := json.Unmarshal(v, &conv); err != nil {
				// Skip malformed entries instead of failing the whole sweep.
				return nil
			}
			if conv.CreatedAt.Before(threshold) {
				expired = append(expired, append([]byte(nil), k...))
			}
			return nil
		})
		if err != nil {
			return err
		}

		for _, k := range expired {
			if err := bkt.Delete(k); err != nil {
				return err
			}
			removed++
		}
		return nil
	})
	return removed, err
}

// Close releases the underlying database file.
func (b BoltStore) Close() error {
	return b.db.Close()
}
