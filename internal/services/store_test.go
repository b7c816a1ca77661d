package services_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/pagemate/pagemate/internal/models"
	"github.com/pagemate/pagemate/internal/services"
)

// conversationStore is the store surface the coordinator depends on; both backends
// must behave identically against it.
type conversationStore interface {
	CreateConversation(ctx context.Context, conv models.Conversation) error
	Conversation(ctx context.Context, id string) (models.Conversation, error)
	AppendMessage(ctx context.Context, id string, msg models.Message) error
	DeleteConversation(ctx context.Context, id string) error
	ExpireOlderThan(ctx context.Context, threshold time.Time) (int, error)
}

func testStores(t *testing.T) map[string]conversationStore {
	t.Helper()

	boltStore, err := services.NewBoltStore(filepath.Join(t.TempDir(), "store.db"))
	if err != nil {
		t.Fatalf("NewBoltStore() error = %v", err)
	}
	t.Cleanup(func() {
		if err := boltStore.Close(); err != nil {
			t.Errorf("Close() error = %v", err)
		}
	})

	return map[string]conversationStore{
		"bolt":   boltStore,
		"memory": services.NewMemoryStore(),
	}
}

func TestStoreCreateAndGet(t *testing.T) {
	for name, store := range testStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			conv := models.Conversation{
				ID:         "conv-1",
				SourceText: "Long article body...",
				Messages: []models.Message{
					{Role: models.RoleSystem, Content: "You are a helpful assistant."},
					{Role: models.RoleUser, Content: "Summarize:\n\nLong article body..."},
				},
				CreatedAt: time.Now().UTC().Truncate(time.Second),
			}
			if err := store.CreateConversation(ctx, conv); err != nil {
				t.Fatalf("CreateConversation() error = %v", err)
			}

			got, err := store.Conversation(ctx, "conv-1")
			if err != nil {
				t.Fatalf("Conversation() error = %v", err)
			}
			if got.SourceText != conv.SourceText {
				t.Errorf("SourceText = %q, want %q", got.SourceText, conv.SourceText)
			}
			if len(got.Messages) != 2 {
				t.Fatalf("len(Messages) = %d, want 2", len(got.Messages))
			}
			if !got.CreatedAt.Equal(conv.CreatedAt) {
				t.Errorf("CreatedAt = %v, want %v", got.CreatedAt, conv.CreatedAt)
			}

			if _, err := store.Conversation(ctx, "no-such-id"); !errors.Is(err, models.ErrConversationNotFound) {
				t.Errorf("Conversation(unknown) error = %v, want ErrConversationNotFound", err)
			}
		})
	}
}

func TestStoreCreateOverwrites(t *testing.T) {
	for name, store := range testStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			first := models.Conversation{ID: "conv-1", SourceText: "first", CreatedAt: time.Now()}
			second := models.Conversation{ID: "conv-1", SourceText: "second", CreatedAt: time.Now()}

			if err := store.CreateConversation(ctx, first); err != nil {
				t.Fatal(err)
			}
			if err := store.CreateConversation(ctx, second); err != nil {
				t.Fatal(err)
			}

			got, err := store.Conversation(ctx, "conv-1")
			if err != nil {
				t.Fatal(err)
			}
			// Last write wins.
			if got.SourceText != "second" {
				t.Errorf("SourceText = %q, want %q", got.SourceText, "second")
			}
		})
	}
}

func TestStoreAppendMessage(t *testing.T) {
	for name, store := range testStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			conv := models.Conversation{
				ID:        "conv-1",
				Messages:  []models.Message{{Role: models.RoleUser, Content: "hello"}},
				CreatedAt: time.Now(),
			}
			if err := store.CreateConversation(ctx, conv); err != nil {
				t.Fatal(err)
			}

			assistant := models.Message{Role: models.RoleAssistant, Content: "hi there"}
			if err := store.AppendMessage(ctx, "conv-1", assistant); err != nil {
				t.Fatalf("AppendMessage() error = %v", err)
			}

			got, err := store.Conversation(ctx, "conv-1")
			if err != nil {
				t.Fatal(err)
			}
			if len(got.Messages) != 2 {
				t.Fatalf("len(Messages) = %d, want 2", len(got.Messages))
			}
			if got.Messages[1] != assistant {
				t.Errorf("Messages[1] = %+v, want %+v", got.Messages[1], assistant)
			}

			err = store.AppendMessage(ctx, "no-such-id", assistant)
			if !errors.Is(err, models.ErrConversationNotFound) {
				t.Errorf("AppendMessage(unknown) error = %v, want ErrConversationNotFound", err)
			}
		})
	}
}

func TestStoreDeleteConversation(t *testing.T) {
	for name, store := range testStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			if err := store.CreateConversation(ctx, models.Conversation{ID: "conv-1", CreatedAt: time.Now()}); err != nil {
				t.Fatal(err)
			}
			if err := store.DeleteConversation(ctx, "conv-1"); err != nil {
				t.Fatalf("DeleteConversation() error = %v", err)
			}
			if _, err := store.Conversation(ctx, "conv-1"); !errors.Is(err, models.ErrConversationNotFound) {
				t.Errorf("Conversation(deleted) error = %v, want ErrConversationNotFound", err)
			}

			// Deleting an unknown ID is a no-op.
			if err := store.DeleteConversation(ctx, "no-such-id"); err != nil {
				t.Errorf("DeleteConversation(unknown) error = %v", err)
			}
		})
	}
}

func TestStoreExpireOlderThan(t *testing.T) {
	for name, store := range testStores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			threshold := time.Now().AddDate(0, 0, -7)

			conversations := []models.Conversation{
				{ID: "stale", CreatedAt: threshold.Add(-time.Second)},
				{ID: "boundary", CreatedAt: threshold},
				{ID: "fresh", CreatedAt: threshold.Add(time.Hour)},
			}
			for _, conv := range conversations {
				if err := store.CreateConversation(ctx, conv); err != nil {
					t.Fatal(err)
				}
			}

			removed, err := store.ExpireOlderThan(ctx, threshold)
			if err != nil {
				t.Fatalf("ExpireOlderThan() error = %v", err)
			}
			if removed != 1 {
				t.Errorf("removed = %d, want 1", removed)
			}

			if _, err := store.Conversation(ctx, "stale"); !errors.Is(err, models.ErrConversationNotFound) {
				t.Errorf("stale conversation should be removed, got err = %v", err)
			}
			// A conversation created exactly at the threshold is retained.
			if _, err := store.Conversation(ctx, "boundary"); err != nil {
				t.Errorf("boundary conversation should be retained, got err = %v", err)
			}
			if _, err := store.Conversation(ctx, "fresh"); err != nil {
				t.Errorf("fresh conversation should be retained, got err = %v", err)
			}
		})
	}
}
