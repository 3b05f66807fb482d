package conversation

import (
	"context"

	"github.com/rs/zerolog/log"
)

// BestEffort wraps a Store with the swallow-and-log failure policy the chat
// flow requires: losing history degrades answer quality, not correctness, so
// no store failure may abort a user's turn. The policy lives here, once,
// instead of try/log blocks at every call site.
type BestEffort struct {
	store *Store
}

// NewBestEffort wraps the given store.
func NewBestEffort(store *Store) *BestEffort {
	return &BestEffort{store: store}
}

func bestEffort(op, tenantID string, fn func() error) {
	if err := fn(); err != nil {
		log.Warn().Err(err).
			Str("op", op).
			Str("tenant_id", tenantID).
			Msg("conversation_store_degraded")
	}
}

// History returns the bounded conversation history, or nil on storage failure.
func (b *BestEffort) History(ctx context.Context, tenantID, conversationID string, limit int) []Turn {
	var turns []Turn
	bestEffort("history", tenantID, func() error {
		var err error
		turns, err = b.store.History(ctx, tenantID, conversationID, limit)
		return err
	})
	return turns
}

// AppendTurn persists a turn; failures are logged and swallowed.
func (b *BestEffort) AppendTurn(ctx context.Context, tenantID, conversationID string, turn Turn) {
	bestEffort("append_turn", tenantID, func() error {
		return b.store.AppendTurn(ctx, tenantID, conversationID, turn)
	})
}

// WorkingMemory returns the user's note, or "" when absent or on failure.
func (b *BestEffort) WorkingMemory(ctx context.Context, tenantID, userID string) string {
	var content string
	bestEffort("working_memory", tenantID, func() error {
		c, err := b.store.WorkingMemory(ctx, userID)
		if err == ErrMemoryNotFound {
			return nil
		}
		content = c
		return err
	})
	return content
}

// SaveWorkingMemory persists the user's note; failures are logged and swallowed.
func (b *BestEffort) SaveWorkingMemory(ctx context.Context, tenantID, userID, content string) {
	bestEffort("save_working_memory", tenantID, func() error {
		return b.store.SaveWorkingMemory(ctx, tenantID, userID, content)
	})
}
