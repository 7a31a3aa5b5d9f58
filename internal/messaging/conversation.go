package messaging

import (
	"context"
	"encoding/json"
)

// ConversationCache stores encoded conversation listings keyed by the
// unordered pair of participants.
type ConversationCache interface {
	Get(ctx context.Context, userA, userB int) ([]byte, bool, error)
	Set(ctx context.Context, userA, userB int, payload []byte) error
	Invalidate(ctx context.Context, userA, userB int) error
	InvalidateUser(ctx context.Context, userId int) error
}

// ListConversation returns the top-level messages exchanged between two
// users, oldest first, each with its full reply tree. The listing is read in
// one query and served from the conversation cache when one is configured.
func (e *Engine) ListConversation(ctx context.Context, userId, otherUserId int) ([]*ThreadNode, error) {
	if err := validateId("user", userId); err != nil {
		return nil, err
	}
	if err := validateId("other user", otherUserId); err != nil {
		return nil, err
	}

	if roots, ok := e.cachedConversation(ctx, userId, otherUserId); ok {
		return roots, nil
	}

	for _, id := range []int{userId, otherUserId} {
		if err := e.requireUser(ctx, e.repo, id); err != nil {
			return nil, err
		}
	}

	rows, err := e.repo.GetConversationMessages(ctx, userId, otherUserId, e.maxDepth+1)
	if err != nil {
		return nil, err
	}

	roots, err := linkThreadRows(0, rows, e.maxDepth)
	if err != nil {
		e.log.Printf("conversation %d/%d: %v", userId, otherUserId, err)
		return nil, err
	}

	e.storeConversation(ctx, userId, otherUserId, roots)
	return roots, nil
}

func (e *Engine) cachedConversation(ctx context.Context, userA, userB int) ([]*ThreadNode, bool) {
	if e.cache == nil {
		return nil, false
	}

	payload, ok, err := e.cache.Get(ctx, userA, userB)
	if err != nil {
		e.log.Printf("conversation cache get %d/%d: %v", userA, userB, err)
		return nil, false
	}
	if !ok {
		return nil, false
	}

	var roots []*ThreadNode
	if err := json.Unmarshal(payload, &roots); err != nil {
		e.log.Printf("conversation cache decode %d/%d: %v", userA, userB, err)
		return nil, false
	}
	return roots, true
}

func (e *Engine) storeConversation(ctx context.Context, userA, userB int, roots []*ThreadNode) {
	if e.cache == nil {
		return
	}

	payload, err := json.Marshal(roots)
	if err != nil {
		e.log.Printf("conversation cache encode %d/%d: %v", userA, userB, err)
		return
	}
	if err := e.cache.Set(ctx, userA, userB, payload); err != nil {
		e.log.Printf("conversation cache set %d/%d: %v", userA, userB, err)
	}
}

// Cache failures never fail a write; entries also expire on their own.
func (e *Engine) invalidateConversation(ctx context.Context, userA, userB int) {
	if e.cache == nil {
		return
	}
	if err := e.cache.Invalidate(ctx, userA, userB); err != nil {
		e.log.Printf("conversation cache invalidate %d/%d: %v", userA, userB, err)
	}
}

func (e *Engine) invalidateUser(ctx context.Context, userId int) {
	if e.cache == nil {
		return
	}
	if err := e.cache.InvalidateUser(ctx, userId); err != nil {
		e.log.Printf("conversation cache invalidate user %d: %v", userId, err)
	}
}
