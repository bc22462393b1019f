package transcript

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/chatdesk/internal/handoff"
)

func strPtr(s string) *string { return &s }

func TestSessionKey(t *testing.T) {
	assert.Equal(t, "webchat:op1:abc", SessionKey("op1", "abc"))
}

func TestGetOrCreateIsIdempotent(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	key := SessionKey("op1", "s1")

	first, err := store.GetOrCreateConversation(ctx, "op1", key)
	require.NoError(t, err)
	second, err := store.GetOrCreateConversation(ctx, "op1", key)
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, StatusNew, first.Status)
	assert.Equal(t, handoff.StateNone, first.Handoff.State)
}

func TestAppendIsPrefixStable(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	conv, _ := store.GetOrCreateConversation(ctx, "op1", SessionKey("op1", "s1"))

	_, err := store.AppendMessage(ctx, conv.ID, RoleCustomer, "hi")
	require.NoError(t, err)
	before, _ := store.ListMessages(ctx, conv.ID)

	_, err = store.AppendMessage(ctx, conv.ID, RoleAssistant, "hello")
	require.NoError(t, err)
	after, _ := store.ListMessages(ctx, conv.ID)

	require.Len(t, after, 2)
	assert.Equal(t, before[0], after[0])
	assert.Equal(t, 0, after[0].Seq)
	assert.Equal(t, 1, after[1].Seq)

	before[0].Content = "mutated"
	again, _ := store.ListMessages(ctx, conv.ID)
	assert.Equal(t, "hi", again[0].Content)
}

func TestAppendUpdatesCounters(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	conv, _ := store.GetOrCreateConversation(ctx, "op1", SessionKey("op1", "s1"))

	for _, role := range []Role{RoleCustomer, RoleAssistant, RoleOperator, RoleSystem, RoleCustomer} {
		_, err := store.AppendMessage(ctx, conv.ID, role, "x")
		require.NoError(t, err)
	}
	got, _ := store.GetConversation(ctx, conv.ID)
	assert.Equal(t, 5, got.MessageCount)
	assert.Equal(t, 2, got.CustomerMessageCount)
	assert.Equal(t, 1, got.AssistantMessageCount)
	assert.Equal(t, 1, got.OperatorMessageCount)
	assert.NotNil(t, got.LastOperatorMessageAt)
}

func TestAppendRejectsUnknown(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	_, err := store.AppendMessage(ctx, uuid.New(), RoleCustomer, "x")
	assert.True(t, errors.Is(err, ErrConversationNotFound))

	conv, _ := store.GetOrCreateConversation(ctx, "op1", "k")
	_, err = store.AppendMessage(ctx, conv.ID, Role("bot"), "x")
	assert.True(t, errors.Is(err, ErrInvalidRole))
}

func TestConcurrentAppendsGetDistinctSeq(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	conv, _ := store.GetOrCreateConversation(ctx, "op1", "k")

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = store.AppendMessage(ctx, conv.ID, RoleCustomer, "x")
		}()
	}
	wg.Wait()

	msgs, _ := store.ListMessages(ctx, conv.ID)
	require.Len(t, msgs, 20)
	for i, m := range msgs {
		assert.Equal(t, i, m.Seq)
	}
}

func TestUpdateContactFieldsIndependent(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	key := SessionKey("op1", "s1")
	_, _ = store.GetOrCreateConversation(ctx, "op1", key)

	require.NoError(t, store.UpdateContact(ctx, key, ContactUpdate{Email: strPtr("a@b.co"), Phone: strPtr("+15551234567")}))
	require.NoError(t, store.UpdateContact(ctx, key, ContactUpdate{Email: strPtr("new@b.co")}))

	conv, _ := store.GetConversationBySession(ctx, key)
	assert.Equal(t, "new@b.co", conv.Contact.Email)
	assert.Equal(t, "+15551234567", conv.Contact.Phone)

	err := store.UpdateContact(ctx, "missing", ContactUpdate{Email: strPtr("x@y.z")})
	assert.True(t, errors.Is(err, ErrConversationNotFound))
}

func TestSetStatusValidation(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	conv, _ := store.GetOrCreateConversation(ctx, "op1", "k")

	assert.True(t, errors.Is(store.SetStatus(ctx, conv.ID, "closed"), ErrInvalidStatus))
	assert.True(t, errors.Is(store.SetStatus(ctx, uuid.New(), StatusResolved), ErrConversationNotFound))
	require.NoError(t, store.SetStatus(ctx, conv.ID, StatusResolved))
	got, _ := store.GetConversation(ctx, conv.ID)
	assert.Equal(t, StatusResolved, got.Status)
}

func TestMarkAgentRequestedAndHandoff(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	conv, _ := store.GetOrCreateConversation(ctx, "op1", "k")

	require.NoError(t, store.MarkAgentRequested(ctx, "k"))
	snap := handoff.Snapshot{State: handoff.StateContactCaptured, Channel: handoff.ChannelEmail}
	require.NoError(t, store.SaveHandoff(ctx, conv.ID, snap))

	got, _ := store.GetConversation(ctx, conv.ID)
	assert.True(t, got.AgentRequested)
	assert.Equal(t, snap, got.Handoff)
}

func TestListConversationsFilters(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	a, _ := store.GetOrCreateConversation(ctx, "op1", "a")
	_, _ = store.GetOrCreateConversation(ctx, "op1", "b")
	_, _ = store.GetOrCreateConversation(ctx, "op2", "c")
	require.NoError(t, store.SetStatus(ctx, a.ID, StatusResolved))

	all, _ := store.ListConversations(ctx, "op1", ListFilter{})
	assert.Len(t, all, 2)
	resolved, _ := store.ListConversations(ctx, "op1", ListFilter{Status: StatusResolved})
	require.Len(t, resolved, 1)
	assert.Equal(t, a.ID, resolved[0].ID)
}
