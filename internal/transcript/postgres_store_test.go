package transcript

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/chatdesk/internal/handoff"
)

var fixedNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func newMockStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	store := NewPostgresStore(mock)
	store.now = func() time.Time { return fixedNow }
	return store, mock
}

func conversationRow(id uuid.UUID, key string) *pgxmock.Rows {
	return pgxmock.NewRows([]string{
		"id", "operator_id", "session_key", "status", "agent_requested",
		"contact_email", "contact_phone", "contact_sms", "handoff",
		"message_count", "customer_message_count", "assistant_message_count", "operator_message_count",
		"started_at", "last_message_at", "last_operator_message_at",
	}).AddRow(
		id, "op1", key, "new", false,
		"a@b.co", "", "", []byte(`{"state":"escalation_requested","channel":"email"}`),
		2, 1, 1, 0,
		fixedNow, fixedNow, (*time.Time)(nil),
	)
}

func TestPostgresGetOrCreate(t *testing.T) {
	store, mock := newMockStore(t)
	id := uuid.New()
	key := SessionKey("op1", "s1")

	mock.ExpectExec("INSERT INTO conversations").
		WithArgs(pgxmock.AnyArg(), "op1", key, "new", fixedNow).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectQuery("SELECT (.+) FROM conversations WHERE session_key = \\$1").
		WithArgs(key).
		WillReturnRows(conversationRow(id, key))

	conv, err := store.GetOrCreateConversation(context.Background(), "op1", key)
	require.NoError(t, err)
	assert.Equal(t, id, conv.ID)
	assert.Equal(t, StatusNew, conv.Status)
	assert.Equal(t, "a@b.co", conv.Contact.Email)
	assert.Equal(t, handoff.StateEscalationRequested, conv.Handoff.State)
	assert.Nil(t, conv.LastOperatorMessageAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresGetConversationNotFound(t *testing.T) {
	store, mock := newMockStore(t)
	id := uuid.New()
	mock.ExpectQuery("SELECT (.+) FROM conversations WHERE id = \\$1").
		WithArgs(id).
		WillReturnError(pgx.ErrNoRows)

	_, err := store.GetConversation(context.Background(), id)
	assert.True(t, errors.Is(err, ErrConversationNotFound))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresAppendMessage(t *testing.T) {
	store, mock := newMockStore(t)
	convID := uuid.New()

	mock.ExpectBegin()
	mock.ExpectQuery("UPDATE conversations SET").
		WithArgs(convID, "operator", fixedNow).
		WillReturnRows(pgxmock.NewRows([]string{"message_count"}).AddRow(4))
	mock.ExpectExec("INSERT INTO conversation_messages").
		WithArgs(pgxmock.AnyArg(), convID, 3, "operator", "hello there", fixedNow).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	msg, err := store.AppendMessage(context.Background(), convID, RoleOperator, "hello there")
	require.NoError(t, err)
	assert.Equal(t, 3, msg.Seq)
	assert.Equal(t, RoleOperator, msg.Role)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresAppendUnknownConversation(t *testing.T) {
	store, mock := newMockStore(t)
	convID := uuid.New()

	mock.ExpectBegin()
	mock.ExpectQuery("UPDATE conversations SET").
		WithArgs(convID, "customer", fixedNow).
		WillReturnError(pgx.ErrNoRows)
	mock.ExpectRollback()

	_, err := store.AppendMessage(context.Background(), convID, RoleCustomer, "hi")
	assert.True(t, errors.Is(err, ErrConversationNotFound))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresListMessages(t *testing.T) {
	store, mock := newMockStore(t)
	convID := uuid.New()
	rows := pgxmock.NewRows([]string{"id", "conversation_id", "seq", "role", "content", "created_at"}).
		AddRow(uuid.New(), convID, 0, "customer", "hi", fixedNow).
		AddRow(uuid.New(), convID, 1, "assistant", "hello", fixedNow)
	mock.ExpectQuery("SELECT id, conversation_id, seq, role, content, created_at").
		WithArgs(convID).
		WillReturnRows(rows)

	msgs, err := store.ListMessages(context.Background(), convID)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, RoleAssistant, msgs[1].Role)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresUpdateContactOnlyChangesGivenFields(t *testing.T) {
	store, mock := newMockStore(t)
	email := "a@b.co"
	mock.ExpectExec("UPDATE conversations SET").
		WithArgs("k", &email, (*string)(nil), (*string)(nil), fixedNow).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	require.NoError(t, store.UpdateContact(context.Background(), "k", ContactUpdate{Email: &email}))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresUpdateContactMissing(t *testing.T) {
	store, mock := newMockStore(t)
	phone := "+15551234567"
	mock.ExpectExec("UPDATE conversations SET").
		WithArgs("missing", (*string)(nil), &phone, (*string)(nil), fixedNow).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := store.UpdateContact(context.Background(), "missing", ContactUpdate{Phone: &phone})
	assert.True(t, errors.Is(err, ErrConversationNotFound))
}

func TestPostgresSetStatus(t *testing.T) {
	store, mock := newMockStore(t)
	id := uuid.New()
	mock.ExpectExec("UPDATE conversations SET status").
		WithArgs(id, "resolved", fixedNow).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	require.NoError(t, store.SetStatus(context.Background(), id, StatusResolved))
	assert.True(t, errors.Is(store.SetStatus(context.Background(), id, "archived"), ErrInvalidStatus))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresMarkAgentRequested(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectExec("UPDATE conversations SET agent_requested = TRUE").
		WithArgs("k", fixedNow).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	require.NoError(t, store.MarkAgentRequested(context.Background(), "k"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresSaveHandoff(t *testing.T) {
	store, mock := newMockStore(t)
	id := uuid.New()
	mock.ExpectExec("UPDATE conversations SET handoff").
		WithArgs(id, pgxmock.AnyArg(), fixedNow).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	err := store.SaveHandoff(context.Background(), id, handoff.Snapshot{State: handoff.StateHumanJoined})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresListConversationsWithStatus(t *testing.T) {
	store, mock := newMockStore(t)
	id := uuid.New()
	mock.ExpectQuery("SELECT (.+) FROM conversations WHERE operator_id = \\$1 AND status = \\$2").
		WithArgs("op1", "new").
		WillReturnRows(conversationRow(id, "k"))

	convs, err := store.ListConversations(context.Background(), "op1", ListFilter{Status: StatusNew})
	require.NoError(t, err)
	require.Len(t, convs, 1)
	assert.Equal(t, id, convs[0].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}
