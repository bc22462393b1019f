package transcript

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/wolfman30/chatdesk/internal/handoff"
)

// PgxPool is the subset of pgxpool.Pool the store needs.
type PgxPool interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

const conversationColumns = `id, operator_id, session_key, status, agent_requested,
	contact_email, contact_phone, contact_sms, handoff,
	message_count, customer_message_count, assistant_message_count, operator_message_count,
	started_at, last_message_at, last_operator_message_at`

// PostgresStore persists conversations and messages in Postgres.
type PostgresStore struct {
	pool   PgxPool
	tracer trace.Tracer
	now    func() time.Time
}

// NewPostgresStore wraps a pgx pool.
func NewPostgresStore(pool PgxPool) *PostgresStore {
	if pool == nil {
		return nil
	}
	return &PostgresStore{
		pool:   pool,
		tracer: otel.Tracer("chatdesk.internal.transcript"),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

func scanConversation(row pgx.Row) (*Conversation, error) {
	var (
		conv        Conversation
		status      string
		handoffJSON []byte
	)
	err := row.Scan(
		&conv.ID, &conv.OperatorID, &conv.SessionKey, &status, &conv.AgentRequested,
		&conv.Contact.Email, &conv.Contact.Phone, &conv.Contact.SMSNumber, &handoffJSON,
		&conv.MessageCount, &conv.CustomerMessageCount, &conv.AssistantMessageCount, &conv.OperatorMessageCount,
		&conv.StartedAt, &conv.LastMessageAt, &conv.LastOperatorMessageAt,
	)
	if err != nil {
		return nil, err
	}
	conv.Status = Status(status)
	if len(handoffJSON) > 0 {
		if err := json.Unmarshal(handoffJSON, &conv.Handoff); err != nil {
			return nil, fmt.Errorf("transcript: decode handoff: %w", err)
		}
	}
	if conv.Handoff.State == "" {
		conv.Handoff.State = handoff.StateNone
	}
	return &conv, nil
}

func (s *PostgresStore) GetOrCreateConversation(ctx context.Context, operatorID, sessionKey string) (*Conversation, error) {
	ctx, span := s.tracer.Start(ctx, "transcript.get_or_create")
	defer span.End()
	span.SetAttributes(attribute.String("chatdesk.session_key", sessionKey))

	now := s.now()
	_, err := s.pool.Exec(ctx, `
		INSERT INTO conversations (id, operator_id, session_key, status, started_at, last_message_at)
		VALUES ($1, $2, $3, $4, $5, $5)
		ON CONFLICT (session_key) DO NOTHING
	`, uuid.New(), operatorID, sessionKey, string(StatusNew), now)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("transcript: create conversation: %w", err)
	}
	return s.GetConversationBySession(ctx, sessionKey)
}

func (s *PostgresStore) GetConversation(ctx context.Context, id uuid.UUID) (*Conversation, error) {
	conv, err := scanConversation(s.pool.QueryRow(ctx,
		`SELECT `+conversationColumns+` FROM conversations WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrConversationNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("transcript: get conversation: %w", err)
	}
	return conv, nil
}

func (s *PostgresStore) GetConversationBySession(ctx context.Context, sessionKey string) (*Conversation, error) {
	conv, err := scanConversation(s.pool.QueryRow(ctx,
		`SELECT `+conversationColumns+` FROM conversations WHERE session_key = $1`, sessionKey))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrConversationNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("transcript: get conversation by session: %w", err)
	}
	return conv, nil
}

// AppendMessage bumps the conversation counters and inserts the message in
// one transaction. The counter update takes the row lock, so seq values are
// dense and never reused.
func (s *PostgresStore) AppendMessage(ctx context.Context, conversationID uuid.UUID, role Role, content string) (*Message, error) {
	if !role.Valid() {
		return nil, ErrInvalidRole
	}
	ctx, span := s.tracer.Start(ctx, "transcript.append_message")
	defer span.End()
	span.SetAttributes(attribute.String("chatdesk.role", string(role)))

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("transcript: begin append: %w", err)
	}
	defer tx.Rollback(ctx)

	now := s.now()
	var count int
	err = tx.QueryRow(ctx, `
		UPDATE conversations SET
			message_count = message_count + 1,
			customer_message_count = customer_message_count + CASE WHEN $2 = 'customer' THEN 1 ELSE 0 END,
			assistant_message_count = assistant_message_count + CASE WHEN $2 = 'assistant' THEN 1 ELSE 0 END,
			operator_message_count = operator_message_count + CASE WHEN $2 = 'operator' THEN 1 ELSE 0 END,
			last_message_at = $3,
			last_operator_message_at = CASE WHEN $2 = 'operator' THEN $3 ELSE last_operator_message_at END,
			updated_at = $3
		WHERE id = $1
		RETURNING message_count
	`, conversationID, string(role), now).Scan(&count)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrConversationNotFound
	}
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("transcript: bump counters: %w", err)
	}

	msg := &Message{
		ID:             uuid.New(),
		ConversationID: conversationID,
		Seq:            count - 1,
		Role:           role,
		Content:        content,
		CreatedAt:      now,
	}
	if _, err := tx.Exec(ctx, `
		INSERT INTO conversation_messages (id, conversation_id, seq, role, content, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, msg.ID, msg.ConversationID, msg.Seq, string(msg.Role), msg.Content, msg.CreatedAt); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("transcript: insert message: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("transcript: commit append: %w", err)
	}
	return msg, nil
}

func (s *PostgresStore) ListMessages(ctx context.Context, conversationID uuid.UUID) ([]Message, error) {
	ctx, span := s.tracer.Start(ctx, "transcript.list_messages")
	defer span.End()

	rows, err := s.pool.Query(ctx, `
		SELECT id, conversation_id, seq, role, content, created_at
		FROM conversation_messages
		WHERE conversation_id = $1
		ORDER BY seq ASC
	`, conversationID)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("transcript: list messages: %w", err)
	}
	defer rows.Close()

	var out []Message
	for rows.Next() {
		var (
			msg  Message
			role string
		)
		if err := rows.Scan(&msg.ID, &msg.ConversationID, &msg.Seq, &role, &msg.Content, &msg.CreatedAt); err != nil {
			return nil, fmt.Errorf("transcript: scan message: %w", err)
		}
		msg.Role = Role(role)
		out = append(out, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("transcript: iterate messages: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) UpdateContact(ctx context.Context, sessionKey string, update ContactUpdate) error {
	if update.Empty() {
		return nil
	}
	tag, err := s.pool.Exec(ctx, `
		UPDATE conversations SET
			contact_email = COALESCE($2, contact_email),
			contact_phone = COALESCE($3, contact_phone),
			contact_sms = COALESCE($4, contact_sms),
			updated_at = $5
		WHERE session_key = $1
	`, sessionKey, update.Email, update.Phone, update.SMSNumber, s.now())
	if err != nil {
		return fmt.Errorf("transcript: update contact: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrConversationNotFound
	}
	return nil
}

func (s *PostgresStore) SetStatus(ctx context.Context, conversationID uuid.UUID, status Status) error {
	if !status.Valid() {
		return ErrInvalidStatus
	}
	tag, err := s.pool.Exec(ctx,
		`UPDATE conversations SET status = $2, updated_at = $3 WHERE id = $1`,
		conversationID, string(status), s.now())
	if err != nil {
		return fmt.Errorf("transcript: set status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrConversationNotFound
	}
	return nil
}

func (s *PostgresStore) MarkAgentRequested(ctx context.Context, sessionKey string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE conversations SET agent_requested = TRUE, updated_at = $2 WHERE session_key = $1`,
		sessionKey, s.now())
	if err != nil {
		return fmt.Errorf("transcript: mark agent requested: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrConversationNotFound
	}
	return nil
}

func (s *PostgresStore) SaveHandoff(ctx context.Context, conversationID uuid.UUID, snap handoff.Snapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("transcript: encode handoff: %w", err)
	}
	tag, err := s.pool.Exec(ctx,
		`UPDATE conversations SET handoff = $2, updated_at = $3 WHERE id = $1`,
		conversationID, data, s.now())
	if err != nil {
		return fmt.Errorf("transcript: save handoff: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrConversationNotFound
	}
	return nil
}

func (s *PostgresStore) ListConversations(ctx context.Context, operatorID string, filter ListFilter) ([]Conversation, error) {
	query := `SELECT ` + conversationColumns + ` FROM conversations WHERE operator_id = $1`
	args := []any{operatorID}
	if filter.Status != "" {
		query += ` AND status = $2`
		args = append(args, string(filter.Status))
	}
	query += fmt.Sprintf(` ORDER BY last_message_at DESC LIMIT %d`, filter.limit())

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("transcript: list conversations: %w", err)
	}
	defer rows.Close()

	var out []Conversation
	for rows.Next() {
		conv, err := scanConversation(rows)
		if err != nil {
			return nil, fmt.Errorf("transcript: scan conversation: %w", err)
		}
		out = append(out, *conv)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("transcript: iterate conversations: %w", err)
	}
	return out, nil
}
