// Package archive writes resolved conversations to S3 as JSON documents.
package archive

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/wolfman30/chatdesk/pkg/logging"
)

// S3API is the subset of the S3 client used by Store.
type S3API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// Options tune what gets written.
type Options struct {
	// ScrubPII replaces emails and phone numbers in message bodies.
	ScrubPII bool
	// Manifest appends each archived key to a monthly JSONL index.
	Manifest bool
}

// Store archives conversation records to S3.
type Store struct {
	bucket   string
	s3Client S3API
	opts     Options
	logger   *logging.Logger
	now      func() time.Time
}

// NewStore creates an archive Store. If bucket is empty, all operations are no-ops.
func NewStore(s3Client S3API, bucket string, opts Options, logger *logging.Logger) *Store {
	if logger == nil {
		logger = logging.Default()
	}
	return &Store{
		bucket:   bucket,
		s3Client: s3Client,
		opts:     opts,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Enabled returns true if archival is configured (bucket is set).
func (s *Store) Enabled() bool {
	return s != nil && s.bucket != "" && s.s3Client != nil
}

// Key returns the object key for a record archived at t.
func Key(operatorID, conversationID string, t time.Time) string {
	t = t.UTC()
	return fmt.Sprintf("conversations/%s/%d/%02d/%02d/%s.json",
		operatorID, t.Year(), t.Month(), t.Day(), conversationID)
}

// ArchiveConversation writes record as JSON and returns the object key.
func (s *Store) ArchiveConversation(ctx context.Context, record Record) (string, error) {
	if !s.Enabled() {
		return "", nil
	}
	if record.ConversationID == "" || record.OperatorID == "" {
		return "", errors.New("archive: conversation and operator ids are required")
	}

	if record.ArchivedAt.IsZero() {
		record.ArchivedAt = s.now()
	}
	record.Version = recordVersion
	record.MessageCount = len(record.Messages)
	if s.opts.ScrubPII {
		record.Messages = append([]Message(nil), record.Messages...)
		scrubMessages(record.Messages)
	}

	data, err := json.Marshal(record)
	if err != nil {
		return "", fmt.Errorf("archive: marshal record: %w", err)
	}

	key := Key(record.OperatorID, record.ConversationID, record.ArchivedAt)
	_, err = s.s3Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return "", fmt.Errorf("archive: s3 put %s: %w", key, err)
	}

	s.logger.Info("archived conversation to S3",
		"conversation_id", record.ConversationID,
		"operator_id", record.OperatorID,
		"s3_key", key,
		"message_count", record.MessageCount,
	)

	if s.opts.Manifest {
		entry := ManifestEntry{
			ConversationID: record.ConversationID,
			OperatorID:     record.OperatorID,
			S3Key:          key,
			ArchivedAt:     record.ArchivedAt.Format(time.RFC3339),
			MessageCount:   record.MessageCount,
			AgentRequested: record.AgentRequested,
		}
		if err := s.appendManifest(ctx, entry, record.ArchivedAt); err != nil {
			// The record itself is already stored.
			s.logger.Warn("failed to append manifest", "error", err, "conversation_id", record.ConversationID)
		}
	}
	return key, nil
}

// appendManifest does a read-modify-write since S3 has no append.
func (s *Store) appendManifest(ctx context.Context, entry ManifestEntry, at time.Time) error {
	line, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("archive: marshal manifest entry: %w", err)
	}

	key := fmt.Sprintf("conversations/manifests/%d-%02d.jsonl", at.Year(), at.Month())

	var existing []byte
	resp, err := s.s3Client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	switch {
	case err == nil:
		existing, err = io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			return fmt.Errorf("archive: read manifest: %w", err)
		}
	case isNotFound(err):
		s.logger.Debug("manifest not found, creating new", "key", key)
	default:
		return fmt.Errorf("archive: get manifest: %w", err)
	}

	var buf bytes.Buffer
	if len(existing) > 0 {
		buf.Write(existing)
		if existing[len(existing)-1] != '\n' {
			buf.WriteByte('\n')
		}
	}
	buf.Write(line)
	buf.WriteByte('\n')

	_, err = s.s3Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(buf.Bytes()),
		ContentType: aws.String("application/x-ndjson"),
	})
	if err != nil {
		return fmt.Errorf("archive: s3 put manifest: %w", err)
	}
	return nil
}

func isNotFound(err error) bool {
	var nsk *s3types.NoSuchKey
	if errors.As(err, &nsk) {
		return true
	}
	var nf *s3types.NotFound
	return errors.As(err, &nf)
}
