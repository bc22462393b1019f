package archive

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockS3Client records PutObject/GetObject calls for testing.
type mockS3Client struct {
	putCalls []putCall
	objects  map[string][]byte
	putErr   error
}

type putCall struct {
	bucket string
	key    string
	body   []byte
}

func newMockS3() *mockS3Client {
	return &mockS3Client{objects: make(map[string][]byte)}
}

func (m *mockS3Client) PutObject(_ context.Context, input *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if m.putErr != nil {
		return nil, m.putErr
	}
	body, _ := io.ReadAll(input.Body)
	m.putCalls = append(m.putCalls, putCall{bucket: *input.Bucket, key: *input.Key, body: body})
	m.objects[*input.Key] = body
	return &s3.PutObjectOutput{}, nil
}

func (m *mockS3Client) GetObject(_ context.Context, input *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	data, ok := m.objects[*input.Key]
	if !ok {
		return nil, &s3types.NoSuchKey{}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(data))}, nil
}

func sampleRecord(id string, at time.Time) Record {
	return Record{
		ConversationID: id,
		OperatorID:     "op-1",
		SessionID:      "sess-1",
		Status:         "resolved",
		EmailHash:      HashContact("jane@example.com"),
		ArchivedAt:     at,
		Messages: []Message{
			{Seq: 0, Role: "customer", Content: "email me at jane@example.com", Timestamp: at},
			{Seq: 1, Role: "assistant", Content: "Will do!", Timestamp: at},
		},
	}
}

func TestStore_ArchiveConversation(t *testing.T) {
	mock := newMockS3()
	store := NewStore(mock, "test-bucket", Options{}, nil)
	now := time.Date(2026, 2, 12, 15, 0, 0, 0, time.UTC)

	key, err := store.ArchiveConversation(context.Background(), sampleRecord("conv-123", now))
	require.NoError(t, err)
	assert.Equal(t, "conversations/op-1/2026/02/12/conv-123.json", key)
	require.Len(t, mock.putCalls, 1)
	assert.Equal(t, "test-bucket", mock.putCalls[0].bucket)

	var decoded Record
	require.NoError(t, json.Unmarshal(mock.putCalls[0].body, &decoded))
	assert.Equal(t, "1.0", decoded.Version)
	assert.Equal(t, 2, decoded.MessageCount)
	assert.Equal(t, "email me at jane@example.com", decoded.Messages[0].Content)
}

func TestStore_ScrubAndManifest(t *testing.T) {
	mock := newMockS3()
	store := NewStore(mock, "test-bucket", Options{ScrubPII: true, Manifest: true}, nil)
	now := time.Date(2026, 2, 12, 15, 0, 0, 0, time.UTC)
	record := sampleRecord("conv-1", now)

	_, err := store.ArchiveConversation(context.Background(), record)
	require.NoError(t, err)
	_, err = store.ArchiveConversation(context.Background(), sampleRecord("conv-2", now))
	require.NoError(t, err)

	assert.Equal(t, "email me at jane@example.com", record.Messages[0].Content, "caller's slice is untouched")

	var decoded Record
	require.NoError(t, json.Unmarshal(mock.objects["conversations/op-1/2026/02/12/conv-1.json"], &decoded))
	assert.Equal(t, "email me at [EMAIL]", decoded.Messages[0].Content)

	manifest := mock.objects["conversations/manifests/2026-02.jsonl"]
	lines := bytes.Split(bytes.TrimSpace(manifest), []byte("\n"))
	require.Len(t, lines, 2)
	var entry ManifestEntry
	require.NoError(t, json.Unmarshal(lines[1], &entry))
	assert.Equal(t, "conv-2", entry.ConversationID)
}

func TestStore_Disabled(t *testing.T) {
	store := NewStore(nil, "", Options{}, nil)
	assert.False(t, store.Enabled())

	key, err := store.ArchiveConversation(context.Background(), Record{})
	assert.NoError(t, err)
	assert.Empty(t, key)
}

func TestStore_PutError(t *testing.T) {
	mock := newMockS3()
	mock.putErr = errors.New("access denied")
	store := NewStore(mock, "b", Options{}, nil)

	_, err := store.ArchiveConversation(context.Background(), sampleRecord("c", time.Now()))
	assert.ErrorContains(t, err, "access denied")
}
