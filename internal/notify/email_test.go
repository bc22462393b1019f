package notify

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/sendgrid/rest"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/chatdesk/pkg/logging"
)

func TestNewSendGridSender_NilWithoutAPIKey(t *testing.T) {
	sender := NewSendGridSender(SendGridConfig{FromEmail: "test@example.com"}, nil)
	if sender != nil {
		t.Error("expected nil sender when API key is empty")
	}
}

func TestNewSendGridSender_DefaultFromName(t *testing.T) {
	sender := NewSendGridSender(SendGridConfig{APIKey: "test-key", FromEmail: "test@example.com"}, nil)
	require.NotNil(t, sender)
	assert.Equal(t, "Chatdesk", sender.fromName)
}

type fakeSendGrid struct {
	status int
	err    error
	got    *mail.SGMailV3
}

func (f *fakeSendGrid) SendWithContext(_ context.Context, email *mail.SGMailV3) (*rest.Response, error) {
	f.got = email
	if f.err != nil {
		return nil, f.err
	}
	return &rest.Response{StatusCode: f.status}, nil
}

func TestSendGridSender_Send(t *testing.T) {
	api := &fakeSendGrid{status: 202}
	sender := &SendGridSender{client: api, fromEmail: "bot@example.com", fromName: "Bot", logger: logging.Default()}

	err := sender.Send(context.Background(), EmailMessage{To: "owner@example.com", Subject: "Hi", Body: "plain"})
	require.NoError(t, err)
	require.NotNil(t, api.got)
	assert.Equal(t, "Hi", api.got.Subject)

	api.status = 500
	assert.Error(t, sender.Send(context.Background(), EmailMessage{To: "owner@example.com"}))

	api.err = errors.New("network")
	assert.Error(t, sender.Send(context.Background(), EmailMessage{To: "owner@example.com"}))
}

func TestSendGridSender_Send_NilClient(t *testing.T) {
	sender := &SendGridSender{}
	err := sender.Send(context.Background(), EmailMessage{To: "recipient@example.com"})
	assert.Error(t, err)
}

type fakeSES struct {
	in  *sesv2.SendEmailInput
	err error
}

func (f *fakeSES) SendEmail(_ context.Context, in *sesv2.SendEmailInput, _ ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error) {
	f.in = in
	if f.err != nil {
		return nil, f.err
	}
	return &sesv2.SendEmailOutput{MessageId: aws.String("msg-1")}, nil
}

func TestSESSender_Send(t *testing.T) {
	api := &fakeSES{}
	sender := NewSESSender(api, SESConfig{FromEmail: "bot@example.com"}, nil)

	err := sender.Send(context.Background(), EmailMessage{To: "owner@example.com", Subject: "Alert", Body: "text", HTML: "<p>html</p>"})
	require.NoError(t, err)
	assert.Equal(t, "Chatdesk <bot@example.com>", aws.ToString(api.in.FromEmailAddress))
	assert.Equal(t, []string{"owner@example.com"}, api.in.Destination.ToAddresses)
	assert.Equal(t, "text", aws.ToString(api.in.Content.Simple.Body.Text.Data))
	assert.Equal(t, "<p>html</p>", aws.ToString(api.in.Content.Simple.Body.Html.Data))

	api.err = errors.New("throttled")
	assert.ErrorContains(t, sender.Send(context.Background(), EmailMessage{To: "owner@example.com"}), "throttled")
}

func TestNewSESSender_NilClient(t *testing.T) {
	assert.Nil(t, NewSESSender(nil, SESConfig{}, nil))
}

func TestStubEmailSender_RecordsMessages(t *testing.T) {
	sender := NewStubEmailSender(nil)
	require.NoError(t, sender.Send(context.Background(), EmailMessage{To: "a@example.com", Subject: "one"}))
	require.NoError(t, sender.Send(context.Background(), EmailMessage{To: "b@example.com", Subject: "two"}))

	sent := sender.Sent()
	require.Len(t, sent, 2)
	assert.Equal(t, "two", sent[1].Subject)
}
