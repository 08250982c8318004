package ses_test

import (
	"context"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"invoicer/internal/domain"
	"invoicer/internal/notify/ses"
)

type mockSES struct {
	mock.Mock
}

func (m *mockSES) SendEmail(ctx context.Context, params *sesv2.SendEmailInput, _ ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*sesv2.SendEmailOutput), args.Error(1)
}

func TestSESNotifier_SendsSummary(t *testing.T) {
	client := new(mockSES)
	client.On("SendEmail", mock.Anything, mock.MatchedBy(func(in *sesv2.SendEmailInput) bool {
		return *in.FromEmailAddress == "Invoice Renamer <bot@example.com>" &&
			assert.ObjectsAreEqual([]string{"ops@example.com"}, in.Destination.ToAddresses) &&
			*in.Content.Simple.Subject.Data == "Invoice batch session-1 completed: 1/1 renamed"
	})).Return(&sesv2.SendEmailOutput{}, nil)

	n, err := ses.NewWithClient(client, "bot@example.com", "Invoice Renamer", []string{"ops@example.com"})
	require.NoError(t, err)

	err = n.SessionFinished(context.Background(), &domain.Session{
		ID: "session-1", Status: domain.SessionStatusCompleted, Total: 1, Processed: 1, Successful: 1,
	}, "")
	require.NoError(t, err)
	client.AssertExpectations(t)
}

func TestSESNotifier_WrapsSendError(t *testing.T) {
	client := new(mockSES)
	client.On("SendEmail", mock.Anything, mock.Anything).Return(nil, assert.AnError)

	n, err := ses.NewWithClient(client, "bot@example.com", "", []string{"ops@example.com"})
	require.NoError(t, err)

	err = n.SessionFinished(context.Background(), &domain.Session{ID: "s"}, "")
	assert.ErrorIs(t, err, assert.AnError)
	assert.Contains(t, err.Error(), "SES SendEmail")
}

func TestNewWithClient_RequiresRecipients(t *testing.T) {
	_, err := ses.NewWithClient(new(mockSES), "bot@example.com", "", nil)
	assert.Error(t, err)
}
