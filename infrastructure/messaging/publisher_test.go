package messaging

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/eventbridge"
	"github.com/aws/aws-sdk-go-v2/service/eventbridge/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"sitemap-backend/domain/core/valueobjects"
	"sitemap-backend/domain/events"
	pkgerrors "sitemap-backend/pkg/errors"
)

type mockEventBridge struct{ mock.Mock }

func (m *mockEventBridge) PutEvents(ctx context.Context, in *eventbridge.PutEventsInput, _ ...func(*eventbridge.Options)) (*eventbridge.PutEventsOutput, error) {
	args := m.Called(ctx, in)
	out, _ := args.Get(0).(*eventbridge.PutEventsOutput)
	return out, args.Error(1)
}

func savedEvents(n int) []events.DomainEvent {
	out := make([]events.DomainEvent, n)
	for i := range out {
		out[i] = events.NewLayoutSaved(valueobjects.MustSitemapID(7), "sess", i, time.Unix(0, 0))
	}
	return out
}

func TestEventBridgePublisher_Batches(t *testing.T) {
	// Arrange
	client := &mockEventBridge{}
	client.On("PutEvents", mock.Anything, mock.MatchedBy(func(in *eventbridge.PutEventsInput) bool {
		return len(in.Entries) == 10
	})).Return(&eventbridge.PutEventsOutput{}, nil).Once()
	client.On("PutEvents", mock.Anything, mock.MatchedBy(func(in *eventbridge.PutEventsInput) bool {
		return len(in.Entries) == 2 &&
			aws.ToString(in.Entries[0].Source) == events.SourceEditor &&
			aws.ToString(in.Entries[0].DetailType) == events.TypeLayoutSaved &&
			aws.ToString(in.Entries[0].EventBusName) == "editor-bus"
	})).Return(&eventbridge.PutEventsOutput{}, nil).Once()
	p := NewEventBridgePublisher(client, "editor-bus", zap.NewNop())

	// Act
	err := p.Publish(context.Background(), savedEvents(12)...)

	// Assert
	require.NoError(t, err)
	client.AssertExpectations(t)
}

func TestEventBridgePublisher_FailedEntries(t *testing.T) {
	client := &mockEventBridge{}
	client.On("PutEvents", mock.Anything, mock.Anything).Return(&eventbridge.PutEventsOutput{
		FailedEntryCount: 1,
		Entries: []types.PutEventsResultEntry{
			{ErrorCode: aws.String("InternalFailure"), ErrorMessage: aws.String("boom")},
		},
	}, nil)
	p := NewEventBridgePublisher(client, "editor-bus", zap.NewNop())

	err := p.Publish(context.Background(), savedEvents(1)...)

	require.Error(t, err)
	assert.True(t, pkgerrors.IsType(err, pkgerrors.ErrorTypeExternal))
}

func TestEventBridgePublisher_ClientError(t *testing.T) {
	client := &mockEventBridge{}
	client.On("PutEvents", mock.Anything, mock.Anything).Return(nil, errors.New("throttled"))
	p := NewEventBridgePublisher(client, "editor-bus", zap.NewNop())

	err := p.Publish(context.Background(), savedEvents(1)...)

	assert.ErrorContains(t, err, "throttled")
}

func TestEventBridgePublisher_NoEvents(t *testing.T) {
	client := &mockEventBridge{}
	p := NewEventBridgePublisher(client, "editor-bus", zap.NewNop())

	require.NoError(t, p.Publish(context.Background()))
	client.AssertNotCalled(t, "PutEvents", mock.Anything, mock.Anything)
}

func TestRecordingPublisher(t *testing.T) {
	p := NewRecordingPublisher()

	require.NoError(t, p.Publish(context.Background(), savedEvents(2)...))

	assert.Equal(t, []string{events.TypeLayoutSaved, events.TypeLayoutSaved}, p.Types())
	assert.Len(t, p.Events(), 2)
}
