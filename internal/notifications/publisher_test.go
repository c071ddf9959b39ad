package notifications

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// MockPublisher is a mock implementation of Publisher
type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) Publish(ctx context.Context, event Event) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

// mockSNS is a mock implementation of snsAPI
type mockSNS struct {
	mock.Mock
}

func (m *mockSNS) Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error) {
	args := m.Called(ctx, params)
	if out := args.Get(0); out != nil {
		return out.(*sns.PublishOutput), args.Error(1)
	}
	return nil, args.Error(1)
}

func TestMultiPublisherAttemptsEveryPublisher(t *testing.T) {
	ctx := context.Background()
	event, err := NewEvent(EventRunCreated, "subject-1", map[string]string{"status": "verified"})
	require.NoError(t, err)

	failing := new(MockPublisher)
	failing.On("Publish", ctx, event).Return(errors.New("topic unavailable"))
	healthy := new(MockPublisher)
	healthy.On("Publish", ctx, event).Return(nil)

	multi := NewMultiPublisher(zap.NewNop(), failing, nil, healthy)
	err = multi.Publish(ctx, event)

	assert.ErrorContains(t, err, "topic unavailable")
	failing.AssertExpectations(t)
	healthy.AssertExpectations(t)
}

func TestSNSPublisherSetsAttributes(t *testing.T) {
	ctx := context.Background()
	client := new(mockSNS)
	publisher := &SNSPublisher{client: client, topicARN: "arn:aws:sns:ap-south-1:123456789012:runs"}

	event, err := NewEvent(EventRunCreated, "subject-7", map[string]float64{"score": 0.81})
	require.NoError(t, err)

	client.On("Publish", ctx, mock.MatchedBy(func(in *sns.PublishInput) bool {
		if aws.ToString(in.TopicArn) != publisher.topicARN {
			return false
		}
		var decoded Event
		if err := json.Unmarshal([]byte(aws.ToString(in.Message)), &decoded); err != nil {
			return false
		}
		return decoded.SubjectID == "subject-7" &&
			aws.ToString(in.MessageAttributes["event_type"].StringValue) == EventRunCreated &&
			aws.ToString(in.MessageAttributes["subject_id"].StringValue) == "subject-7"
	})).Return(&sns.PublishOutput{MessageId: aws.String("m-1")}, nil)

	require.NoError(t, publisher.Publish(ctx, event))
	client.AssertExpectations(t)
}

func TestSNSPublisherWrapsErrors(t *testing.T) {
	ctx := context.Background()
	client := new(mockSNS)
	publisher := &SNSPublisher{client: client, topicARN: "arn"}
	client.On("Publish", ctx, mock.Anything).Return(nil, errors.New("throttled"))

	event, err := NewEvent(EventSubjectMerged, "account-1", nil)
	require.NoError(t, err)

	err = publisher.Publish(ctx, event)
	assert.ErrorContains(t, err, "throttled")
	assert.ErrorContains(t, err, EventSubjectMerged)
}
