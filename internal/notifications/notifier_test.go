package notifications

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type MockNotifier struct {
	mock.Mock
}

func (m *MockNotifier) Notify(ctx context.Context, alert Alert) error {
	args := m.Called(ctx, alert)
	return args.Error(0)
}

type MockSNS struct {
	mock.Mock
}

func (m *MockSNS) Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*sns.PublishOutput), args.Error(1)
}

func TestMultiNotifier_AttemptsAll(t *testing.T) {
	ctx := context.Background()
	alert := NewAlert(KindAnomaly, uuid.New(), SeverityWarning, "Anomaly", "record 4 is unusual")

	failing := new(MockNotifier)
	failing.On("Notify", ctx, alert).Return(errors.New("down"))
	ok := new(MockNotifier)
	ok.On("Notify", ctx, alert).Return(nil)

	err := MultiNotifier{failing, nil, ok, NewLogNotifier(zap.NewNop())}.Notify(ctx, alert)

	assert.EqualError(t, err, "down")
	failing.AssertExpectations(t)
	ok.AssertExpectations(t)
}

func TestSafeNotify_SwallowsErrors(t *testing.T) {
	ctx := context.Background()
	alert := NewAlert(KindReportSent, uuid.New(), SeverityInfo, "Report sent", "")

	n := new(MockNotifier)
	n.On("Notify", ctx, alert).Return(errors.New("down"))

	assert.NotPanics(t, func() { SafeNotify(ctx, n, zap.NewNop(), alert) })
	assert.NotPanics(t, func() { SafeNotify(ctx, nil, zap.NewNop(), alert) })
	n.AssertExpectations(t)
}

func TestSNSPublisher_Notify(t *testing.T) {
	ctx := context.Background()
	companyID := uuid.New()
	alert := NewAlert(KindForecastSpike, companyID, SeverityWarning, "Forecast spike", "2027 jumps").WithData("year", 2027)

	client := new(MockSNS)
	client.On("Publish", ctx, mock.MatchedBy(func(in *sns.PublishInput) bool {
		var decoded Alert
		if err := json.Unmarshal([]byte(*in.Message), &decoded); err != nil {
			return false
		}
		return *in.TopicArn == "arn:aws:sns:us-east-1:123:alerts" &&
			*in.Subject == "Forecast spike" &&
			decoded.CompanyID == companyID &&
			*in.MessageAttributes["kind"].StringValue == string(KindForecastSpike)
	})).Return(&sns.PublishOutput{}, nil)

	publisher := NewSNSPublisher(client, "arn:aws:sns:us-east-1:123:alerts")
	require.NoError(t, publisher.Notify(ctx, alert))
	client.AssertExpectations(t)
}

func TestSNSPublisher_Error(t *testing.T) {
	ctx := context.Background()
	client := new(MockSNS)
	client.On("Publish", ctx, mock.Anything).Return(nil, errors.New("throttled"))

	err := NewSNSPublisher(client, "arn").Notify(ctx, NewAlert(KindAnomaly, uuid.New(), SeverityInfo, "", ""))
	assert.ErrorContains(t, err, "failed to publish alert")
}

func TestTruncateSubject(t *testing.T) {
	assert.Equal(t, "CO2 emission alert", truncateSubject(""))
	long := make([]rune, 150)
	for i := range long {
		long[i] = 'x'
	}
	assert.Len(t, []rune(truncateSubject(string(long))), 100)
}

func TestAlert_WithDataCopies(t *testing.T) {
	base := NewAlert(KindAnomaly, uuid.New(), SeverityInfo, "", "").WithData("a", 1)
	derived := base.WithData("b", 2)

	assert.Len(t, base.Data, 1)
	assert.Len(t, derived.Data, 2)
}
