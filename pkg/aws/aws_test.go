package aws_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	sdkaws "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	sqstypes "github.com/aws/aws-sdk-go-v2/service/sqs/types"
	awspkg "github.com/nischalstha-ns/e-commerce-sub001/pkg/aws"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// ---- mock SNS ----

type mockSNSAPI struct {
	inputs []*sns.PublishInput
	err    error
}

func (m *mockSNSAPI) Publish(_ context.Context, in *sns.PublishInput, _ ...func(*sns.Options)) (*sns.PublishOutput, error) {
	m.inputs = append(m.inputs, in)
	return &sns.PublishOutput{}, m.err
}

func TestSNSClient_Publish(t *testing.T) {
	api := &mockSNSAPI{}
	c := awspkg.NewSNSClientWithAPI(api, zap.NewNop())

	err := c.PublishWithAttributes(context.Background(), "arn:topic", []byte(`{"a":1}`), map[string]string{"event": "cart.updated"})
	require.NoError(t, err)
	require.Len(t, api.inputs, 1)
	assert.Equal(t, `{"a":1}`, *api.inputs[0].Message)
	assert.Equal(t, "cart.updated", *api.inputs[0].MessageAttributes["event"].StringValue)

	assert.Error(t, c.Publish(context.Background(), "", []byte("x")))

	api.err = errors.New("throttled")
	assert.Error(t, c.Publish(context.Background(), "arn:topic", []byte("x")))
}

// ---- mock SQS ----

type mockSQSAPI struct {
	mu       sync.Mutex
	messages []sqstypes.Message
	deleted  []string
}

func (m *mockSQSAPI) ReceiveMessage(_ context.Context, _ *sqs.ReceiveMessageInput, _ ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := &sqs.ReceiveMessageOutput{Messages: m.messages}
	m.messages = nil
	return out, nil
}

func (m *mockSQSAPI) DeleteMessage(_ context.Context, in *sqs.DeleteMessageInput, _ ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deleted = append(m.deleted, *in.ReceiptHandle)
	return &sqs.DeleteMessageOutput{}, nil
}

func TestSQSConsumer_PollOnce_DeletesOnlyHandled(t *testing.T) {
	api := &mockSQSAPI{messages: []sqstypes.Message{
		{MessageId: sdkaws.String("1"), Body: sdkaws.String("ok"), ReceiptHandle: sdkaws.String("r1")},
		{MessageId: sdkaws.String("2"), Body: sdkaws.String("fail"), ReceiptHandle: sdkaws.String("r2")},
		{MessageId: sdkaws.String("3"), ReceiptHandle: sdkaws.String("r3")},
	}}
	c := awspkg.NewSQSConsumerWithAPI(api, "https://queue", zap.NewNop())

	n, err := c.PollOnce(context.Background(), func(_ context.Context, body string) error {
		if body == "fail" {
			return errors.New("bad message")
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, []string{"r1"}, api.deleted)
}

func TestSQSConsumer_StartPolling_StopsOnCancel(t *testing.T) {
	c := awspkg.NewSQSConsumerWithAPI(&mockSQSAPI{}, "https://queue", zap.NewNop())
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- c.StartPolling(ctx, func(context.Context, string) error { return nil }) }()
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("polling did not stop")
	}
}

// ---- mock CloudWatch ----

type mockCloudWatchAPI struct {
	inputs []*cloudwatch.PutMetricDataInput
}

func (m *mockCloudWatchAPI) PutMetricData(_ context.Context, in *cloudwatch.PutMetricDataInput, _ ...func(*cloudwatch.Options)) (*cloudwatch.PutMetricDataOutput, error) {
	m.inputs = append(m.inputs, in)
	return &cloudwatch.PutMetricDataOutput{}, nil
}

func TestMetricsClient(t *testing.T) {
	api := &mockCloudWatchAPI{}
	m := awspkg.NewMetricsClientWithAPI(api, "", true)

	require.NoError(t, m.RecordCount(context.Background(), awspkg.MetricCartMutations, map[string]string{"Operation": "add"}))
	require.Len(t, api.inputs, 1)
	assert.Equal(t, "ECommerce", *api.inputs[0].Namespace)
	assert.Equal(t, awspkg.MetricCartMutations, *api.inputs[0].MetricData[0].MetricName)

	disabled := awspkg.NewMetricsClientWithAPI(api, "Cart", false)
	require.NoError(t, disabled.RecordValue(context.Background(), awspkg.MetricCartItems, 3, nil))
	assert.Len(t, api.inputs, 1)
}

// ---- mock Secrets Manager ----

type mockSecretsAPI struct {
	calls int
	value string
}

func (m *mockSecretsAPI) GetSecretValue(_ context.Context, _ *secretsmanager.GetSecretValueInput, _ ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error) {
	m.calls++
	return &secretsmanager.GetSecretValueOutput{SecretString: sdkaws.String(m.value)}, nil
}

func TestSecretsClient_CachesAndDecodes(t *testing.T) {
	api := &mockSecretsAPI{value: `{"username":"cart","password":"pw"}`}
	s := awspkg.NewSecretsClientWithAPI(api)

	m, err := s.GetSecretMap(context.Background(), "cart/DB_CREDENTIALS")
	require.NoError(t, err)
	assert.Equal(t, "pw", m["password"])

	_, err = s.GetSecret(context.Background(), "cart/DB_CREDENTIALS")
	require.NoError(t, err)
	assert.Equal(t, 1, api.calls)
}

func TestLoadAWSConfig_StaticCredentialsAndEndpoint(t *testing.T) {
	t.Setenv("AWS_REGION", "us-east-1")
	t.Setenv("AWS_ACCESS_KEY_ID", "test-key")
	t.Setenv("AWS_SECRET_ACCESS_KEY", "test-secret")
	t.Setenv("AWS_SESSION_TOKEN", "")
	t.Setenv("AWS_ENDPOINT", "http://localhost:4566")

	cfg, err := awspkg.LoadAWSConfig(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "us-east-1", cfg.Region)
	require.NotNil(t, cfg.BaseEndpoint)
	assert.Equal(t, "http://localhost:4566", *cfg.BaseEndpoint)

	creds, err := cfg.Credentials.Retrieve(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "test-key", creds.AccessKeyID)
	assert.Equal(t, "test-secret", creds.SecretAccessKey)
}
