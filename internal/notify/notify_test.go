package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hireready/backend/internal/logger"
)

type fakeChannel struct {
	exchange string
	key      string
	msg      amqp.Publishing
	err      error
}

func (f *fakeChannel) PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error {
	f.exchange, f.key, f.msg = exchange, key, msg
	return f.err
}

func TestAMQPNotifier_Publishes(t *testing.T) {
	ch := &fakeChannel{}
	n := &AMQPNotifier{channel: ch, exchange: "hireready.email"}

	msg := Message{Kind: KindPasswordReset, UserID: "u1", Email: "ada@example.com", Token: "tok", ExpiresAt: time.Now()}
	require.NoError(t, n.Notify(context.Background(), msg))

	assert.Equal(t, "hireready.email", ch.exchange)
	assert.Equal(t, "email.password_reset", ch.key)
	assert.Equal(t, amqp.Persistent, ch.msg.DeliveryMode)
	assert.Equal(t, "application/json", ch.msg.ContentType)

	var got Message
	require.NoError(t, json.Unmarshal(ch.msg.Body, &got))
	assert.Equal(t, "tok", got.Token)
	assert.Equal(t, KindPasswordReset, got.Kind)
}

func TestAMQPNotifier_PublishError(t *testing.T) {
	n := &AMQPNotifier{channel: &fakeChannel{err: errors.New("channel closed")}, exchange: "x"}

	err := n.Notify(context.Background(), Message{Kind: KindEmailVerification})
	assert.ErrorContains(t, err, "channel closed")
}

func TestLogNotifier_DoesNotLogToken(t *testing.T) {
	var buf bytes.Buffer
	n := NewLogNotifier(logger.New(&buf, logger.LevelDebug, ""))

	require.NoError(t, n.Notify(context.Background(), Message{Kind: KindEmailVerification, UserID: "u1", Token: "secret-token"}))

	assert.Contains(t, buf.String(), "email_verification")
	assert.NotContains(t, buf.String(), "secret-token")
}
