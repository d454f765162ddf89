package output

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	apperrors "github.com/Proton-105/astro-bot/internal/errors"
	"github.com/Proton-105/astro-bot/internal/message"
	"github.com/Proton-105/astro-bot/pkg/logger"
)

type mockSender struct {
	mock.Mock
}

func (m *mockSender) Send(ctx context.Context, to string, p message.Payload) error {
	return m.Called(ctx, to, p).Error(0)
}

type mockQueue struct {
	mock.Mock
}

func (m *mockQueue) EnqueueDelivery(ctx context.Context, channel, to string, payloads []message.Payload) error {
	return m.Called(ctx, channel, to, payloads).Error(0)
}

var fastRetry = apperrors.RetryPolicy{MaxRetries: 2, InitialBackoff: time.Millisecond, MaxBackoff: time.Millisecond}

func twoTexts() *message.Response {
	resp := &message.Response{}
	return resp.Text("first").Text("second")
}

func TestAdapter_DeliversInOrder(t *testing.T) {
	sender := &mockSender{}
	var mu sync.Mutex
	var got []string
	sender.On("Send", mock.Anything, "+15550001111", mock.Anything).Run(func(args mock.Arguments) {
		mu.Lock()
		defer mu.Unlock()
		got = append(got, args.Get(2).(message.Payload).Body)
	}).Return(nil)

	results := map[string]int{}
	a := NewAdapter(map[string]Sender{ChannelWhatsApp: sender}, nil, Options{
		Retry:          fastRetry,
		DefaultChannel: ChannelWhatsApp,
		Observer:       func(_, result string) { results[result]++ },
	}, logger.Nop())

	require.NoError(t, a.Deliver(context.Background(), "", "+15550001111", twoTexts()))
	assert.Equal(t, []string{"first", "second"}, got)
	assert.Equal(t, 2, results["sent"])
}

func TestAdapter_RetriesTransientFailures(t *testing.T) {
	sender := &mockSender{}
	sender.On("Send", mock.Anything, "+1", mock.Anything).Return(errors.New("connection reset")).Once()
	sender.On("Send", mock.Anything, "+1", mock.Anything).Return(nil)

	a := NewAdapter(map[string]Sender{ChannelWhatsApp: sender}, nil, Options{Retry: fastRetry}, logger.Nop())
	resp := (&message.Response{}).Text("hello")

	require.NoError(t, a.Deliver(context.Background(), ChannelWhatsApp, "+1", resp))
	sender.AssertNumberOfCalls(t, "Send", 2)
}

func TestAdapter_QueuesRemainderWhenRetriesExhausted(t *testing.T) {
	sender := &mockSender{}
	sender.On("Send", mock.Anything, "+1", message.Payload{Type: message.PayloadText, Body: "first"}).Return(nil)
	sender.On("Send", mock.Anything, "+1", message.Payload{Type: message.PayloadText, Body: "second"}).Return(errors.New("503"))

	queue := &mockQueue{}
	queue.On("EnqueueDelivery", mock.Anything, ChannelWhatsApp, "+1",
		[]message.Payload{{Type: message.PayloadText, Body: "second"}}).Return(nil)

	a := NewAdapter(map[string]Sender{ChannelWhatsApp: sender}, queue, Options{Retry: fastRetry}, logger.Nop())

	require.NoError(t, a.Deliver(context.Background(), ChannelWhatsApp, "+1", twoTexts()))
	// one first attempt plus two retries for the failing payload
	sender.AssertNumberOfCalls(t, "Send", 4)
	queue.AssertExpectations(t)
}

func TestAdapter_PermanentFailureIsNotRetriedOrQueued(t *testing.T) {
	sender := &mockSender{}
	sender.On("Send", mock.Anything, "+1", mock.Anything).Return(&PermanentError{Status: 400, Err: errors.New("bad recipient")})
	queue := &mockQueue{}

	a := NewAdapter(map[string]Sender{ChannelWhatsApp: sender}, queue, Options{Retry: fastRetry}, logger.Nop())

	err := a.Deliver(context.Background(), ChannelWhatsApp, "+1", twoTexts())
	require.Error(t, err)
	assert.True(t, IsPermanent(err))
	sender.AssertNumberOfCalls(t, "Send", 1)
	queue.AssertNotCalled(t, "EnqueueDelivery", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestAdapter_SendTimeout(t *testing.T) {
	sender := &mockSender{}
	sender.On("Send", mock.Anything, "+1", mock.Anything).Run(func(args mock.Arguments) {
		<-args.Get(0).(context.Context).Done()
	}).Return(context.DeadlineExceeded)

	a := NewAdapter(map[string]Sender{ChannelWhatsApp: sender}, nil, Options{
		SendTimeout: 5 * time.Millisecond,
		Retry:       apperrors.RetryPolicy{MaxRetries: 1, InitialBackoff: time.Millisecond, MaxBackoff: time.Millisecond},
	}, logger.Nop())

	start := time.Now()
	err := a.Deliver(context.Background(), ChannelWhatsApp, "+1", (&message.Response{}).Text("hi"))
	require.Error(t, err)
	assert.Equal(t, apperrors.KindCollaboratorUnavailable, apperrors.KindOf(err))
	assert.Less(t, time.Since(start), time.Second)
}

func TestAdapter_UnknownChannel(t *testing.T) {
	a := NewAdapter(nil, nil, Options{}, logger.Nop())
	err := a.Deliver(context.Background(), "sms", "+1", (&message.Response{}).Text("hi"))
	assert.ErrorIs(t, err, ErrUnknownChannel)

	assert.NoError(t, a.Deliver(context.Background(), "sms", "+1", &message.Response{}))
}

func TestAdapter_Resend(t *testing.T) {
	sender := &mockSender{}
	sender.On("Send", mock.Anything, "+1", message.Payload{Type: message.PayloadText, Body: "a"}).Return(nil)
	sender.On("Send", mock.Anything, "+1", message.Payload{Type: message.PayloadText, Body: "b"}).Return(errors.New("down"))

	a := NewAdapter(map[string]Sender{ChannelWhatsApp: sender}, nil, Options{Retry: fastRetry}, logger.Nop())
	n, err := a.Resend(context.Background(), ChannelWhatsApp, "+1", []message.Payload{
		{Type: message.PayloadText, Body: "a"},
		{Type: message.PayloadText, Body: "b"},
	})
	require.Error(t, err)
	assert.Equal(t, 1, n)
	sender.AssertNumberOfCalls(t, "Send", 2)
}
