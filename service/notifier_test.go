package service

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wneessen/go-mail"
)

type recordingSender struct {
	sent []*mail.Msg
	err  error
}

func (r *recordingSender) DialAndSendWithContext(ctx context.Context, messages ...*mail.Msg) error {
	r.sent = append(r.sent, messages...)
	return r.err
}

func renderMsg(t *testing.T, msg *mail.Msg) string {
	t.Helper()
	var buf bytes.Buffer
	_, err := msg.WriteTo(&buf)
	require.NoError(t, err)
	return buf.String()
}

func TestNewSMTPNotifier(t *testing.T) {
	n, err := NewSMTPNotifier("smtp.example.com", 587, "user", "pass", "Auth <no-reply@example.com>", time.Minute)
	require.NoError(t, err)
	assert.NotNil(t, n)

	_, err = NewSMTPNotifier("", 587, "", "", "no-reply@example.com", time.Minute)
	assert.Error(t, err)
}

func TestSMTPNotifier_SendVerification(t *testing.T) {
	sender := &recordingSender{}
	n := newSMTPNotifier(sender, "Auth Team <no-reply@example.com>", 15*time.Minute)

	err := n.SendVerification(context.Background(), "ada@example.com", "Ada", "12345678")
	require.NoError(t, err)
	require.Len(t, sender.sent, 1)

	msg := sender.sent[0]
	rcpts, err := msg.GetRecipients()
	require.NoError(t, err)
	assert.Equal(t, []string{"ada@example.com"}, rcpts)

	envelopeFrom, err := msg.GetSender(false)
	require.NoError(t, err)
	assert.Equal(t, "no-reply@example.com", envelopeFrom)
	assert.Equal(t, []string{"Verify your email address"}, msg.GetGenHeader(mail.HeaderSubject))

	raw := renderMsg(t, msg)
	assert.Contains(t, raw, "Date: ")
	assert.Contains(t, raw, "Message-ID: ")
	assert.Contains(t, raw, "12345678")
	assert.Contains(t, raw, "valid for 15 minutes")
}

func TestSMTPNotifier_EncodesDisplayName(t *testing.T) {
	sender := &recordingSender{}
	n := newSMTPNotifier(sender, "Anmeldung Übersicht <no-reply@example.com>", time.Minute)

	require.NoError(t, n.SendVerification(context.Background(), "ada@example.com", "Ada", "12345678"))
	require.Len(t, sender.sent, 1)

	raw := renderMsg(t, sender.sent[0])
	assert.Contains(t, strings.ToLower(raw), "=?utf-8?")
	assert.NotContains(t, raw, "Übersicht <")
}

func TestSMTPNotifier_SendPasswordReset(t *testing.T) {
	sender := &recordingSender{}
	n := newSMTPNotifier(sender, "no-reply@example.com", 15*time.Minute)

	link := "http://localhost:5173/reset-password?token=abc"
	require.NoError(t, n.SendPasswordReset(context.Background(), "ada@example.com", "Ada", link))
	require.Len(t, sender.sent, 1)

	msg := sender.sent[0]
	assert.Equal(t, []string{"Reset your password"}, msg.GetGenHeader(mail.HeaderSubject))
	assert.Contains(t, renderMsg(t, msg), "http://localhost:5173/reset-password?token")
}

func TestSMTPNotifier_Errors(t *testing.T) {
	t.Run("relay failure", func(t *testing.T) {
		relayErr := errors.New("550 mailbox unavailable")
		n := newSMTPNotifier(&recordingSender{err: relayErr}, "no-reply@example.com", time.Minute)

		err := n.SendVerification(context.Background(), "ada@example.com", "Ada", "1")
		assert.ErrorIs(t, err, relayErr)
	})

	t.Run("invalid recipient", func(t *testing.T) {
		sender := &recordingSender{}
		n := newSMTPNotifier(sender, "no-reply@example.com", time.Minute)

		err := n.SendVerification(context.Background(), "not an address", "Ada", "1")
		assert.Error(t, err)
		assert.Empty(t, sender.sent)
	})

	t.Run("cancelled context", func(t *testing.T) {
		sender := &recordingSender{}
		n := newSMTPNotifier(sender, "no-reply@example.com", time.Minute)
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		err := n.SendVerification(ctx, "ada@example.com", "Ada", "1")
		assert.ErrorIs(t, err, context.Canceled)
		assert.Empty(t, sender.sent)
	})
}

func TestLogNotifier(t *testing.T) {
	var n Notifier = LogNotifier{}
	assert.NoError(t, n.SendVerification(context.Background(), "a@b.c", "A", "123456"))
	assert.NoError(t, n.SendPasswordReset(context.Background(), "a@b.c", "A", "http://x"))
}
