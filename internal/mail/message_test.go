package mail

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestOTPMessage(t *testing.T) {
	t.Parallel()

	msg, err := OTPMessage("a@b.com", "012345", 10*time.Minute)
	require.NoError(t, err)
	assert.Equal(t, "a@b.com", msg.To)
	assert.Equal(t, otpSubject, msg.Subject)
	assert.Contains(t, msg.HTML, "012345")
	assert.Contains(t, msg.HTML, "expire in 10 minutes")
}

func TestLogSender(t *testing.T) {
	t.Parallel()

	core, logs := observer.New(zap.InfoLevel)
	s := NewLogSender(zap.New(core))

	require.NoError(t, s.Send(context.Background(), Message{To: "a@b.com", Subject: "hi", HTML: "<p>x</p>"}))
	entries := logs.FilterField(zap.String("to", "a@b.com")).All()
	require.Len(t, entries, 1)
}
