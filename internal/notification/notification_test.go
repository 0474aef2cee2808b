package notification

import (
	"context"
	"errors"
	"net/smtp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"repcirAPI/internal/types/notification"
)

func TestBuildMessagePerPlatform(t *testing.T) {
	data := stringifyData(map[string]any{"challenge_id": "abc", "day": 3})
	assert.Equal(t, "3", data["day"])

	android := buildMessage(notification.DeviceToken{Token: "a", Platform: "android"}, "t", "b", data)
	require.NotNil(t, android.Android)
	assert.Equal(t, "high", android.Android.Priority)

	ios := buildMessage(notification.DeviceToken{Token: "i", Platform: "ios"}, "t", "b", data)
	require.NotNil(t, ios.APNS)
	assert.Nil(t, ios.Android)

	web := buildMessage(notification.DeviceToken{Token: "w", Platform: "web"}, "t", "b", data)
	require.NotNil(t, web.Webpush)
}

func TestMailerSkipsWithoutCredentials(t *testing.T) {
	m := NewMailer(SMTPConfig{})
	m.send = func(string, smtp.Auth, string, []string, []byte) error {
		t.Fatal("send must not be called")
		return nil
	}
	assert.NoError(t, m.SendInvitation(context.Background(), "a@b.c", "Run Club", "Ana", "ABCD2345", "repcir://x"))
}

func TestMailerSendsInvitation(t *testing.T) {
	m := NewMailer(SMTPConfig{Host: "smtp.example.com", Port: 587, Username: "u", Password: "p", FromName: "Repcir", FromEmail: "no-reply@repcir.com"})

	var gotAddr string
	var gotMsg []byte
	m.send = func(addr string, _ smtp.Auth, from string, to []string, msg []byte) error {
		gotAddr = addr
		gotMsg = msg
		assert.Equal(t, "no-reply@repcir.com", from)
		assert.Equal(t, []string{"friend@example.com"}, to)
		return nil
	}

	require.NoError(t, m.SendInvitation(context.Background(), "friend@example.com", "Run Club", "Ana", "ABCD2345", "repcir://circles/join?code=ABCD2345"))
	assert.Equal(t, "smtp.example.com:587", gotAddr)
	assert.Contains(t, string(gotMsg), "Subject: Join Run Club on Repcir")
	assert.Contains(t, string(gotMsg), `href="repcir://circles/join?code=ABCD2345"`)

	m.send = func(string, smtp.Auth, string, []string, []byte) error { return errors.New("refused") }
	assert.Error(t, m.SendInvitation(context.Background(), "friend@example.com", "Run Club", "Ana", "X", "y"))
}
