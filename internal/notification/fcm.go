// Package notification delivers notifications outside the app: FCM pushes and email.
package notification

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"os"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/messaging"
	"github.com/rs/zerolog"
	"google.golang.org/api/option"

	"repcirAPI/internal/logger"
	"repcirAPI/internal/types/notification"
)

type FCMService struct {
	client *messaging.Client
	log    zerolog.Logger
}

// NewFCMService prefers base64 encoded service account JSON and falls back
// to a credentials file on disk.
func NewFCMService(ctx context.Context, encodedCreds, credentialsFile string) (*FCMService, error) {
	log := logger.With("fcm")

	var opt option.ClientOption
	switch {
	case encodedCreds != "":
		decoded, err := base64.StdEncoding.DecodeString(encodedCreds)
		if err != nil {
			return nil, fmt.Errorf("failed to decode base64 firebase credentials: %w", err)
		}
		opt = option.WithCredentialsJSON(decoded)
		log.Info().Msg("Initializing from FCM_SERVICE_ACCOUNT_JSON")
	case credentialsFile != "":
		if _, err := os.Stat(credentialsFile); err != nil {
			return nil, fmt.Errorf("firebase credentials file %s: %w", credentialsFile, err)
		}
		opt = option.WithCredentialsFile(credentialsFile)
		log.Info().Str("file", credentialsFile).Msg("Initializing from credentials file")
	default:
		return nil, errors.New("no firebase credentials configured")
	}

	app, err := firebase.NewApp(ctx, nil, opt)
	if err != nil {
		return nil, fmt.Errorf("error initializing firebase app: %w", err)
	}

	client, err := app.Messaging(ctx)
	if err != nil {
		return nil, fmt.Errorf("error getting messaging client: %w", err)
	}

	return &FCMService{client: client, log: log}, nil
}

// SendPush sends one message per token. It only fails when every send failed.
func (s *FCMService) SendPush(ctx context.Context, tokens []notification.DeviceToken, title, body string, data map[string]any) error {
	if len(tokens) == 0 {
		return nil
	}

	payload := stringifyData(data)

	var sent, failed int
	for _, t := range tokens {
		_, err := s.client.Send(ctx, buildMessage(t, title, body, payload))
		if err != nil {
			s.log.Warn().Err(err).Str("platform", t.Platform).Msg("Failed to send push")
			failed++
			continue
		}
		sent++
	}

	s.log.Debug().Int("sent", sent).Int("failed", failed).Msg("Push batch finished")

	if sent == 0 && failed > 0 {
		return fmt.Errorf("all %d push notifications failed", failed)
	}
	return nil
}

func buildMessage(t notification.DeviceToken, title, body string, data map[string]string) *messaging.Message {
	msg := &messaging.Message{
		Token: t.Token,
		Notification: &messaging.Notification{
			Title: title,
			Body:  body,
		},
		Data: data,
	}

	switch t.Platform {
	case "ios":
		msg.APNS = &messaging.APNSConfig{
			Payload: &messaging.APNSPayload{
				Aps: &messaging.Aps{Sound: "default"},
			},
		}
	case "web":
		msg.Webpush = &messaging.WebpushConfig{
			Headers: map[string]string{"Urgency": "high"},
		}
	default:
		msg.Android = &messaging.AndroidConfig{
			Priority: "high",
			Notification: &messaging.AndroidNotification{
				Sound: "default",
			},
		}
	}
	return msg
}

func stringifyData(data map[string]any) map[string]string {
	out := make(map[string]string, len(data))
	for k, v := range data {
		out[k] = fmt.Sprintf("%v", v)
	}
	return out
}
