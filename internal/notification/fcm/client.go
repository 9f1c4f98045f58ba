package fcm

import (
	"context"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/messaging"
	"github.com/stampkit/stampkit/internal/config"
	"go.uber.org/zap"
	"google.golang.org/api/option"
)

// Client sends pushes through Firebase Cloud Messaging. A nil Client is a
// valid no-op sender, used when no credentials are configured.
type Client struct {
	client *messaging.Client
	log    *zap.Logger
}

func New(cfg config.Config, log *zap.Logger) *Client {
	if cfg.FCMCredentialsFile == "" {
		return nil
	}
	log = log.Named("fcm")

	ctx := context.Background()
	app, err := firebase.NewApp(ctx, nil, option.WithCredentialsFile(cfg.FCMCredentialsFile))
	if err != nil {
		log.Warn("firebase init failed, push disabled", zap.Error(err))
		return nil
	}
	client, err := app.Messaging(ctx)
	if err != nil {
		log.Warn("messaging client init failed, push disabled", zap.Error(err))
		return nil
	}

	return &Client{client: client, log: log}
}

// Send delivers one notification to one device token.
func (c *Client) Send(ctx context.Context, token, title, body string, data map[string]string) error {
	if c == nil || token == "" {
		return nil
	}

	msg := &messaging.Message{
		Token: token,
		Notification: &messaging.Notification{
			Title: title,
			Body:  body,
		},
		Data: data,
		Android: &messaging.AndroidConfig{
			Priority: "high",
			Notification: &messaging.AndroidNotification{
				Sound: "default",
			},
		},
		APNS: &messaging.APNSConfig{
			Payload: &messaging.APNSPayload{
				Aps: &messaging.Aps{
					Sound: "default",
				},
			},
		},
	}

	if _, err := c.client.Send(ctx, msg); err != nil {
		c.log.Warn("push send failed", zap.Error(err))
		return err
	}
	return nil
}
