package notification

import (
	"github.com/stampkit/stampkit/internal/notification/fcm"
	"github.com/stampkit/stampkit/internal/notification/repository"
	"github.com/stampkit/stampkit/internal/notification/service"
	"go.uber.org/fx"
)

var Module = fx.Module("notification.service",
	fx.Provide(repository.Provide),
	fx.Provide(fcm.New),
	fx.Provide(provideSender),
	fx.Provide(service.New),
	fx.Invoke(service.RegisterSubscribers),
)

// provideSender hands the FCM client to the service as a Sender. A nil
// client stays nil, which disables delivery without special cases.
func provideSender(client *fcm.Client) service.Sender {
	if client == nil {
		return nil
	}
	return client
}
