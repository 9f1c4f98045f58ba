package restaurant

import (
	"github.com/stampkit/stampkit/internal/restaurant/repository"
	"github.com/stampkit/stampkit/internal/restaurant/service"
	"go.uber.org/fx"
)

var Module = fx.Module("restaurant.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
