package tier

import (
	"github.com/stampkit/stampkit/internal/tier/repository"
	"github.com/stampkit/stampkit/internal/tier/service"
	"go.uber.org/fx"
)

var Module = fx.Module("tier.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
