package reward

import (
	"github.com/stampkit/stampkit/internal/reward/repository"
	"github.com/stampkit/stampkit/internal/reward/service"
	"go.uber.org/fx"
)

var Module = fx.Module("reward.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
