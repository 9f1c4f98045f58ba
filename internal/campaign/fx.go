package campaign

import (
	"github.com/stampkit/stampkit/internal/campaign/repository"
	"github.com/stampkit/stampkit/internal/campaign/service"
	"go.uber.org/fx"
)

var Module = fx.Module("campaign.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
