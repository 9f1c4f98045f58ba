package apikey

import (
	"github.com/stampkit/stampkit/internal/apikey/repository"
	"github.com/stampkit/stampkit/internal/apikey/service"
	"go.uber.org/fx"
)

var Module = fx.Module("apikey.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
