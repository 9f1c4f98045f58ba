package audit

import (
	"github.com/stampkit/stampkit/internal/audit/repository"
	"github.com/stampkit/stampkit/internal/audit/service"
	"go.uber.org/fx"
)

var Module = fx.Module("audit.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewService),
)
