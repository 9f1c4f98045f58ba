package ledger

import (
	"github.com/stampkit/stampkit/internal/ledger/repository"
	"github.com/stampkit/stampkit/internal/ledger/service"
	"go.uber.org/fx"
)

var Module = fx.Module("ledger.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
