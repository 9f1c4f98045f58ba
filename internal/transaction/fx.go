package transaction

import (
	"github.com/stampkit/stampkit/internal/transaction/repository"
	"github.com/stampkit/stampkit/internal/transaction/service"
	"go.uber.org/fx"
)

var Module = fx.Module("transaction.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
