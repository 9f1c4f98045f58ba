package customer

import (
	"github.com/stampkit/stampkit/internal/customer/repository"
	"github.com/stampkit/stampkit/internal/customer/service"
	"go.uber.org/fx"
)

var Module = fx.Module("customer.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
