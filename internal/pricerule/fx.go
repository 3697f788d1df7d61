package pricerule

import (
	"github.com/smallbiznis/pricerules/internal/pricerule/events"
	"github.com/smallbiznis/pricerules/internal/pricerule/importer"
	"github.com/smallbiznis/pricerules/internal/pricerule/listprice"
	"github.com/smallbiznis/pricerules/internal/pricerule/repository"
	"github.com/smallbiznis/pricerules/internal/pricerule/service"
	"go.uber.org/fx"
)

var Module = fx.Module("pricerule.service",
	fx.Provide(repository.Provide),
	fx.Provide(listprice.NewStore),
	fx.Provide(listprice.ProvideRepository),
	fx.Provide(listprice.ProvideResolver),
	fx.Provide(events.Provide),
	fx.Provide(service.New),
	fx.Provide(importer.New),
)
