package service

import (
	"log/slog"

	"github.com/avoronin/cineseat/internal/notify"
	redisx "github.com/avoronin/cineseat/internal/redis"
	postgres "github.com/avoronin/cineseat/internal/repository/postgres"
	redis "github.com/avoronin/cineseat/internal/repository/redis"
	"github.com/avoronin/cineseat/internal/service/catalog"
	"github.com/avoronin/cineseat/internal/service/holds"
	"github.com/avoronin/cineseat/internal/service/query"
	"github.com/avoronin/cineseat/internal/service/settlement"
	"github.com/avoronin/cineseat/internal/uow"
)

type Services struct {
	Holds      *holds.Service
	Settlement *settlement.Service
	Query      *query.Service
	Catalog    *catalog.Service
}

type Config struct {
	Holds      holds.Config
	Settlement settlement.Config
	Query      query.Config
}

func NewServices(
	store *postgres.Store,
	u *uow.UoW,
	cache *redis.Cache,
	pubsub *redisx.ShowsPubSub,
	producer *notify.Producer,
	cfg Config,
	log *slog.Logger,
) *Services {
	return &Services{
		Holds: holds.NewService(
			u, store.Seats(), store.Drafts(), store.Query(),
			cache, pubsub, cfg.Holds, log,
		),
		Settlement: settlement.NewService(
			u, store.Settlement(), store.Drafts(), store.Seats(), store.Query(),
			cache, pubsub, producer, cfg.Settlement, log,
		),
		Query:   query.NewService(store, cache, cfg.Query),
		Catalog: catalog.NewService(store, u, cache, pubsub, log),
	}
}
