// Package app assembles stores, locks and services from a Config. Both the
// HTTP service and the operator CLI start from Build.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/dmehra2102/storefront-reconciler/internal/config"
	orderapp "github.com/dmehra2102/storefront-reconciler/internal/order/application"
	ordermem "github.com/dmehra2102/storefront-reconciler/internal/order/infrastructure/memory"
	orderpg "github.com/dmehra2102/storefront-reconciler/internal/order/infrastructure/postgres"
	"github.com/dmehra2102/storefront-reconciler/internal/payment/application"
	"github.com/dmehra2102/storefront-reconciler/internal/payment/domain"
	"github.com/dmehra2102/storefront-reconciler/internal/payment/infrastructure/gateway"
	paymentmem "github.com/dmehra2102/storefront-reconciler/internal/payment/infrastructure/memory"
	paymentpg "github.com/dmehra2102/storefront-reconciler/internal/payment/infrastructure/postgres"
	"github.com/dmehra2102/storefront-reconciler/pkg/keylock"
)

type App struct {
	Log      *slog.Logger
	Config   config.Config
	Orders   orderapp.OrderRepository
	Payments application.PaymentRepository
	Service  *orderapp.Service
	Engine   *application.Engine
	Syncer   *application.Syncer
	// Mock is set when GATEWAY_MODE=mock.
	Mock  *gateway.Mock
	Pool  *pgxpool.Pool
	Redis *redis.Client
}

func Build(ctx context.Context, cfg config.Config, log *slog.Logger) (*App, error) {
	a := &App{Log: log, Config: cfg}
	var uow application.UnitOfWork

	switch cfg.StoreBackend {
	case config.StorePostgres:
		pool, err := pgxpool.New(ctx, cfg.PGURL)
		if err != nil {
			return nil, fmt.Errorf("pg connect: %w", err)
		}
		if err := pool.Ping(ctx); err != nil {
			pool.Close()
			return nil, fmt.Errorf("pg ping: %w", err)
		}
		a.Pool = pool
		orders, payments := orderpg.NewRepository(log, pool), paymentpg.NewRepository(log, pool)
		a.Orders, a.Payments = orders, payments
		if cfg.LockBackend == config.LockPostgres {
			uow = paymentpg.NewUnitOfWork(log, pool, payments, orders)
		}
	default:
		a.Orders = ordermem.NewRepository()
		a.Payments = paymentmem.NewRepository()
	}

	if cfg.RedisAddr != "" {
		a.Redis = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	}

	if uow == nil {
		var locks application.KeyLocker = keylock.NewLocal()
		if cfg.LockBackend == config.LockRedis {
			locks = keylock.NewRedis(log, a.Redis, 30*time.Second)
		}
		uow = application.NewLockedUnit(locks, a.Payments, a.Orders)
	}

	aliases, err := cfg.Aliases()
	if err != nil {
		a.Close()
		return nil, err
	}
	shipping, err := cfg.Shipping()
	if err != nil {
		a.Close()
		return nil, err
	}

	a.Service = orderapp.NewService(a.Orders, orderapp.Pricing{ShippingCost: shipping, DefaultCountry: cfg.DefaultCountry})
	a.Engine = application.NewEngine(log, uow, application.Options{
		Normalizer:      domain.NewNormalizer(aliases),
		DefaultCurrency: cfg.DefaultCurrency,
	})

	var gw application.Gateway
	if cfg.GatewayMode == config.GatewayLive {
		gw = gateway.NewClient(log, cfg.GatewayBaseURL, cfg.GatewayAccessToken, cfg.GatewayRPS)
	} else {
		a.Mock = gateway.NewMock()
		gw = a.Mock
	}
	a.Syncer = application.NewSyncer(gw, a.Engine)

	log.Info("app assembled",
		"store", cfg.StoreBackend,
		"locks", cfg.LockBackend,
		"gateway", cfg.GatewayMode,
	)
	return a, nil
}

// Migrate creates the Postgres schema. It is a no-op on the memory backend.
func (a *App) Migrate(ctx context.Context) error {
	if a.Pool == nil {
		return nil
	}
	if err := orderpg.Migrate(ctx, a.Pool); err != nil {
		return fmt.Errorf("migrate orders: %w", err)
	}
	if err := paymentpg.Migrate(ctx, a.Pool); err != nil {
		return fmt.Errorf("migrate payments: %w", err)
	}
	return nil
}

func (a *App) Close() {
	if a.Redis != nil {
		_ = a.Redis.Close()
	}
	if a.Pool != nil {
		a.Pool.Close()
	}
}
