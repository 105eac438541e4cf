package webhook

import (
	"context"

	"github.com/1212falcon1212/shopfiy-saas-sub001/internal/config"
	webhookdomain "github.com/1212falcon1212/shopfiy-saas-sub001/internal/webhook/domain"
	"github.com/1212falcon1212/shopfiy-saas-sub001/internal/webhook/queue"
	"github.com/1212falcon1212/shopfiy-saas-sub001/internal/webhook/repository"
	"github.com/1212falcon1212/shopfiy-saas-sub001/internal/webhook/service"
	"github.com/1212falcon1212/shopfiy-saas-sub001/internal/webhook/signature"
	"github.com/redis/go-redis/v9"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Module wires the delivery pipeline. Topic handlers register
// themselves into the "webhook.handlers" group from their own
// modules; the registry is assembled here.
var Module = fx.Module("webhook",
	fx.Provide(
		provideVerifier,
		provideQueue,
		repository.Provide,
		fx.Annotate(
			webhookdomain.NewRegistry,
			fx.ParamTags(`group:"webhook.handlers"`),
		),
		service.NewDispatcher,
		service.NewExecutor,
	),
	fx.Invoke(runExecutor),
)

func provideVerifier(cfg config.Config, log *zap.Logger) *signature.Verifier {
	if cfg.PlatformSharedSecret == "" {
		// The verifier fails closed without a secret; every delivery
		// will be rejected until PLATFORM_SHARED_SECRET is set.
		log.Named("webhook.signature").Warn("PLATFORM_SHARED_SECRET is not set, all webhook deliveries will be rejected")
	}
	return signature.NewVerifier(cfg.PlatformSharedSecret)
}

func provideQueue(lc fx.Lifecycle, cfg config.Config, log *zap.Logger) (webhookdomain.Queue, error) {
	if cfg.RedisAddr == "" {
		log.Named("webhook.queue").Info("no redis configured, using in-process queue")
		return queue.NewMemoryQueue(0), nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			return client.Ping(ctx).Err()
		},
		OnStop: func(ctx context.Context) error {
			return client.Close()
		},
	})
	return queue.NewRedisQueue(client), nil
}

func runExecutor(lc fx.Lifecycle, e *service.Executor) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			e.Start()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			e.Stop()
			return nil
		},
	})
}
