package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/c360/dataprocessor/config"
	"github.com/c360/dataprocessor/dataprocessor"
	"github.com/c360/dataprocessor/metric"
	"github.com/c360/dataprocessor/natsclient"
	"github.com/c360/dataprocessor/processor"
)

// app is the composition root shared by the subcommands. Backend clients
// are created on first use so a plain HTTP fetch never dials NATS or Redis.
type app struct {
	flags    *globalFlags
	cfg      *config.Config
	logger   *slog.Logger
	registry *metric.MetricsRegistry
	dp       *dataprocessor.DataProcessor
	formats  *processor.Registry

	mu    sync.Mutex
	nats  *natsclient.Client
	s3    *s3.Client
	redis *redis.Client
}

func newApp(flags *globalFlags) (*app, error) {
	cfg, err := loadConfig(flags.configPaths)
	if err != nil {
		return nil, err
	}
	if flags.metricsAddr != "" {
		cfg.Metrics.Enabled = true
		cfg.Metrics.Addr = flags.metricsAddr
	}

	logger := setupLogger(os.Stderr, flags.logLevel, flags.logFormat)
	slog.SetDefault(logger)

	registry := metric.NewMetricsRegistry()
	dp := dataprocessor.New(logger, dataprocessor.WithMetricsRegistry(registry))
	if err := dp.Init(cfg); err != nil {
		return nil, fmt.Errorf("initialize data processor: %w", err)
	}

	return &app{
		flags:    flags,
		cfg:      dp.Config(),
		logger:   logger,
		registry: registry,
		dp:       dp,
		formats:  processor.DefaultRegistry(),
	}, nil
}

func loadConfig(paths []string) (*config.Config, error) {
	loader := config.NewLoader()
	for _, p := range paths {
		loader.AddLayer(p)
	}
	cfg, err := loader.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

// run executes job, serving metrics alongside it when enabled. The metrics
// server stops as soon as job returns.
func (a *app) run(ctx context.Context, job func(ctx context.Context) error) error {
	defer a.close()

	if !a.cfg.Metrics.Enabled {
		return job(ctx)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	server := metric.NewServer(a.cfg.Metrics.Addr, "", a.registry)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return server.Start(gctx)
	})
	g.Go(func() error {
		defer cancel()
		a.logger.Info("serving metrics", "address", server.Address())
		return job(gctx)
	})
	return g.Wait()
}

func (a *app) close() {
	if err := a.dp.Shutdown(a.flags.shutdownTimeout); err != nil {
		a.logger.Warn("shutdown incomplete", "error", err)
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if a.nats != nil {
		ctx, cancel := context.WithTimeout(context.Background(), a.flags.shutdownTimeout)
		defer cancel()
		if err := a.nats.Close(ctx); err != nil {
			a.logger.Warn("close NATS client", "error", err)
		}
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.logger.Warn("close Redis client", "error", err)
		}
	}
}

func (a *app) objectStore(ctx context.Context, bucket string) (jetstream.ObjectStore, error) {
	client, err := a.natsClient(ctx)
	if err != nil {
		return nil, err
	}
	return client.ObjectStore(ctx, bucket)
}

func (a *app) natsClient(ctx context.Context) (*natsclient.Client, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.nats != nil {
		return a.nats, nil
	}
	if a.cfg.NATS.URL == "" {
		return nil, fmt.Errorf("nats.url is not configured")
	}

	timeout := a.cfg.NATS.ConnectTimeout.Std()
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	client, err := natsclient.NewClient(a.cfg.NATS.URL,
		natsclient.WithLogger(a.logger),
		natsclient.WithName(appName),
		natsclient.WithTimeout(timeout),
		natsclient.WithAuth(a.cfg.NATS.User, a.cfg.NATS.Password, a.cfg.NATS.Token),
		natsclient.OnHealthChange(func(healthy bool) {
			a.logger.Info("NATS connection changed", "healthy", healthy)
		}))
	if err != nil {
		return nil, err
	}

	connectCtx, cancel := context.WithTimeout(ctx, 3*timeout)
	defer cancel()
	if err := client.Connect(connectCtx); err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}
	a.nats = client
	return client, nil
}

func (a *app) s3Client(ctx context.Context) (*s3.Client, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.s3 != nil {
		return a.s3, nil
	}

	var opts []func(*awsconfig.LoadOptions) error
	if a.cfg.S3.Region != "" {
		opts = append(opts, awsconfig.WithRegion(a.cfg.S3.Region))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}

	endpoint := a.cfg.S3.Endpoint
	a.s3 = s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
			o.UsePathStyle = true
		}
	})
	return a.s3, nil
}

func (a *app) redisClient() (*redis.Client, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.redis != nil {
		return a.redis, nil
	}
	if a.cfg.Redis.Addr == "" {
		return nil, fmt.Errorf("redis.addr is not configured")
	}
	a.redis = redis.NewClient(&redis.Options{
		Addr: a.cfg.Redis.Addr,
		DB:   a.cfg.Redis.DB,
	})
	return a.redis, nil
}
