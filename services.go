package main

import (
	"context"
	"fmt"

	"github.com/gofiber/fiber/v3"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/sirupsen/logrus"

	"github.com/objcache/objcache/internal/cache"
	"github.com/objcache/objcache/internal/config"
	"github.com/objcache/objcache/internal/metadata"
	"github.com/objcache/objcache/internal/metrics"
	"github.com/objcache/objcache/internal/remote"
	"github.com/objcache/objcache/internal/remote/httpstore"
	"github.com/objcache/objcache/internal/remote/s3store"
	"github.com/objcache/objcache/internal/server"
	"github.com/objcache/objcache/internal/server/routes"
	"github.com/objcache/objcache/internal/version"
)

// services 持有进程级组件，Close 在退出时释放元数据库。
type services struct {
	store    *metadata.Store
	registry *remote.Registry
	resolver *cache.Resolver
	gatherer *prometheus.Registry
	app      *fiber.App
}

// buildServices 按配置构建元数据库、远端注册表、Resolver 与 HTTP 应用。
func buildServices(ctx context.Context, cfg *config.Config, logger *logrus.Logger) (*services, error) {
	store, err := metadata.Open(cfg.DatabasePath(), metadata.Options{Logger: logger})
	if err != nil {
		return nil, err
	}

	rt := &services{store: store}
	if err := rt.wire(ctx, cfg, logger); err != nil {
		_ = store.Close()
		return nil, err
	}
	return rt, nil
}

func (rt *services) wire(ctx context.Context, cfg *config.Config, logger *logrus.Logger) error {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(reg)
	if err := metrics.RegisterStoreCommits(reg, rt.store.Commits); err != nil {
		return fmt.Errorf("register store metrics: %w", err)
	}
	rt.gatherer = reg

	registry, err := buildRegistry(ctx, cfg)
	if err != nil {
		return err
	}
	rt.registry = registry

	fetcher, err := cache.NewFetcher(cache.FetcherOptions{
		StagingDir: cfg.Global.StoragePath,
		Prefix:     cfg.Global.StagingPrefix,
		Registry:   registry,
		Logger:     logger,
		Metrics:    m,
	})
	if err != nil {
		return err
	}

	resolver, err := cache.NewResolver(rt.store, fetcher, cache.ResolverOptions{
		Logger:         logger,
		Metrics:        m,
		CoalesceMisses: cfg.Global.CoalesceMisses,
	})
	if err != nil {
		return err
	}
	rt.resolver = resolver

	app, err := server.NewApp(server.AppOptions{
		Logger:   logger,
		Resolver: resolver,
	})
	if err != nil {
		return err
	}
	routes.RegisterDiagnosticsRoutes(app, routes.DiagnosticsOptions{
		Store:    rt.store,
		Remotes:  registry,
		Gatherer: reg,
		Version:  version.Full(),
	})
	rt.app = app
	return nil
}

// buildRegistry 注册 s3 后端，并在启用时注册 http/https 后端。
func buildRegistry(ctx context.Context, cfg *config.Config) (*remote.Registry, error) {
	registry := remote.NewRegistry()

	s3Backend, err := s3store.New(ctx, s3store.Config{
		Region:          cfg.S3.Region,
		Endpoint:        cfg.S3.Endpoint,
		AccessKeyID:     cfg.S3.AccessKeyID,
		SecretAccessKey: cfg.S3.SecretAccessKey,
		UsePathStyle:    cfg.S3.UsePathStyle,
		Timeout:         cfg.Global.FetchTimeout.DurationValue(),
	})
	if err != nil {
		return nil, fmt.Errorf("init s3 backend: %w", err)
	}
	if err := registry.Register(s3store.Scheme, s3Backend); err != nil {
		return nil, err
	}

	if cfg.HTTP.Enabled {
		client := remote.NewHTTPClient(cfg.Global.FetchTimeout.DurationValue())
		for _, scheme := range httpstore.Schemes {
			if err := registry.Register(scheme, httpstore.New(client, scheme)); err != nil {
				return nil, err
			}
		}
	}
	return registry, nil
}

// Close 释放元数据库句柄，可重复调用。
func (rt *services) Close() error {
	if rt == nil || rt.store == nil {
		return nil
	}
	return rt.store.Close()
}
