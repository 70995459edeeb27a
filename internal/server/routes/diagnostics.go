package routes

import (
	"context"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// EntryCounter 返回元数据表中的记录数，*metadata.Store 满足该接口。
type EntryCounter interface {
	Count(ctx context.Context) (int64, error)
}

// SchemeLister 返回已注册的标识 scheme，*remote.Registry 满足该接口。
type SchemeLister interface {
	Schemes() []string
}

// DiagnosticsOptions 描述诊断接口依赖，缺省字段对应的路由不会注册。
type DiagnosticsOptions struct {
	Store    EntryCounter
	Remotes  SchemeLister
	Gatherer prometheus.Gatherer
	Version  string
}

// RegisterDiagnosticsRoutes 暴露 /-/healthz、/-/remotes 与 /-/metrics 诊断接口。
func RegisterDiagnosticsRoutes(app *fiber.App, opts DiagnosticsOptions) {
	if app == nil {
		return
	}

	if opts.Store != nil {
		app.Get("/-/healthz", func(c fiber.Ctx) error {
			ctx := c.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			entries, err := opts.Store.Count(ctx)
			if err != nil {
				return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
					"status": "unavailable",
					"error":  "store_unavailable",
				})
			}
			payload := fiber.Map{
				"status":  "ok",
				"entries": entries,
			}
			if opts.Version != "" {
				payload["version"] = opts.Version
			}
			return c.JSON(payload)
		})
	}

	if opts.Remotes != nil {
		app.Get("/-/remotes", func(c fiber.Ctx) error {
			schemes := opts.Remotes.Schemes()
			if schemes == nil {
				schemes = []string{}
			}
			return c.JSON(fiber.Map{"schemes": schemes})
		})
	}

	if opts.Gatherer != nil {
		handler := promhttp.HandlerFor(opts.Gatherer, promhttp.HandlerOpts{})
		app.Get("/-/metrics", adaptor.HTTPHandler(handler))
	}
}
