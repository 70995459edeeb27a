package server

import (
	"context"
	"errors"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/recover"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Resolver 描述 HTTP 层依赖的解析能力，测试中可注入假实现。
type Resolver interface {
	Resolve(ctx context.Context, identifier string) (string, error)
}

// ResolverFunc adapts a function to the Resolver interface.
type ResolverFunc func(ctx context.Context, identifier string) (string, error)

// Resolve makes ResolverFunc satisfy Resolver.
func (f ResolverFunc) Resolve(ctx context.Context, identifier string) (string, error) {
	return f(ctx, identifier)
}

// AppOptions 汇总构建 Fiber 应用所需的依赖。
type AppOptions struct {
	Logger   *logrus.Logger
	Resolver Resolver
}

const contextKeyRequestID = "_objcache_request_id"

// NewApp builds a Fiber application with request ID middleware, panic
// recovery and the /get_local endpoint.
func NewApp(opts AppOptions) (*fiber.App, error) {
	if opts.Logger == nil {
		return nil, errors.New("logger is required")
	}
	if opts.Resolver == nil {
		return nil, errors.New("resolver is required")
	}

	app := fiber.New(fiber.Config{
		CaseSensitive: true,
	})

	app.Use(recover.New())
	app.Use(requestContextMiddleware())

	app.Get("/get_local", newGetLocalHandler(opts.Resolver, opts.Logger))

	return app, nil
}

// requestContextMiddleware 为每个请求生成请求 ID 并写入响应头。
func requestContextMiddleware() fiber.Handler {
	return func(c fiber.Ctx) error {
		reqID := uuid.NewString()
		c.Locals(contextKeyRequestID, reqID)
		c.Set("X-Request-ID", reqID)
		return c.Next()
	}
}

// RequestID returns the request identifier stored by the router middleware.
func RequestID(c fiber.Ctx) string {
	if value := c.Locals(contextKeyRequestID); value != nil {
		if reqID, ok := value.(string); ok {
			return reqID
		}
	}
	return ""
}
