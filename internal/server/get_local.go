package server

import (
	"context"
	"errors"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/sirupsen/logrus"

	"github.com/objcache/objcache/internal/cache"
)

// newGetLocalHandler 处理 GET /get_local?path=<identifier>，成功时以纯文本返回本地路径。
func newGetLocalHandler(resolver Resolver, logger *logrus.Logger) fiber.Handler {
	return func(c fiber.Ctx) error {
		// 标识原样作为元数据主键，不做任何规范化。
		identifier := c.Query("path")
		fields := logrus.Fields{
			"action":     "get_local",
			"identifier": identifier,
			"request_id": RequestID(c),
		}
		if identifier == "" {
			logger.WithFields(fields).Warn("path_required")
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "path_required"})
		}

		ctx := c.Context()
		if ctx == nil {
			ctx = context.Background()
		}

		started := time.Now()
		localPath, err := resolver.Resolve(ctx, identifier)
		fields["elapsed_ms"] = time.Since(started).Milliseconds()
		if err != nil {
			status, code := classifyResolveError(err)
			entry := logger.WithFields(fields).WithError(err)
			if status >= fiber.StatusInternalServerError {
				entry.Error(code)
			} else {
				entry.Warn(code)
			}
			return c.Status(status).JSON(fiber.Map{"error": code})
		}

		fields["local_path"] = localPath
		logger.WithFields(fields).Debug("get_local_completed")

		c.Set(fiber.HeaderContentType, fiber.MIMETextPlainCharsetUTF8)
		return c.SendString(localPath)
	}
}

// classifyResolveError 把解析错误映射为 HTTP 状态码与错误码。
func classifyResolveError(err error) (int, string) {
	switch {
	case errors.Is(err, cache.ErrMalformedIdentifier):
		return fiber.StatusBadRequest, "malformed_identifier"
	case errors.Is(err, cache.ErrRemoteNotFound):
		return fiber.StatusNotFound, "remote_not_found"
	case errors.Is(err, cache.ErrRemoteTransport):
		return fiber.StatusBadGateway, "remote_transport_error"
	default:
		return fiber.StatusInternalServerError, "resolve_failed"
	}
}
