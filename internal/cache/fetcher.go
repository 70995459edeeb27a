package cache

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/objcache/objcache/internal/metrics"
	"github.com/objcache/objcache/internal/remote"
)

// DefaultStagingPrefix 是暂存文件名前缀。
const DefaultStagingPrefix = "obj-"

// FetcherOptions 描述 Fetcher 的依赖。
type FetcherOptions struct {
	StagingDir string
	Prefix     string
	Registry   *remote.Registry
	Logger     *logrus.Logger
	Metrics    *metrics.Metrics
}

// Fetcher 把远端对象下载到暂存目录中的新文件，自身不保存任何对象状态。
type Fetcher struct {
	stagingDir string
	prefix     string
	registry   *remote.Registry
	logger     *logrus.Logger
	metrics    *metrics.Metrics
}

// NewFetcher 以 StagingDir 为根目录构建 Fetcher，目录不存在时会被创建。
func NewFetcher(opts FetcherOptions) (*Fetcher, error) {
	if opts.StagingDir == "" {
		return nil, errors.New("staging dir required")
	}
	if opts.Registry == nil {
		return nil, errors.New("remote registry required")
	}

	abs, err := filepath.Abs(opts.StagingDir)
	if err != nil {
		return nil, fmt.Errorf("resolve staging dir: %w", err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("create staging dir: %w", err)
	}

	prefix := opts.Prefix
	if prefix == "" {
		prefix = DefaultStagingPrefix
	}
	logger := opts.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	return &Fetcher{
		stagingDir: abs,
		prefix:     prefix,
		registry:   opts.Registry,
		logger:     logger,
		metrics:    opts.Metrics,
	}, nil
}

// StagingDir 返回暂存目录的绝对路径。
func (f *Fetcher) StagingDir() string {
	return f.stagingDir
}

// Validate 检查标识格式以及 scheme 是否已注册 Backend，不触碰暂存目录。
func (f *Fetcher) Validate(identifier string) error {
	_, _, err := f.resolve(identifier)
	return err
}

func (f *Fetcher) resolve(identifier string) (Identifier, remote.Backend, error) {
	id, err := ParseIdentifier(identifier)
	if err != nil {
		return Identifier{}, nil, err
	}
	backend, ok := f.registry.Resolve(id.Scheme)
	if !ok {
		return Identifier{}, nil, fmt.Errorf("%w: unsupported scheme %q", ErrMalformedIdentifier, id.Scheme)
	}
	return id, backend, nil
}

// Fetch 解析标识、分配新的暂存文件并写入远端字节，返回该文件的绝对路径。
// 解析成功后每次调用都会留下一个新文件，失败时也不清理。
func (f *Fetcher) Fetch(ctx context.Context, identifier string) (string, error) {
	id, backend, err := f.resolve(identifier)
	if err != nil {
		return "", err
	}

	file, err := os.CreateTemp(f.stagingDir, f.prefix+"*")
	if err != nil {
		return "", fmt.Errorf("%w: allocate staging file: %w", ErrRemoteTransport, err)
	}
	localPath := file.Name()

	started := time.Now()
	written, err := download(ctx, backend, id, file)
	closeErr := file.Close()
	if err == nil && closeErr != nil {
		err = fmt.Errorf("%w: close staging file: %w", ErrRemoteTransport, closeErr)
	}
	elapsed := time.Since(started)

	fields := logrus.Fields{
		"action":      "fetch",
		"identifier":  id.Raw,
		"scheme":      id.Scheme,
		"staging":     localPath,
		"bytes":       written,
		"duration_ms": elapsed.Milliseconds(),
	}
	if err != nil {
		result := "failure"
		if errors.Is(err, ErrRemoteNotFound) {
			result = "not_found"
		}
		f.metrics.RecordFetch(id.Scheme, result, elapsed, written)
		f.logger.WithFields(fields).WithError(err).Warn("fetch_failed")
		return "", err
	}

	f.metrics.RecordFetch(id.Scheme, "success", elapsed, written)
	f.logger.WithFields(fields).Debug("fetch_completed")
	return localPath, nil
}

func download(ctx context.Context, backend remote.Backend, id Identifier, dst io.Writer) (int64, error) {
	body, err := backend.Open(ctx, id.Container, id.Key)
	if err != nil {
		if errors.Is(err, remote.ErrObjectNotFound) {
			return 0, fmt.Errorf("%w: %s: %w", ErrRemoteNotFound, id.Raw, err)
		}
		return 0, fmt.Errorf("%w: %s: %w", ErrRemoteTransport, id.Raw, err)
	}
	defer body.Close()

	written, err := copyWithContext(ctx, dst, body)
	if err != nil {
		return written, fmt.Errorf("%w: %s: %w", ErrRemoteTransport, id.Raw, err)
	}
	return written, nil
}

func copyWithContext(ctx context.Context, dst io.Writer, src io.Reader) (int64, error) {
	var copied int64
	buf := make([]byte, 32*1024)
	for {
		if err := ctx.Err(); err != nil {
			return copied, err
		}
		n, err := src.Read(buf)
		if n > 0 {
			w, wErr := dst.Write(buf[:n])
			copied += int64(w)
			if wErr != nil {
				return copied, wErr
			}
			if w < n {
				return copied, io.ErrShortWrite
			}
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				return copied, nil
			}
			return copied, err
		}
	}
}
