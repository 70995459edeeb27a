// Package httpstore serves "http://host/path" and "https://host/path"
// identifiers by issuing a plain GET against the origin.
package httpstore

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/objcache/objcache/internal/remote"
)

// Schemes 列出本 Backend 可以注册的 scheme。
var Schemes = []string{"http", "https"}

// Backend 以 GET 请求拉取对象，每个 scheme 注册一个实例。
type Backend struct {
	client *http.Client
	scheme string
}

var _ remote.Backend = (*Backend)(nil)

// New 为指定 scheme 构建 Backend，client 为空时使用 remote.NewHTTPClient 的默认配置。
func New(client *http.Client, scheme string) *Backend {
	if client == nil {
		client = remote.NewHTTPClient(0)
	}
	return &Backend{
		client: client,
		scheme: strings.ToLower(scheme),
	}
}

// Open 实现 remote.Backend：container 为 host[:port]，key 为路径。
func (b *Backend) Open(ctx context.Context, host, key string) (io.ReadCloser, error) {
	target := url.URL{
		Scheme: b.scheme,
		Host:   host,
		Path:   "/" + strings.TrimPrefix(key, "/"),
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("build request %s: %w", target.String(), err)
	}

	resp, err := b.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", target.String(), err)
	}

	switch {
	case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone:
		resp.Body.Close()
		return nil, fmt.Errorf("%s: %w", target.String(), remote.ErrObjectNotFound)
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		resp.Body.Close()
		return nil, fmt.Errorf("get %s: unexpected status %d", target.String(), resp.StatusCode)
	}
	return resp.Body, nil
}
