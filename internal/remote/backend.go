package remote

import (
	"context"
	"errors"
	"io"
)

// ErrObjectNotFound 表示远端确认对象不存在，调用方不应重试。
var ErrObjectNotFound = errors.New("remote object not found")

// Backend 打开远端对象的字节流，调用方负责关闭返回的 Reader。
type Backend interface {
	Open(ctx context.Context, container, key string) (io.ReadCloser, error)
}

// BackendFunc 让普通函数满足 Backend 接口，便于测试注入。
type BackendFunc func(ctx context.Context, container, key string) (io.ReadCloser, error)

// Open 实现 Backend。
func (f BackendFunc) Open(ctx context.Context, container, key string) (io.ReadCloser, error) {
	return f(ctx, container, key)
}
