package cache

import "errors"

var (
	// ErrMalformedIdentifier 表示标识无法解析为 scheme://container/key，或 scheme 未注册。
	ErrMalformedIdentifier = errors.New("malformed identifier")
	// ErrRemoteNotFound 表示远端确认对象不存在。
	ErrRemoteNotFound = errors.New("remote object not found")
	// ErrRemoteTransport 表示网络、远端服务或本地写盘失败。
	ErrRemoteTransport = errors.New("remote transport error")
)
