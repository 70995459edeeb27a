package cache

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"

	"github.com/objcache/objcache/internal/logging"
	"github.com/objcache/objcache/internal/metadata"
	"github.com/objcache/objcache/internal/metrics"
)

// EntryStore 是 Resolver 依赖的元数据读写能力，*metadata.Store 满足该接口。
type EntryStore interface {
	Lookup(ctx context.Context, identifier string) (string, bool, error)
	Insert(ctx context.Context, identifier, localPath string) error
}

// ObjectFetcher 把远端对象落盘并返回本地路径，*Fetcher 满足该接口。
// Validate 在访问元数据之前拒绝格式错误或 scheme 未注册的标识。
type ObjectFetcher interface {
	Validate(identifier string) error
	Fetch(ctx context.Context, identifier string) (string, error)
}

// ResolverOptions 控制 Resolver 的可选行为。
type ResolverOptions struct {
	Logger  *logrus.Logger
	Metrics *metrics.Metrics
	// CoalesceMisses 为 true 时，同进程内同一标识的并发 miss 共享一次下载。
	CoalesceMisses bool
}

// Resolver 实现“先查元数据，miss 再回源并记录”的策略，进程内构造一次并注入各请求处理器。
type Resolver struct {
	store    EntryStore
	fetcher  ObjectFetcher
	logger   *logrus.Logger
	metrics  *metrics.Metrics
	coalesce bool
	inflight singleflight.Group
}

// NewResolver 组合元数据存储与 Fetcher。
func NewResolver(store EntryStore, fetcher ObjectFetcher, opts ResolverOptions) (*Resolver, error) {
	if store == nil {
		return nil, errors.New("entry store required")
	}
	if fetcher == nil {
		return nil, errors.New("object fetcher required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Resolver{
		store:    store,
		fetcher:  fetcher,
		logger:   logger,
		metrics:  opts.Metrics,
		coalesce: opts.CoalesceMisses,
	}, nil
}

// Resolve 返回 identifier 对应的本地路径：命中直接返回，未命中时下载并记录映射。
// 查询与记录分属两个独立的事务作用域，下载期间不持有元数据锁。
func (r *Resolver) Resolve(ctx context.Context, identifier string) (string, error) {
	if err := r.fetcher.Validate(identifier); err != nil {
		r.metrics.RecordResolution(metrics.OutcomeError)
		return "", err
	}

	localPath, found, err := r.store.Lookup(ctx, identifier)
	if err != nil {
		r.metrics.RecordResolution(metrics.OutcomeError)
		return "", fmt.Errorf("lookup %s: %w", identifier, err)
	}
	if found {
		r.metrics.RecordResolution(metrics.OutcomeHit)
		r.logger.WithFields(logging.ResolveFields(identifier, true)).Debug("cache_hit")
		return localPath, nil
	}

	if r.coalesce {
		return r.resolveShared(ctx, identifier)
	}

	localPath, err = r.fetchAndRecord(ctx, identifier)
	if err != nil {
		r.metrics.RecordResolution(metrics.OutcomeError)
		return "", err
	}
	r.metrics.RecordResolution(metrics.OutcomeMiss)
	return localPath, nil
}

// resolveShared 让同一标识的并发 miss 共享一次下载。共享下载不随任何单个调用方取消，
// 由 http.Client 的 FetchTimeout 约束；调用方各自在自己的 ctx 结束时提前返回。
func (r *Resolver) resolveShared(ctx context.Context, identifier string) (string, error) {
	detached := context.WithoutCancel(ctx)
	ch := r.inflight.DoChan(identifier, func() (interface{}, error) {
		return r.fetchAndRecord(detached, identifier)
	})

	select {
	case <-ctx.Done():
		r.metrics.RecordResolution(metrics.OutcomeError)
		return "", fmt.Errorf("%w: %s: %w", ErrRemoteTransport, identifier, ctx.Err())
	case res := <-ch:
		if res.Err != nil {
			r.metrics.RecordResolution(metrics.OutcomeError)
			return "", res.Err
		}
		if res.Shared {
			r.logger.WithFields(logging.ResolveFields(identifier, false)).Debug("miss_coalesced")
		}
		r.metrics.RecordResolution(metrics.OutcomeMiss)
		return res.Val.(string), nil
	}
}

func (r *Resolver) fetchAndRecord(ctx context.Context, identifier string) (string, error) {
	localPath, err := r.fetcher.Fetch(ctx, identifier)
	if err != nil {
		return "", err
	}

	fields := logging.ResolveFields(identifier, false)
	fields["local_path"] = localPath

	if err := r.store.Insert(ctx, identifier, localPath); err != nil {
		if metadata.IsDuplicate(err) {
			// 并发 miss 已由其他调用方记录；本次下载的文件仍是该对象的有效副本。
			r.logger.WithFields(fields).Warn("concurrent_miss_recorded_elsewhere")
			return localPath, nil
		}
		return "", fmt.Errorf("record %s: %w", identifier, err)
	}

	r.logger.WithFields(fields).Info("cache_recorded")
	return localPath, nil
}
