package metadata

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

var (
	// ErrStoreUnavailable 表示元数据文件无法打开或初始化，启动阶段即视为致命错误。
	ErrStoreUnavailable = errors.New("metadata store unavailable")
	// ErrStoreClosed 表示 Store 已关闭，后续 Scope 无法再获取锁。
	ErrStoreClosed = errors.New("metadata store closed")
	// ErrDuplicateEntry 表示同一标识已经存在映射；Store 不做去重也不做 upsert。
	ErrDuplicateEntry = errors.New("cache entry already exists")
)

// Options 控制 Store 的可选行为。
type Options struct {
	// Logger 接收 gorm 的慢查询与错误日志，为空时静默。
	Logger *logrus.Logger
	// SlowThreshold 超过该耗时的 SQL 会以 warn 级别输出。
	SlowThreshold time.Duration
}

// Store 独占 SQLite 元数据文件，所有读写都必须经由 Scope 完成。
type Store struct {
	db   *gorm.DB
	path string

	// mu 是 Scope 最外层 Enter 获取、最外层 Exit 释放的排他锁。
	mu     sync.Mutex
	closed bool

	commits   atomic.Int64
	closeOnce sync.Once
	closeErr  error
}

// Open 打开（必要时创建）path 指向的元数据文件，新文件会先建表再返回。
func Open(path string, opts Options) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("%w: database path required", ErrStoreUnavailable)
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("%w: resolve database path: %w", ErrStoreUnavailable, err)
	}
	if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
		return nil, fmt.Errorf("%w: create database directory: %w", ErrStoreUnavailable, err)
	}

	// WAL + busy_timeout 让外部只读工具查看数据文件时不会阻塞写入。
	dsn := abs + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         newGormLogger(opts),
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: open database: %w", ErrStoreUnavailable, err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("%w: get underlying database: %w", ErrStoreUnavailable, err)
	}
	// 所有访问已被 Store.mu 串行化，单连接即可，且避免事务在连接间漂移。
	sqlDB.SetMaxOpenConns(1)

	if !db.Migrator().HasTable(TableName) {
		if err := db.Migrator().CreateTable(&CacheEntry{}); err != nil {
			_ = sqlDB.Close()
			return nil, fmt.Errorf("%w: initialize schema: %w", ErrStoreUnavailable, err)
		}
	}

	return &Store{db: db, path: abs}, nil
}

func newGormLogger(opts Options) gormlogger.Interface {
	if opts.Logger == nil {
		return gormlogger.Default.LogMode(gormlogger.Silent)
	}
	slow := opts.SlowThreshold
	if slow <= 0 {
		slow = 200 * time.Millisecond
	}
	return gormlogger.New(opts.Logger, gormlogger.Config{
		SlowThreshold:             slow,
		LogLevel:                  gormlogger.Warn,
		IgnoreRecordNotFoundError: true,
	})
}

// Path 返回元数据文件的绝对路径。
func (s *Store) Path() string {
	return s.path
}

// Scope 为一次逻辑操作创建新的事务作用域；作用域不可跨 goroutine 共享。
func (s *Store) Scope() *Scope {
	return &Scope{store: s}
}

// Commits 返回自打开以来成功提交的最外层事务数量。
func (s *Store) Commits() int64 {
	return s.commits.Load()
}

// Lookup 在独立作用域中查询 identifier 对应的本地路径。
func (s *Store) Lookup(ctx context.Context, identifier string) (string, bool, error) {
	return s.Scope().Lookup(ctx, identifier)
}

// Insert 在独立作用域中写入新映射，调用方需保证此前不存在同名条目。
func (s *Store) Insert(ctx context.Context, identifier, localPath string) error {
	return s.Scope().Insert(ctx, identifier, localPath)
}

// Count 返回当前映射条目数，供诊断接口使用。
func (s *Store) Count(ctx context.Context) (int64, error) {
	var total int64
	err := s.Scope().Do(ctx, func(tx *gorm.DB) error {
		return tx.Model(&CacheEntry{}).Count(&total).Error
	})
	return total, err
}

// Close 等待进行中的作用域结束后关闭底层句柄，重复调用安全。
func (s *Store) Close() error {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.closed = true

		sqlDB, err := s.db.DB()
		if err != nil {
			s.closeErr = err
			return
		}
		s.closeErr = sqlDB.Close()
	})
	return s.closeErr
}

// IsDuplicate 判断 err 是否源自主键冲突。
func IsDuplicate(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrDuplicateEntry) || errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
