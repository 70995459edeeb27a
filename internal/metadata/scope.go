package metadata

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"gorm.io/gorm"
)

// ErrScopeNotEntered 表示 Exit 调用次数多于 Enter。
var ErrScopeNotEntered = errors.New("transaction scope not entered")

// Scope 是可重入的事务作用域：depth 从 0 变为 1 时获取 Store 锁并开启事务，
// 回到 0 时提交（或在失败时回滚）并释放锁。
//
// 同一个 Scope 只服务一次逻辑操作；在持有 Scope 时再通过 Store.Lookup 等
// 方法开启新的 Scope 会在 Store 锁上自我死锁，嵌套调用应使用 Scope 自身的方法。
type Scope struct {
	store  *Store
	tx     *gorm.DB
	depth  int
	failed bool
}

// Enter 增加嵌套深度并返回事务句柄，仅最外层会阻塞等待 Store 锁。
func (sc *Scope) Enter(ctx context.Context) (*gorm.DB, error) {
	if sc.depth == 0 {
		sc.store.mu.Lock()
		if sc.store.closed {
			sc.store.mu.Unlock()
			return nil, ErrStoreClosed
		}
		tx := sc.store.db.WithContext(ctx).Begin()
		if tx.Error != nil {
			sc.store.mu.Unlock()
			return nil, fmt.Errorf("begin transaction: %w", tx.Error)
		}
		sc.tx = tx
		sc.failed = false
	}
	sc.depth++
	return sc.tx, nil
}

// Exit 减少嵌套深度；最外层退出时提交挂起的写入并释放 Store 锁。
func (sc *Scope) Exit() error {
	if sc.depth == 0 {
		return ErrScopeNotEntered
	}
	sc.depth--
	if sc.depth > 0 {
		return nil
	}

	tx := sc.tx
	sc.tx = nil
	defer sc.store.mu.Unlock()

	if sc.failed {
		sc.failed = false
		if err := tx.Rollback().Error; err != nil && !errors.Is(err, sql.ErrTxDone) {
			return fmt.Errorf("rollback transaction: %w", err)
		}
		return nil
	}

	if err := tx.Commit().Error; err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	sc.store.commits.Add(1)
	return nil
}

// Fail 标记当前作用域失败，最外层 Exit 将回滚而不是提交。
func (sc *Scope) Fail() {
	if sc.depth > 0 {
		sc.failed = true
	}
}

// Depth 返回当前嵌套深度。
func (sc *Scope) Depth() int {
	return sc.depth
}

// Do 在作用域内执行 fn；fn 返回错误或 panic 时标记失败，
// 并保证在任意退出路径上恢复深度、释放锁。
func (sc *Scope) Do(ctx context.Context, fn func(tx *gorm.DB) error) (err error) {
	tx, err := sc.Enter(ctx)
	if err != nil {
		return err
	}

	defer func() {
		if r := recover(); r != nil {
			sc.Fail()
			_ = sc.Exit()
			panic(r)
		}
		if err != nil {
			sc.Fail()
		}
		if exitErr := sc.Exit(); err == nil {
			err = exitErr
		}
	}()

	return fn(tx)
}

// Lookup 返回 identifier 对应的本地路径；不存在时 found 为 false。
func (sc *Scope) Lookup(ctx context.Context, identifier string) (localPath string, found bool, err error) {
	err = sc.Do(ctx, func(tx *gorm.DB) error {
		var entries []CacheEntry
		if err := tx.Where("path = ?", identifier).Limit(1).Find(&entries).Error; err != nil {
			return fmt.Errorf("lookup %s: %w", identifier, err)
		}
		if len(entries) == 0 {
			return nil
		}
		localPath, found = entries[0].LocalPath, true
		return nil
	})
	return localPath, found, err
}

// Insert 写入新映射。已存在同名条目时返回 ErrDuplicateEntry，且不覆盖旧值。
func (sc *Scope) Insert(ctx context.Context, identifier, localPath string) error {
	return sc.Do(ctx, func(tx *gorm.DB) error {
		entry := CacheEntry{Identifier: identifier, LocalPath: localPath}
		if err := tx.Create(&entry).Error; err != nil {
			if IsDuplicate(err) {
				return fmt.Errorf("insert %s: %w: %w", identifier, ErrDuplicateEntry, err)
			}
			return fmt.Errorf("insert %s: %w", identifier, err)
		}
		return nil
	})
}
