package remote

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Registry 维护 scheme → Backend 的映射，由启动流程显式构造并注入。
type Registry struct {
	mu       sync.RWMutex
	backends map[string]Backend
}

// NewRegistry 创建空注册表。
func NewRegistry() *Registry {
	return &Registry{backends: make(map[string]Backend)}
}

// Register 绑定 scheme 与 Backend，重复 scheme 会返回错误。
func (r *Registry) Register(scheme string, backend Backend) error {
	key := normalizeScheme(scheme)
	if key == "" {
		return fmt.Errorf("scheme is required")
	}
	if backend == nil {
		return fmt.Errorf("backend for scheme %s is nil", key)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.backends[key]; exists {
		return fmt.Errorf("scheme %s already registered", key)
	}
	r.backends[key] = backend
	return nil
}

// MustRegister 在注册失败时 panic，适合启动阶段使用。
func (r *Registry) MustRegister(scheme string, backend Backend) {
	if err := r.Register(scheme, backend); err != nil {
		panic(err)
	}
}

// Resolve 返回 scheme 对应的 Backend。
func (r *Registry) Resolve(scheme string) (Backend, bool) {
	if r == nil {
		return nil, false
	}
	key := normalizeScheme(scheme)
	if key == "" {
		return nil, false
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	backend, ok := r.backends[key]
	return backend, ok
}

// Schemes 返回已注册 scheme 的有序列表，供诊断接口输出。
func (r *Registry) Schemes() []string {
	if r == nil {
		return nil
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	if len(r.backends) == 0 {
		return nil
	}
	keys := make([]string, 0, len(r.backends))
	for key := range r.backends {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

func normalizeScheme(scheme string) string {
	return strings.ToLower(strings.TrimSpace(scheme))
}
