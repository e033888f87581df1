package vm

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"hookvault/types"
)

// ProgramRegistry 程序注册表，按程序 ID 路由指令
type ProgramRegistry struct {
	mu sync.RWMutex
	m  map[types.Pubkey]Program
}

// NewProgramRegistry 创建新的注册表
func NewProgramRegistry() *ProgramRegistry {
	return &ProgramRegistry{m: make(map[types.Pubkey]Program)}
}

// 注册程序
func (r *ProgramRegistry) Register(p Program) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if p == nil {
		return errors.New("nil program")
	}

	id := p.ID()
	if id.IsZero() {
		return errors.New("program id must not be the system id")
	}

	if old, ok := r.m[id]; ok {
		return fmt.Errorf("duplicate program id %s (%s)", id, old.Name())
	}
	r.m[id] = p
	return nil
}

// Get 获取程序
func (r *ProgramRegistry) Get(id types.Pubkey) (Program, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.m[id]
	return p, ok
}

// List 列出所有已注册的程序名
func (r *ProgramRegistry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.m))
	for _, p := range r.m {
		names = append(names, p.Name())
	}
	sort.Strings(names)
	return names
}
