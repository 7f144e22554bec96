package filter

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"cdpauth/internal/rules"
	"cdpauth/pkg/errx"
	"cdpauth/pkg/model"
)

// Memory 进程内过滤引擎实现，亦用作测试替身
type Memory struct {
	mu        sync.RWMutex
	installed map[int]model.Directive
}

// NewMemory 创建空的进程内引擎
func NewMemory() *Memory {
	return &Memory{installed: make(map[int]model.Directive)}
}

// List 返回当前安装的指令，按 ID 升序
func (m *Memory) List(ctx context.Context) ([]model.Directive, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.snapshot(), nil
}

// Replace 在单次调用内完成移除与安装，超出容量时整体拒绝
func (m *Memory) Replace(ctx context.Context, removeIDs []int, add []model.Directive) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	next := make(map[int]model.Directive, len(m.installed))
	for id, d := range m.installed {
		next[id] = d
	}
	for _, id := range removeIDs {
		delete(next, id)
	}
	for _, d := range add {
		next[d.ID] = d
	}
	if len(next) > rules.MaxDirectives {
		return errx.New(errx.CodeFilterEngine,
			fmt.Sprintf("directive count %d exceeds cap %d", len(next), rules.MaxDirectives))
	}
	m.installed = next
	return nil
}

// Match 请求期匹配，见 filter.Match
func (m *Memory) Match(rawURL, resourceKind string) (model.Directive, bool) {
	m.mu.RLock()
	list := m.snapshot()
	m.mu.RUnlock()
	return Match(list, rawURL, resourceKind)
}

// snapshot 调用方需持有读锁
func (m *Memory) snapshot() []model.Directive {
	out := make([]model.Directive, 0, len(m.installed))
	for _, d := range m.installed {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
