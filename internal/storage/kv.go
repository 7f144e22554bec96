package storage

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"cdpauth/pkg/errx"

	"gorm.io/gorm"
)

// 命名空间：规则与开关走同步命名空间，统计走本地命名空间
const (
	NamespaceSync  = "sync"
	NamespaceLocal = "local"
)

// 众所周知的键
const (
	KeyRules   = "auth_rules"
	KeyEnabled = "injection_enabled"
	KeyStats   = "domain_stats"
)

// Change 存储变更通知，任何一次本地提交后按键投递
type Change struct {
	Namespace string
	Key       string
	OldValue  string
	NewValue  string
}

// KV 命名空间化的键值存储，附带变更订阅
type KV struct {
	db *DB

	mu       sync.Mutex
	watchers []func(Change)
}

// NewKV 创建键值存储实例
func NewKV(db *DB) *KV {
	return &KV{db: db}
}

// Watch 订阅变更通知；回调在提交后同步执行，
// 保证同进程内后续读取一定看到刷新后的状态
func (s *KV) Watch(fn func(Change)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.watchers = append(s.watchers, fn)
}

// Get 读取键值；键不存在返回 ok=false 而非错误
func (s *KV) Get(ns, key string) (string, bool, error) {
	var entry KVEntry
	err := s.db.GormDB().Where("namespace = ? AND key = ?", ns, key).First(&entry).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", false, nil
		}
		return "", false, errx.Wrap(errx.CodeStorage, err, fmt.Sprintf("get %s/%s", ns, key))
	}
	return entry.Value, true, nil
}

// Set 写入键值并投递变更通知
func (s *KV) Set(ns, key, value string) error {
	old, _, err := s.Get(ns, key)
	if err != nil {
		return err
	}
	entry := KVEntry{Namespace: ns, Key: key, Value: value, UpdatedAt: time.Now()}
	if err := s.db.GormDB().Save(&entry).Error; err != nil {
		return errx.Wrap(errx.CodeStorage, err, fmt.Sprintf("set %s/%s", ns, key))
	}
	s.notify(Change{Namespace: ns, Key: key, OldValue: old, NewValue: value})
	return nil
}

// Remove 删除键并投递变更通知
func (s *KV) Remove(ns, key string) error {
	old, found, err := s.Get(ns, key)
	if err != nil {
		return err
	}
	if err := s.db.GormDB().Delete(&KVEntry{}, "namespace = ? AND key = ?", ns, key).Error; err != nil {
		return errx.Wrap(errx.CodeStorage, err, fmt.Sprintf("remove %s/%s", ns, key))
	}
	if found {
		s.notify(Change{Namespace: ns, Key: key, OldValue: old})
	}
	return nil
}

// Clear 清空命名空间内的所有键
func (s *KV) Clear(ns string) error {
	if err := s.db.GormDB().Delete(&KVEntry{}, "namespace = ?", ns).Error; err != nil {
		return errx.Wrap(errx.CodeStorage, err, fmt.Sprintf("clear %s", ns))
	}
	return nil
}

// GetAll 读取命名空间内的所有键值
func (s *KV) GetAll(ns string) (map[string]string, error) {
	var entries []KVEntry
	if err := s.db.GormDB().Where("namespace = ?", ns).Find(&entries).Error; err != nil {
		return nil, errx.Wrap(errx.CodeStorage, err, fmt.Sprintf("getAll %s", ns))
	}
	out := make(map[string]string, len(entries))
	for _, e := range entries {
		out[e.Key] = e.Value
	}
	return out, nil
}

// notify 同步分发变更通知
func (s *KV) notify(c Change) {
	s.mu.Lock()
	watchers := make([]func(Change), len(s.watchers))
	copy(watchers, s.watchers)
	s.mu.Unlock()
	for _, fn := range watchers {
		fn(c)
	}
}
