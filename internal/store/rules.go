// Package store 在键值存储之上提供规则、开关与统计的领域视图
package store

import (
	"encoding/json"
	"sync"

	"cdpauth/internal/logger"
	"cdpauth/internal/storage"
	"cdpauth/pkg/errx"
	"cdpauth/pkg/rulespec"
)

// Rules 规则存储与进程内镜像
// 持久化单位是整个规则集合（整表读-改-写），并发编辑按集合级 last-writer-wins 处理
type Rules struct {
	kv  *storage.KV
	log logger.Logger

	mu    sync.RWMutex
	cache []rulespec.Rule
}

// NewRules 创建规则存储并订阅规则键的变更通知
func NewRules(kv *storage.KV, log logger.Logger) *Rules {
	s := &Rules{kv: kv, log: log}
	kv.Watch(func(c storage.Change) {
		if c.Namespace == storage.NamespaceSync && c.Key == storage.KeyRules {
			s.refresh(c.NewValue)
		}
	})
	return s
}

// Load 启动时读取规则列表并填充镜像；键不存在时回退为空列表
// 这是唯一允许默认化的读取路径，其余读取失败都向上传播
func (s *Rules) Load() error {
	list, err := s.List()
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.cache = list
	s.mu.Unlock()
	return nil
}

// List 从持久层读取规则全集
func (s *Rules) List() ([]rulespec.Rule, error) {
	raw, found, err := s.kv.Get(storage.NamespaceSync, storage.KeyRules)
	if err != nil {
		return nil, err
	}
	if !found || raw == "" {
		return []rulespec.Rule{}, nil
	}
	var list []rulespec.Rule
	if err := json.Unmarshal([]byte(raw), &list); err != nil {
		return nil, errx.Wrap(errx.CodeStorage, err, "decode rules")
	}
	return list, nil
}

// Replace 整表写入规则集合，写入后镜像通过变更通知同步刷新
func (s *Rules) Replace(list []rulespec.Rule) error {
	raw, err := json.Marshal(list)
	if err != nil {
		return errx.Wrap(errx.CodeStorage, err, "encode rules")
	}
	return s.kv.Set(storage.NamespaceSync, storage.KeyRules, string(raw))
}

// Cached 返回内存镜像，供请求观察路径低延迟查询，不触发存储读
func (s *Rules) Cached() []rulespec.Rule {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cache
}

// refresh 按变更通知整表重建镜像，陈旧状态在一次事件内自愈
func (s *Rules) refresh(raw string) {
	var list []rulespec.Rule
	if raw != "" {
		if err := json.Unmarshal([]byte(raw), &list); err != nil {
			s.log.Err(err, "规则镜像刷新失败，保留旧镜像")
			return
		}
	}
	if list == nil {
		list = []rulespec.Rule{}
	}
	s.mu.Lock()
	s.cache = list
	s.mu.Unlock()
	s.log.Debug("规则镜像已刷新", "count", len(list))
}
