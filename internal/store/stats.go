package store

import (
	"encoding/json"
	"strings"

	"cdpauth/internal/storage"
	"cdpauth/pkg/errx"
	"cdpauth/pkg/model"

	"github.com/tidwall/gjson"
)

// Stats 域名统计存储
// 整个映射作为一份 JSON 文档保存在本地命名空间；
// 合并语义在追踪器内完成，这里只提供整体替换与清空
type Stats struct {
	kv *storage.KV
}

// NewStats 创建统计存储实例
func NewStats(kv *storage.KV) *Stats {
	return &Stats{kv: kv}
}

// Get 读取统计全集，键不存在时返回空映射
func (s *Stats) Get() (model.StatsMap, error) {
	raw, found, err := s.kv.Get(storage.NamespaceLocal, storage.KeyStats)
	if err != nil {
		return nil, err
	}
	if !found || raw == "" {
		return model.StatsMap{}, nil
	}
	var m model.StatsMap
	if err := json.Unmarshal([]byte(raw), &m); err != nil {
		return nil, errx.Wrap(errx.CodeStorage, err, "decode stats")
	}
	return m, nil
}

// Replace 整体写入统计映射，批量落盘调度器的唯一写入口
func (s *Stats) Replace(m model.StatsMap) error {
	raw, err := json.Marshal(m)
	if err != nil {
		return errx.Wrap(errx.CodeStorage, err, "encode stats")
	}
	return s.kv.Set(storage.NamespaceLocal, storage.KeyStats, string(raw))
}

// Clear 清空统计，仅由用户显式操作触发
func (s *Stats) Clear() error {
	return s.kv.Remove(storage.NamespaceLocal, storage.KeyStats)
}

// Domain 按域名读取单条统计，界面按需查询用，不反序列化整个文档
func (s *Stats) Domain(host string) (model.DomainStat, bool, error) {
	raw, found, err := s.kv.Get(storage.NamespaceLocal, storage.KeyStats)
	if err != nil {
		return model.DomainStat{}, false, err
	}
	if !found || raw == "" {
		return model.DomainStat{}, false, nil
	}
	// gjson 路径中的 . 需要转义
	res := gjson.Get(raw, strings.ReplaceAll(host, ".", "\\."))
	if !res.Exists() {
		return model.DomainStat{}, false, nil
	}
	var st model.DomainStat
	if err := json.Unmarshal([]byte(res.Raw), &st); err != nil {
		return model.DomainStat{}, false, errx.Wrap(errx.CodeStorage, err, "decode stat "+host)
	}
	return st, true, nil
}
