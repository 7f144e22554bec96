package store

import (
	"cdpauth/internal/storage"
)

// Flags 持久化的开关项
type Flags struct {
	kv *storage.KV
}

// NewFlags 创建开关存储实例
func NewFlags(kv *storage.KV) *Flags {
	return &Flags{kv: kv}
}

// Enabled 读取注入开关，键不存在时默认关闭
func (f *Flags) Enabled() (bool, error) {
	raw, found, err := f.kv.Get(storage.NamespaceSync, storage.KeyEnabled)
	if err != nil {
		return false, err
	}
	return found && raw == "true", nil
}

// SetEnabled 写入注入开关
func (f *Flags) SetEnabled(on bool) error {
	v := "false"
	if on {
		v = "true"
	}
	return f.kv.Set(storage.NamespaceSync, storage.KeyEnabled, v)
}
