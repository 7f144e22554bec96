package storage

import (
	"time"
)

// KVEntry 命名空间化的键值表，值为 JSON 文本
type KVEntry struct {
	Namespace string    `gorm:"primaryKey" json:"namespace"` // sync / local
	Key       string    `gorm:"primaryKey" json:"key"`       // 键名
	Value     string    `gorm:"type:text" json:"value"`      // JSON 序列化后的值
	UpdatedAt time.Time `json:"updatedAt"`                   // 更新时间
}

// OperationEventRecord 操作事件历史表
type OperationEventRecord struct {
	ID        uint      `gorm:"primaryKey" json:"id"`   // 主键ID
	Op        string    `gorm:"index" json:"op"`        // 操作名称
	Message   string    `json:"message"`                // 错误或说明
	Timestamp int64     `gorm:"index" json:"timestamp"` // 时间戳（毫秒）
	CreatedAt time.Time `json:"createdAt"`              // 入库时间
}
