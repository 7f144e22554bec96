// Package filter 定义声明式过滤引擎的外部契约
// 引擎接收整组指令并在请求期自行匹配执行，本进程不再参与
package filter

import (
	"context"

	"cdpauth/pkg/model"
)

// Engine 声明式过滤引擎
type Engine interface {
	// List 查询当前安装的指令
	List(ctx context.Context) ([]model.Directive, error)
	// Replace 原子替换：移除 removeIDs 中的指令并安装 add，两者皆可为空
	// 以空列表移除是无操作而非错误
	Replace(ctx context.Context, removeIDs []int, add []model.Directive) error
}
