package obs

import "cdpauth/pkg/model"

// Observer 操作结果观察接口
// 失败路径在返回错误前发出事件，上层据此记录而无需解析错误值
type Observer interface {
	OperationFailed(evt model.OperationEvent)
}

// NopObserver 丢弃全部事件的实现
type NopObserver struct{}

func (NopObserver) OperationFailed(model.OperationEvent) {}
