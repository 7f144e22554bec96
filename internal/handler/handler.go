// Package handler 实现面向界面进程的消息契约
// 请求为 {"type": "...", "payload": {...}}，响应统一为 {"success", "data", "error"}
package handler

import (
	"context"
	"encoding/json"

	"cdpauth/internal/logger"
	"cdpauth/pkg/model"
	"cdpauth/pkg/rulespec"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// Backend 消息契约依赖的服务能力
type Backend interface {
	GetRules() ([]rulespec.Rule, error)
	SetRules(ctx context.Context, list []rulespec.Rule) error
	GetEnabled() (bool, error)
	SetEnabled(ctx context.Context, on bool) error
	GetStatus(ctx context.Context) model.Status
	GetStats() (model.StatsMap, error)
	DomainStat(host string) (model.DomainStat, bool, error)
	ClearStats() error
	RecentEvents(limit int) ([]model.OperationEvent, error)
}

// 消息操作类型
const (
	OpGetRules      = "GET_RULES"
	OpSetRules      = "SET_RULES"
	OpGetEnabled    = "GET_ENABLED"
	OpSetEnabled    = "SET_ENABLED"
	OpGetStatus     = "GET_STATUS"
	OpGetStats      = "GET_STATS"
	OpGetDomainStat = "GET_DOMAIN_STAT"
	OpClearStats    = "CLEAR_STATS"
	OpGetEvents     = "GET_EVENTS"
)

// Handler 消息分发器
type Handler struct {
	svc Backend
	log logger.Logger
}

// New 创建消息分发器
func New(svc Backend, log logger.Logger) *Handler {
	return &Handler{svc: svc, log: log}
}

// Handle 处理一条消息并返回响应
func (h *Handler) Handle(ctx context.Context, raw []byte) []byte {
	op := gjson.GetBytes(raw, "type").String()
	h.log.Debug("收到消息", "type", op)

	switch op {
	case OpGetRules:
		list, err := h.svc.GetRules()
		if err != nil {
			return fail(err)
		}
		return ok(list)
	case OpSetRules:
		payload := gjson.GetBytes(raw, "payload.rules")
		if !payload.Exists() {
			return failMsg("missing payload.rules")
		}
		var list []rulespec.Rule
		if err := json.Unmarshal([]byte(payload.Raw), &list); err != nil {
			return failMsg("invalid rules payload: " + err.Error())
		}
		if err := h.svc.SetRules(ctx, list); err != nil {
			return fail(err)
		}
		return ok(nil)
	case OpGetEnabled:
		on, err := h.svc.GetEnabled()
		if err != nil {
			return fail(err)
		}
		return ok(on)
	case OpSetEnabled:
		v := gjson.GetBytes(raw, "payload.enabled")
		if !v.Exists() {
			return failMsg("missing payload.enabled")
		}
		if err := h.svc.SetEnabled(ctx, v.Bool()); err != nil {
			return fail(err)
		}
		return ok(nil)
	case OpGetStatus:
		return ok(h.svc.GetStatus(ctx))
	case OpGetStats:
		m, err := h.svc.GetStats()
		if err != nil {
			return fail(err)
		}
		return ok(m)
	case OpGetDomainStat:
		host := gjson.GetBytes(raw, "payload.domain").String()
		if host == "" {
			return failMsg("missing payload.domain")
		}
		st, found, err := h.svc.DomainStat(host)
		if err != nil {
			return fail(err)
		}
		if !found {
			// 无记录不是错误，返回无 data 的成功响应
			return ok(nil)
		}
		return ok(st)
	case OpClearStats:
		if err := h.svc.ClearStats(); err != nil {
			return fail(err)
		}
		return ok(nil)
	case OpGetEvents:
		limit := int(gjson.GetBytes(raw, "payload.limit").Int())
		list, err := h.svc.RecentEvents(limit)
		if err != nil {
			return fail(err)
		}
		return ok(list)
	default:
		return failMsg("unknown message type: " + op)
	}
}

// ok 构造成功响应，data 为 nil 时省略
func ok(data any) []byte {
	out := []byte(`{"success":true}`)
	if data != nil {
		out, _ = sjson.SetBytes(out, "data", data)
	}
	return out
}

// fail 构造失败响应
func fail(err error) []byte {
	return failMsg(err.Error())
}

func failMsg(msg string) []byte {
	out := []byte(`{"success":false}`)
	out, _ = sjson.SetBytes(out, "error", msg)
	return out
}
