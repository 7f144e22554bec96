package rules

import (
	"sort"

	"cdpauth/pkg/errx"
	"cdpauth/pkg/model"
	"cdpauth/pkg/rulespec"
)

const (
	// MaxDirectives 过滤引擎可同时安装的指令硬上限
	MaxDirectives = 300

	// PriorityBase 优先级偏移，保证任何现实模式下优先级为正
	// Score 的下界是 -通配符数，实际模式的通配符数远小于 1000；
	// 超出预期的极端输入由 Compile 再钳制到 1
	PriorityBase = 1000

	// HeaderName 注入的头部名称
	HeaderName = "Authorization"
)

// DefaultResourceKinds 指令作用的请求类别（程序化 API 调用）
var DefaultResourceKinds = []string{"xhr", "fetch"}

// Compile 将启用规则编译为有序、去重、有界的声明式指令集
// 指令按特异性降序排列，ID 为 1..N 连续编号；启用规则数超过上限时整体拒绝
func Compile(list []rulespec.Rule) ([]model.Directive, error) {
	enabled := make([]rulespec.Rule, 0, len(list))
	for _, r := range list {
		if r.Enabled {
			enabled = append(enabled, r)
		}
	}
	if len(enabled) > MaxDirectives {
		return nil, errx.TooManyRules(len(enabled), MaxDirectives)
	}

	// 稳定排序：同分保持原列表顺序
	sort.SliceStable(enabled, func(i, j int) bool {
		return Score(enabled[i].Pattern) > Score(enabled[j].Pattern)
	})

	out := make([]model.Directive, 0, len(enabled))
	for i, r := range enabled {
		prio := PriorityBase + Score(r.Pattern)
		if prio < 1 {
			prio = 1
		}
		out = append(out, model.Directive{
			ID:            i + 1,
			Priority:      prio,
			HeaderName:    HeaderName,
			HeaderValue:   rulespec.HeaderValue(r.EffectiveScheme(), r.Token),
			URLPattern:    r.Pattern,
			ResourceKinds: append([]string(nil), DefaultResourceKinds...),
		})
	}
	return out, nil
}
