package filter

import (
	"cdpauth/internal/rules"
	"cdpauth/pkg/model"
)

// Match 在指令集中选出作用于该请求的最高优先级指令
// 并列时取 ID 较小者，保证结果确定
func Match(directives []model.Directive, rawURL, resourceKind string) (model.Directive, bool) {
	var best model.Directive
	found := false
	for _, d := range directives {
		if !kindAllowed(d.ResourceKinds, resourceKind) {
			continue
		}
		if !rules.AppliesTo(rawURL, d.URLPattern) {
			continue
		}
		if !found || d.Priority > best.Priority || (d.Priority == best.Priority && d.ID < best.ID) {
			best = d
			found = true
		}
	}
	return best, found
}

// kindAllowed 指令未限定类别时对所有请求生效
func kindAllowed(kinds []string, kind string) bool {
	if len(kinds) == 0 || kind == "" {
		return true
	}
	for _, k := range kinds {
		if k == kind {
			return true
		}
	}
	return false
}
