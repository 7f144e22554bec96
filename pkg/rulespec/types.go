// Package rulespec 定义授权头注入规则的类型规范
package rulespec

import (
	"strings"
	"time"

	"cdpauth/pkg/errx"

	"github.com/google/uuid"
)

// 模式格式约束
const (
	PatternMinLen = 2
)

// Scheme 授权方案，决定头部值的拼装格式
type Scheme string

const (
	SchemeBearer Scheme = "bearer" // "Bearer " + token
	SchemeRaw    Scheme = "raw"    // token 原样写入
	SchemeBasic  Scheme = "basic"  // "Basic " + token
)

// Rule 用户编写的注入规则
type Rule struct {
	ID        string `json:"id"`               // 规则唯一标识符，创建后不变
	Pattern   string `json:"pattern"`          // 通配符模式，支持可选的协议前缀与路径后缀
	Token     string `json:"token"`            // 注入的密钥值，不做格式校验
	Scheme    Scheme `json:"scheme,omitempty"` // 缺省视为 bearer（兼容早期无此字段的规则）
	Label     string `json:"label,omitempty"`  // 展示名称，对匹配无影响
	Enabled   bool   `json:"enabled"`          // 停用规则不参与编译与统计
	CreatedAt int64  `json:"createdAt"`        // 创建时间（毫秒）
	UpdatedAt int64  `json:"updatedAt"`        // 最近修改时间（毫秒）
}

// GenerateRuleID 生成规则 ID
func GenerateRuleID() string {
	return uuid.New().String()
}

// NewRule 创建一条启用状态的新规则
func NewRule(pattern, token string, scheme Scheme, label string) Rule {
	now := time.Now().UnixMilli()
	return Rule{
		ID:        GenerateRuleID(),
		Pattern:   strings.TrimSpace(pattern),
		Token:     token,
		Scheme:    scheme,
		Label:     label,
		Enabled:   true,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Touch 刷新规则的修改时间
func (r *Rule) Touch() {
	r.UpdatedAt = time.Now().UnixMilli()
}

// EffectiveScheme 返回生效的授权方案，空值或未知值回退为 bearer
func (r Rule) EffectiveScheme() Scheme {
	switch r.Scheme {
	case SchemeRaw, SchemeBasic:
		return r.Scheme
	default:
		return SchemeBearer
	}
}

// HeaderValue 按授权方案拼装头部值
func HeaderValue(s Scheme, token string) string {
	switch s {
	case SchemeRaw:
		return token
	case SchemeBasic:
		return "Basic " + token
	default:
		return "Bearer " + token
	}
}

// Validate 校验规则，非法规则在落库前被拒绝
func Validate(r Rule) error {
	p := strings.TrimSpace(r.Pattern)
	if p == "" {
		return errx.New(errx.CodeValidation, "模式不能为空")
	}
	if len(p) < PatternMinLen {
		return errx.New(errx.CodeValidation, "模式过短")
	}
	if onlyWildcards(p) {
		return errx.New(errx.CodeValidation, "模式不能只包含通配符")
	}
	if strings.TrimSpace(r.Token) == "" {
		return errx.New(errx.CodeValidation, "密钥不能为空")
	}
	return nil
}

// onlyWildcards 判断模式去掉通配符与分隔符后是否为空
func onlyWildcards(p string) bool {
	trimmed := strings.Map(func(c rune) rune {
		switch c {
		case '*', '.', '/', ':':
			return -1
		}
		return c
	}, p)
	return trimmed == ""
}
