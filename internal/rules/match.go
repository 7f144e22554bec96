package rules

import (
	"net/url"
	"regexp"
	"strings"
)

// DomainPattern 提取规则模式中的主机表达式
// 去掉协议前缀（http:// https:// *://）与路径后缀；不含 :// 时视为裸主机表达式
func DomainPattern(pattern string) string {
	p := pattern
	if i := strings.Index(p, "://"); i >= 0 {
		p = p[i+3:]
	}
	if i := strings.IndexByte(p, '/'); i >= 0 {
		p = p[:i]
	}
	return p
}

// Hostname 提取请求 URL 的主机名，无法解析时返回 false
func Hostname(rawURL string) (string, bool) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", false
	}
	h := u.Hostname()
	if h == "" {
		return "", false
	}
	return strings.ToLower(h), true
}

// MatchesHostname 判断主机名是否匹配主机表达式
// 整串锚定、大小写不敏感；通配子域模式（*.example.com）不匹配裸父域；
// 无法编译的模式按不匹配处理而不报错
func MatchesHostname(hostname, domainPattern string) bool {
	re, err := hostMatchers.Get(domainPattern)
	if err != nil {
		return false
	}
	return re.MatchString(hostname)
}

// AppliesTo 宽松匹配：把规则模式当作可通配的子串在完整 URL 上搜索
// 仅供界面提示"规则是否可能作用于当前页面"，权威归因使用 MatchesHostname
func AppliesTo(rawURL, pattern string) bool {
	re, err := urlMatchers.Get(pattern)
	if err != nil {
		return false
	}
	return re.MatchString(rawURL)
}

// compileHostPattern 将主机表达式编译为锚定整串的匹配器
func compileHostPattern(p string) (*regexp.Regexp, error) {
	return regexp.Compile("(?i)^" + wildcardToRegex(p) + "$")
}

// compileURLPattern 将模式编译为非锚定的子串匹配器
func compileURLPattern(p string) (*regexp.Regexp, error) {
	return regexp.Compile("(?i)" + wildcardToRegex(p))
}

// wildcardToRegex 转义 * 以外的所有正则元字符，* 替换为任意字符序列
func wildcardToRegex(p string) string {
	parts := strings.Split(p, "*")
	for i := range parts {
		parts[i] = regexp.QuoteMeta(parts[i])
	}
	return strings.Join(parts, ".*")
}
