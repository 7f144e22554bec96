package obs

import "strings"

// MaskValue 对令牌等敏感值进行掩码处理
func MaskValue(v string) string {
	if len(v) <= 8 {
		return "***"
	}
	return v[:4] + "***" + v[len(v)-4:]
}

// sensitiveHeader 判断头部是否携带凭据
func sensitiveHeader(lk string) bool {
	return lk == "authorization" || lk == "proxy-authorization" ||
		lk == "cookie" || strings.HasPrefix(lk, "x-api-key")
}

// MaskHeaders 对凭据类头部进行掩码并返回新映射，入参不被修改
func MaskHeaders(h map[string]string) map[string]string {
	if h == nil {
		return nil
	}
	out := make(map[string]string, len(h))
	for k, v := range h {
		if sensitiveHeader(strings.ToLower(k)) {
			out[k] = MaskValue(v)
		} else {
			out[k] = v
		}
	}
	return out
}
