package rules

import "strings"

// Score 计算模式的特异性分值：10*具体段数 - 通配符数
// 分值越高表示模式越窄地限定到单个主机，用于优先级与并列裁决
func Score(pattern string) int {
	host := DomainPattern(pattern)
	specific := 0
	for _, seg := range strings.Split(host, ".") {
		if seg != "*" && seg != "" {
			specific++
		}
	}
	wildcards := strings.Count(host, "*")
	return 10*specific - wildcards
}
