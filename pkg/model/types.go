package model

// Directive 下发给过滤引擎的声明式指令
// 每次编译整组重建，ID 为编译输出中的位置（1 起始、连续无空洞），与规则 ID 无关
type Directive struct {
	ID            int      `json:"id"`
	Priority      int      `json:"priority"`
	HeaderName    string   `json:"headerName"`
	HeaderValue   string   `json:"headerValue"`
	URLPattern    string   `json:"urlPattern"`
	ResourceKinds []string `json:"resourceKinds"`
}

// DomainStat 单个域名的请求统计
type DomainStat struct {
	Count    int64    `json:"count"`
	LastSeen int64    `json:"lastSeen"`
	RuleIDs  []string `json:"ruleIds"`
}

// StatsMap 域名到统计的映射
type StatsMap map[string]DomainStat

// Status 注入器当前状态
type Status struct {
	Enabled   bool `json:"enabled"`
	RuleCount int  `json:"ruleCount"`
}

// OperationEvent 操作可观测性事件，失败路径在返回错误前发出
type OperationEvent struct {
	Op        string `json:"op"`
	Message   string `json:"message"`
	Timestamp int64  `json:"timestamp"`
}
