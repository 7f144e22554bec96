// Package tracker 观察出站请求并按域名累计统计
package tracker

import (
	"sync"
	"time"

	"cdpauth/internal/logger"
	"cdpauth/internal/rules"
	"cdpauth/pkg/model"
	"cdpauth/pkg/rulespec"
)

// 默认时间窗口
const (
	DefaultDebounce   = time.Second     // 同一 URL 的去抖窗口
	DefaultFlushDelay = 3 * time.Second // 批量落盘延迟
)

// 去抖集合的惰性清理阈值
const seenPruneLimit = 4096

// RuleSource 规则镜像来源，观察路径只走内存，绝不读存储
type RuleSource interface {
	Cached() []rulespec.Rule
}

// StatsSink 统计持久层
type StatsSink interface {
	Get() (model.StatsMap, error)
	Replace(model.StatsMap) error
}

// Tracker 请求追踪器
// Observe 会被工作池并发调用，挂起统计的读-改-写整体在锁内完成；
// 失败只记录日志，绝不影响请求投递
type Tracker struct {
	rules      RuleSource
	stats      StatsSink
	log        logger.Logger
	debounce   time.Duration
	flushDelay time.Duration
	now        func() time.Time

	mu      sync.Mutex
	seen    map[string]time.Time
	pending model.StatsMap
	flushT  *time.Timer
}

// New 创建追踪器；窗口传 0 使用默认值
func New(src RuleSource, sink StatsSink, log logger.Logger, debounce, flushDelay time.Duration) *Tracker {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	if flushDelay <= 0 {
		flushDelay = DefaultFlushDelay
	}
	return &Tracker{
		rules:      src,
		stats:      sink,
		log:        log,
		debounce:   debounce,
		flushDelay: flushDelay,
		now:        time.Now,
		seen:       make(map[string]time.Time),
	}
}

// Observe 处理一次观察到的请求，对请求路径而言是投递即忘
func (t *Tracker) Observe(rawURL string) {
	now := t.now()
	if t.debounced(rawURL, now) {
		return
	}

	host, ok := rules.Hostname(rawURL)
	if !ok {
		// 无法解析的 URL 跳过而非报错
		return
	}

	matched, ok := t.match(host)
	if !ok {
		return
	}

	t.mu.Lock()
	if t.pending == nil {
		// 存储读取不持锁；重新拿锁后复查，避免覆盖并发建立的挂起槽
		t.mu.Unlock()
		loaded, err := t.stats.Get()
		if err != nil {
			t.log.Err(err, "读取统计失败，本次观察丢弃", "host", host)
			return
		}
		t.mu.Lock()
		if t.pending == nil {
			t.pending = loaded
		}
	}
	t.pending = UpdateStats(t.pending, host, matched.ID, now.UnixMilli())
	if t.flushT == nil {
		t.flushT = time.AfterFunc(t.flushDelay, t.Flush)
	}
	t.mu.Unlock()
}

// match 在镜像中找到首个域名匹配的启用规则
func (t *Tracker) match(host string) (rulespec.Rule, bool) {
	for _, r := range t.rules.Cached() {
		if !r.Enabled {
			continue
		}
		if rules.MatchesHostname(host, rules.DomainPattern(r.Pattern)) {
			return r, true
		}
	}
	return rulespec.Rule{}, false
}

// debounced 判断 URL 是否在去抖窗口内重复出现，过期条目惰性清理
func (t *Tracker) debounced(rawURL string, now time.Time) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if ts, ok := t.seen[rawURL]; ok && now.Sub(ts) < t.debounce {
		return true
	}
	if len(t.seen) >= seenPruneLimit {
		for u, ts := range t.seen {
			if now.Sub(ts) >= t.debounce {
				delete(t.seen, u)
			}
		}
	}
	t.seen[rawURL] = now
	return false
}

// Flush 立即将挂起统计整体落盘并清空调度标记
// 定时器到期与进程退出时调用；合并保证每窗口至多一次写
func (t *Tracker) Flush() {
	t.mu.Lock()
	p := t.pending
	t.pending = nil
	if t.flushT != nil {
		t.flushT.Stop()
		t.flushT = nil
	}
	t.mu.Unlock()

	if p == nil {
		return
	}
	if err := t.stats.Replace(p); err != nil {
		// 单次落盘失败只记录，统计属尽力而为
		t.log.Err(err, "统计落盘失败", "domains", len(p))
	}
}

// Reset 丢弃挂起统计，用户清空历史时调用，避免旧数据在下次落盘时复活
func (t *Tracker) Reset() {
	t.mu.Lock()
	t.pending = nil
	if t.flushT != nil {
		t.flushT.Stop()
		t.flushT = nil
	}
	t.mu.Unlock()
}

// UpdateStats 纯函数：返回更新后的新统计映射，不修改入参
// 同域重放时计数累加而规则 ID 去重
func UpdateStats(in model.StatsMap, domain, ruleID string, nowMS int64) model.StatsMap {
	out := make(model.StatsMap, len(in)+1)
	for k, v := range in {
		out[k] = v
	}
	cur := out[domain]
	cur.Count++
	cur.LastSeen = nowMS
	if !containsID(cur.RuleIDs, ruleID) {
		ids := make([]string, 0, len(cur.RuleIDs)+1)
		ids = append(ids, cur.RuleIDs...)
		cur.RuleIDs = append(ids, ruleID)
	}
	out[domain] = cur
	return out
}

func containsID(ids []string, id string) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}
