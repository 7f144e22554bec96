// Package cdp 通过 DevTools 协议实现过滤引擎与网络观察钩子
package cdp

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"

	"cdpauth/internal/filter"
	"cdpauth/internal/logger"
	"cdpauth/internal/obs"
	"cdpauth/internal/rules"
	"cdpauth/pkg/errx"
	"cdpauth/pkg/model"

	"github.com/mafredri/cdp"
	"github.com/mafredri/cdp/devtool"
	"github.com/mafredri/cdp/protocol/fetch"
	"github.com/mafredri/cdp/rpcc"
)

// Observer 网络观察回调，每个出站请求同步派发一次
type Observer func(rawURL, resourceKind string)

// Manager 基于 CDP Fetch 域的过滤引擎实现
// 指令整组替换后由 handle 在请求暂停点执行：最高优先级命中指令的头部值被写入请求
type Manager struct {
	devtoolsURL string
	conn        *rpcc.Conn
	client      *cdp.Client
	ctx         context.Context
	cancel      context.CancelFunc
	log         logger.Logger
	pool        *workerPool

	mu        sync.RWMutex
	installed map[int]model.Directive
	observer  Observer
}

// New 创建管理器
func New(devtoolsURL string, concurrency int, log logger.Logger) *Manager {
	return &Manager{
		devtoolsURL: devtoolsURL,
		log:         log,
		pool:        newWorkerPool(concurrency, log),
		installed:   make(map[int]model.Directive),
	}
}

// SetObserver 注册网络观察回调，请求观察与指令执行互不阻塞
func (m *Manager) SetObserver(fn Observer) {
	m.mu.Lock()
	m.observer = fn
	m.mu.Unlock()
}

// AttachTarget 附着到浏览器目标，target 为空时取首个目标
func (m *Manager) AttachTarget(target string) error {
	ctx, cancel := context.WithCancel(context.Background())
	m.ctx = ctx
	m.cancel = cancel
	dt := devtool.New(m.devtoolsURL)
	targets, err := dt.List(ctx)
	if err != nil {
		return errx.Wrap(errx.CodeNotAttached, err, "list targets")
	}
	var sel *devtool.Target
	for i := range targets {
		if string(targets[i].ID) == target || target == "" {
			sel = targets[i]
			if target == "" {
				break
			}
		}
	}
	if sel == nil {
		return errx.New(errx.CodeNotAttached, "no target")
	}
	conn, err := rpcc.DialContext(ctx, sel.WebSocketDebuggerURL)
	if err != nil {
		return errx.Wrap(errx.CodeNotAttached, err, "dial devtools")
	}
	m.conn = conn
	m.client = cdp.NewClient(conn)
	return nil
}

// Detach 断开目标连接
func (m *Manager) Detach() error {
	if m.cancel != nil {
		m.cancel()
	}
	m.pool.stop()
	if m.conn != nil {
		return m.conn.Close()
	}
	return nil
}

// Start 启用请求暂停并开始消费事件流
func (m *Manager) Start() error {
	if m.client == nil {
		return errx.New(errx.CodeNotAttached, "not attached")
	}
	if err := m.client.Network.Enable(m.ctx, nil); err != nil {
		return errx.Wrap(errx.CodeFilterEngine, err, "network enable")
	}
	p := "*"
	patterns := []fetch.RequestPattern{
		{URLPattern: &p, RequestStage: fetch.RequestStageRequest},
	}
	if err := m.client.Fetch.Enable(m.ctx, &fetch.EnableArgs{Patterns: patterns}); err != nil {
		return errx.Wrap(errx.CodeFilterEngine, err, "fetch enable")
	}
	m.pool.start(m.ctx)
	go m.consume()
	return nil
}

// Stop 停用请求暂停
func (m *Manager) Stop() error {
	if m.client == nil {
		return errx.New(errx.CodeNotAttached, "not attached")
	}
	return m.client.Fetch.Disable(m.ctx)
}

// List 查询当前安装的指令，实现 filter.Engine
func (m *Manager) List(ctx context.Context) ([]model.Directive, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]model.Directive, 0, len(m.installed))
	for _, d := range m.installed {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// Replace 原子替换安装的指令集，实现 filter.Engine
func (m *Manager) Replace(ctx context.Context, removeIDs []int, add []model.Directive) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	next := make(map[int]model.Directive, len(m.installed))
	for id, d := range m.installed {
		next[id] = d
	}
	for _, id := range removeIDs {
		delete(next, id)
	}
	for _, d := range add {
		next[d.ID] = d
	}
	if len(next) > rules.MaxDirectives {
		return errx.New(errx.CodeFilterEngine,
			fmt.Sprintf("directive count %d exceeds cap %d", len(next), rules.MaxDirectives))
	}
	m.installed = next
	m.log.Debug("指令集已替换", "removed", len(removeIDs), "added", len(add), "installed", len(next))
	return nil
}

// consume 消费请求暂停事件流，经工作池限流后处理
func (m *Manager) consume() {
	rp, err := m.client.Fetch.RequestPaused(m.ctx)
	if err != nil {
		m.log.Err(err, "订阅请求暂停事件失败")
		return
	}
	defer rp.Close()
	for {
		ev, err := rp.Recv()
		if err != nil {
			return
		}
		e := ev
		m.pool.submit(func() { m.handle(e) })
	}
}

// handle 处理单个暂停的请求：派发观察回调，按指令注入头部后放行
// 处理失败只能放行请求，绝不让请求滞留
func (m *Manager) handle(ev *fetch.RequestPausedReply) {
	kind := strings.ToLower(string(ev.ResourceType))

	m.mu.RLock()
	observer := m.observer
	directives := make([]model.Directive, 0, len(m.installed))
	for _, d := range m.installed {
		directives = append(directives, d)
	}
	m.mu.RUnlock()

	if observer != nil && observedKind(kind) {
		observer(ev.Request.URL, kind)
	}

	d, hit := filter.Match(directives, ev.Request.URL, kind)
	if !hit {
		m.continueRequest(ev, nil)
		return
	}

	merged, ok := injectHeader(ev.Request.Headers, d.HeaderName, d.HeaderValue)
	if !ok {
		// 原始头解析失败时原样放行，不能只带注入头覆盖整组请求头
		m.log.Warn("请求头解析失败，原样放行", "url", ev.Request.URL, "directive", d.ID)
		m.continueRequest(ev, nil)
		return
	}
	entries := make([]fetch.HeaderEntry, 0, len(merged))
	for k, v := range merged {
		entries = append(entries, fetch.HeaderEntry{Name: k, Value: v})
	}

	m.continueRequest(ev, entries)
	m.log.Debug("头部已注入",
		"url", ev.Request.URL,
		"directive", d.ID,
		"headers", obs.MaskHeaders(merged))
}

// observedKind 判断请求类别是否在观察订阅范围内（程序化 API 调用）
func observedKind(kind string) bool {
	for _, k := range rules.DefaultResourceKinds {
		if k == kind {
			return true
		}
	}
	return false
}

// injectHeader 在原始请求头中替换或追加目标头部，头名大小写不敏感且保留原键名
// 原始头解析失败返回 ok=false
func injectHeader(raw []byte, name, value string) (map[string]string, bool) {
	headers := map[string]string{}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &headers); err != nil {
			return nil, false
		}
	}
	for k := range headers {
		if strings.EqualFold(k, name) {
			headers[k] = value
			return headers, true
		}
	}
	headers[name] = value
	return headers, true
}

// continueRequest 放行请求，headers 为 nil 时不做修改
func (m *Manager) continueRequest(ev *fetch.RequestPausedReply, headers []fetch.HeaderEntry) {
	args := &fetch.ContinueRequestArgs{RequestID: ev.RequestID}
	if headers != nil {
		args.Headers = headers
	}
	if err := m.client.Fetch.ContinueRequest(m.ctx, args); err != nil {
		m.log.Err(err, "放行请求失败", "url", ev.Request.URL)
	}
}
