// Package service 注入服务：规则管理、指令下发与统计查询的单一入口
package service

import (
	"context"
	"time"

	"cdpauth/internal/filter"
	"cdpauth/internal/logger"
	"cdpauth/internal/obs"
	"cdpauth/internal/rules"
	"cdpauth/internal/store"
	"cdpauth/internal/tracker"
	"cdpauth/pkg/errx"
	"cdpauth/pkg/model"
	"cdpauth/pkg/rulespec"
)

// Service 进程内唯一的服务对象，持有规则镜像与挂起统计的生命周期
type Service struct {
	engine  filter.Engine
	rules   *store.Rules
	flags   *store.Flags
	stats   *store.Stats
	tracker *tracker.Tracker
	obs     obs.Observer
	log     logger.Logger
}

// New 创建服务实例
func New(engine filter.Engine, rulesStore *store.Rules, flags *store.Flags, stats *store.Stats, trk *tracker.Tracker, observer obs.Observer, l logger.Logger) *Service {
	if l == nil {
		l = logger.NewNop()
	}
	if observer == nil {
		observer = obs.NopObserver{}
	}
	return &Service{
		engine:  engine,
		rules:   rulesStore,
		flags:   flags,
		stats:   stats,
		tracker: trk,
		obs:     observer,
		log:     l,
	}
}

// Init 启动时填充规则镜像
func (s *Service) Init() error {
	if err := s.rules.Load(); err != nil {
		return s.fail("init", err)
	}
	return nil
}

// Close 退出前冲刷挂起统计
func (s *Service) Close() {
	if s.tracker != nil {
		s.tracker.Flush()
	}
}

// Track 处理一次观察到的请求，供网络观察钩子派发
func (s *Service) Track(rawURL string) {
	if s.tracker != nil {
		s.tracker.Observe(rawURL)
	}
}

// fail 发出可观测性事件并返回错误；所有失败路径在返回前经过这里
func (s *Service) fail(op string, err error) error {
	s.log.Err(err, "操作失败", "op", op)
	s.obs.OperationFailed(model.OperationEvent{
		Op:        op,
		Message:   err.Error(),
		Timestamp: time.Now().UnixMilli(),
	})
	return err
}

// Enable 编译启用规则并原子替换过滤引擎中的指令集
// 零条启用规则是合法的，安装空集；任何失败都不提交部分状态
func (s *Service) Enable(ctx context.Context) error {
	list, err := s.rules.List()
	if err != nil {
		return s.fail("enable", err)
	}
	directives, err := rules.Compile(list)
	if err != nil {
		return s.fail("enable", err)
	}
	current, err := s.engine.List(ctx)
	if err != nil {
		return s.fail("enable", errx.Wrap(errx.CodeFilterEngine, err, "list directives"))
	}
	if err := s.engine.Replace(ctx, directiveIDs(current), directives); err != nil {
		return s.fail("enable", errx.Wrap(errx.CodeFilterEngine, err, "replace directives"))
	}
	s.log.Info("注入已启用", "directives", len(directives))
	return nil
}

// Disable 移除当前安装的全部指令；指令集为空时照常调用，属无操作
func (s *Service) Disable(ctx context.Context) error {
	current, err := s.engine.List(ctx)
	if err != nil {
		return s.fail("disable", errx.Wrap(errx.CodeFilterEngine, err, "list directives"))
	}
	if err := s.engine.Replace(ctx, directiveIDs(current), nil); err != nil {
		return s.fail("disable", errx.Wrap(errx.CodeFilterEngine, err, "remove directives"))
	}
	s.log.Info("注入已停用", "removed", len(current))
	return nil
}

// UpdateRules 先禁用后启用，顺序执行
// 保证旧指令不会残留到更新之后，代价是短暂的零指令窗口
func (s *Service) UpdateRules(ctx context.Context) error {
	if err := s.Disable(ctx); err != nil {
		return err
	}
	return s.Enable(ctx)
}

// GetRules 读取规则全集
func (s *Service) GetRules() ([]rulespec.Rule, error) {
	list, err := s.rules.List()
	if err != nil {
		return nil, s.fail("get_rules", err)
	}
	return list, nil
}

// SetRules 整表替换规则集合
// 逐条校验并预检启用数容量，任何一条非法都拒绝整个写入；
// 注入开启时随后重算指令集
func (s *Service) SetRules(ctx context.Context, list []rulespec.Rule) error {
	enabledCount := 0
	for i := range list {
		if err := rulespec.Validate(list[i]); err != nil {
			return s.fail("set_rules", err)
		}
		if list[i].Enabled {
			enabledCount++
		}
	}
	if enabledCount > rules.MaxDirectives {
		return s.fail("set_rules", errx.TooManyRules(enabledCount, rules.MaxDirectives))
	}
	if err := s.rules.Replace(list); err != nil {
		return s.fail("set_rules", err)
	}
	on, err := s.flags.Enabled()
	if err != nil {
		return s.fail("set_rules", err)
	}
	if on {
		return s.UpdateRules(ctx)
	}
	return nil
}

// AddRule 追加一条规则
func (s *Service) AddRule(ctx context.Context, pattern, token string, scheme rulespec.Scheme, label string) (rulespec.Rule, error) {
	r := rulespec.NewRule(pattern, token, scheme, label)
	if err := rulespec.Validate(r); err != nil {
		return rulespec.Rule{}, s.fail("add_rule", err)
	}
	list, err := s.rules.List()
	if err != nil {
		return rulespec.Rule{}, s.fail("add_rule", err)
	}
	if err := s.SetRules(ctx, append(list, r)); err != nil {
		return rulespec.Rule{}, err
	}
	return r, nil
}

// ToggleRule 翻转规则的启用状态并刷新修改时间
func (s *Service) ToggleRule(ctx context.Context, id string) error {
	list, err := s.rules.List()
	if err != nil {
		return s.fail("toggle_rule", err)
	}
	found := false
	for i := range list {
		if list[i].ID == id {
			list[i].Enabled = !list[i].Enabled
			list[i].Touch()
			found = true
			break
		}
	}
	if !found {
		return s.fail("toggle_rule", errx.New(errx.CodeValidation, "规则不存在: "+id))
	}
	return s.SetRules(ctx, list)
}

// RemoveRule 从集合中删除规则
func (s *Service) RemoveRule(ctx context.Context, id string) error {
	list, err := s.rules.List()
	if err != nil {
		return s.fail("remove_rule", err)
	}
	next := list[:0]
	found := false
	for _, r := range list {
		if r.ID == id {
			found = true
			continue
		}
		next = append(next, r)
	}
	if !found {
		return s.fail("remove_rule", errx.New(errx.CodeValidation, "规则不存在: "+id))
	}
	return s.SetRules(ctx, next)
}

// GetEnabled 读取持久化的注入开关
func (s *Service) GetEnabled() (bool, error) {
	on, err := s.flags.Enabled()
	if err != nil {
		return false, s.fail("get_enabled", err)
	}
	return on, nil
}

// SetEnabled 同步切换持久开关与引擎状态
// 启用失败（如容量超限）时不写开关，引擎保持原状，界面如实反映失败
func (s *Service) SetEnabled(ctx context.Context, on bool) error {
	if on {
		if err := s.Enable(ctx); err != nil {
			return err
		}
	} else {
		if err := s.Disable(ctx); err != nil {
			return err
		}
	}
	if err := s.flags.SetEnabled(on); err != nil {
		return s.fail("set_enabled", err)
	}
	return nil
}

// GetStatus 返回开关状态与生效指令数
// 指令数查询失败时按 0 处理而不报错，仅用于信息展示
func (s *Service) GetStatus(ctx context.Context) model.Status {
	on, err := s.flags.Enabled()
	if err != nil {
		on = false
	}
	count := 0
	if current, err := s.engine.List(ctx); err == nil {
		count = len(current)
	}
	return model.Status{Enabled: on, RuleCount: count}
}

// History 失败事件历史查询，由带持久化的观察器实现
type History interface {
	Recent(limit int) ([]model.OperationEvent, error)
}

// DomainStat 按域名查询单条统计；域名无记录返回 found=false 而非错误
func (s *Service) DomainStat(host string) (model.DomainStat, bool, error) {
	st, found, err := s.stats.Domain(host)
	if err != nil {
		return model.DomainStat{}, false, s.fail("domain_stat", err)
	}
	return st, found, nil
}

// RecentEvents 查询最近的失败事件；观察器不带历史时返回空列表
func (s *Service) RecentEvents(limit int) ([]model.OperationEvent, error) {
	h, ok := s.obs.(History)
	if !ok {
		return []model.OperationEvent{}, nil
	}
	list, err := h.Recent(limit)
	if err != nil {
		return nil, s.fail("recent_events", err)
	}
	return list, nil
}

// GetStats 读取统计全集
func (s *Service) GetStats() (model.StatsMap, error) {
	m, err := s.stats.Get()
	if err != nil {
		return nil, s.fail("get_stats", err)
	}
	return m, nil
}

// ClearStats 清空统计历史，同时丢弃挂起统计避免旧数据复活
func (s *Service) ClearStats() error {
	if s.tracker != nil {
		s.tracker.Reset()
	}
	if err := s.stats.Clear(); err != nil {
		return s.fail("clear_stats", err)
	}
	return nil
}

// directiveIDs 提取指令 ID 列表
func directiveIDs(list []model.Directive) []int {
	out := make([]int, 0, len(list))
	for _, d := range list {
		out = append(out, d.ID)
	}
	return out
}
