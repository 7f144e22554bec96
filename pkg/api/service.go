package api

import (
	"context"
	"time"

	"cdpauth/internal/filter"
	"cdpauth/internal/logger"
	"cdpauth/internal/service"
	"cdpauth/internal/storage"
	"cdpauth/internal/store"
	"cdpauth/internal/tracker"
	"cdpauth/pkg/model"
	"cdpauth/pkg/rulespec"
)

// Service 服务接口
type Service interface {
	// Enable 编译启用规则并原子替换指令集
	Enable(ctx context.Context) error

	// Disable 移除全部已安装指令
	Disable(ctx context.Context) error

	// UpdateRules 先禁用后启用，保证无旧指令残留
	UpdateRules(ctx context.Context) error

	// GetRules 读取规则全集
	GetRules() ([]rulespec.Rule, error)

	// SetRules 整表替换规则集合
	SetRules(ctx context.Context, list []rulespec.Rule) error

	// AddRule 追加一条规则
	AddRule(ctx context.Context, pattern, token string, scheme rulespec.Scheme, label string) (rulespec.Rule, error)

	// ToggleRule 翻转规则启用状态
	ToggleRule(ctx context.Context, id string) error

	// RemoveRule 删除规则
	RemoveRule(ctx context.Context, id string) error

	// GetEnabled 读取注入开关
	GetEnabled() (bool, error)

	// SetEnabled 切换注入开关与引擎状态
	SetEnabled(ctx context.Context, on bool) error

	// GetStatus 返回开关状态与生效指令数
	GetStatus(ctx context.Context) model.Status

	// GetStats 读取域名统计
	GetStats() (model.StatsMap, error)

	// DomainStat 按域名查询单条统计
	DomainStat(host string) (model.DomainStat, bool, error)

	// ClearStats 清空统计历史
	ClearStats() error

	// RecentEvents 查询最近的失败事件
	RecentEvents(limit int) ([]model.OperationEvent, error)

	// Track 处理一次观察到的请求
	Track(rawURL string)

	// Close 冲刷挂起统计并停止事件写入
	Close()
}

// Options 装配选项
type Options struct {
	Engine     filter.Engine // 过滤引擎实现（CDP 或进程内）
	DB         *storage.DB
	Logger     logger.Logger
	Debounce   time.Duration // 去抖窗口，0 取默认
	FlushDelay time.Duration // 落盘延迟，0 取默认
}

// New 装配并返回服务接口实现
func New(opts Options) (Service, error) {
	l := opts.Logger
	if l == nil {
		l = logger.NewNop()
	}

	kv := storage.NewKV(opts.DB)
	rulesStore := store.NewRules(kv, l)
	flags := store.NewFlags(kv)
	stats := store.NewStats(kv)
	events := storage.NewEventRepo(opts.DB)

	trk := tracker.New(rulesStore, stats, l, opts.Debounce, opts.FlushDelay)

	svc := service.New(opts.Engine, rulesStore, flags, stats, trk, events, l)
	if err := svc.Init(); err != nil {
		events.Stop()
		return nil, err
	}
	return &apiService{Service: svc, events: events}, nil
}

// apiService 在内部服务之上补充事件仓库的停机
type apiService struct {
	*service.Service
	events *storage.EventRepo
}

// Close 冲刷挂起统计并排空事件缓冲
func (a *apiService) Close() {
	a.Service.Close()
	a.events.Stop()
}
