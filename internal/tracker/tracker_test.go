package tracker

import (
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"cdpauth/internal/logger"
	"cdpauth/pkg/model"
	"cdpauth/pkg/rulespec"
)

type fakeRules struct {
	list []rulespec.Rule
}

func (f *fakeRules) Cached() []rulespec.Rule { return f.list }

type fakeSink struct {
	mu       sync.Mutex
	stored   model.StatsMap
	getErr   error
	replaces int
}

func (f *fakeSink) Get() (model.StatsMap, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return nil, f.getErr
	}
	out := make(model.StatsMap, len(f.stored))
	for k, v := range f.stored {
		out[k] = v
	}
	return out, nil
}

func (f *fakeSink) Replace(m model.StatsMap) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stored = m
	f.replaces++
	return nil
}

func (f *fakeSink) snapshot() (model.StatsMap, int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.stored, f.replaces
}

func enabledRule(id, pattern string) rulespec.Rule {
	return rulespec.Rule{ID: id, Pattern: pattern, Token: "tok", Enabled: true}
}

func newTestTracker(src RuleSource, sink StatsSink) *Tracker {
	return New(src, sink, logger.NewNop(), time.Second, time.Hour)
}

func TestUpdateStatsMerge(t *testing.T) {
	base := model.StatsMap{
		"api.example.com": {Count: 3, LastSeen: 100, RuleIDs: []string{"r1"}},
	}
	out := UpdateStats(base, "api.example.com", "r1", 200)
	out = UpdateStats(out, "api.example.com", "r2", 300)

	got := out["api.example.com"]
	if got.Count != 5 {
		t.Fatalf("count = %d, want 5", got.Count)
	}
	if got.LastSeen != 300 {
		t.Fatalf("lastSeen = %d, want 300", got.LastSeen)
	}
	// 规则 ID 去重，r1 只出现一次
	if len(got.RuleIDs) != 2 || got.RuleIDs[0] != "r1" || got.RuleIDs[1] != "r2" {
		t.Fatalf("ruleIds = %v, want [r1 r2]", got.RuleIDs)
	}
}

func TestUpdateStatsDoesNotMutateInput(t *testing.T) {
	base := model.StatsMap{
		"a.com": {Count: 1, LastSeen: 10, RuleIDs: []string{"r1"}},
	}
	_ = UpdateStats(base, "a.com", "r2", 20)
	orig := base["a.com"]
	if orig.Count != 1 || orig.LastSeen != 10 || len(orig.RuleIDs) != 1 {
		t.Fatalf("input map was mutated: %+v", orig)
	}
}

func TestUpdateStatsNewDomain(t *testing.T) {
	out := UpdateStats(nil, "new.example.com", "r9", 42)
	got := out["new.example.com"]
	if got.Count != 1 || got.LastSeen != 42 || len(got.RuleIDs) != 1 || got.RuleIDs[0] != "r9" {
		t.Fatalf("unexpected entry for new domain: %+v", got)
	}
}

func TestObserveDebounce(t *testing.T) {
	src := &fakeRules{list: []rulespec.Rule{enabledRule("r1", "api.example.com")}}
	sink := &fakeSink{}
	tr := newTestTracker(src, sink)

	base := time.Unix(0, 0)
	tr.now = func() time.Time { return base }

	tr.Observe("https://api.example.com/v1")
	tr.Observe("https://api.example.com/v1") // 窗口内重复，跳过
	tr.Flush()

	stored, _ := sink.snapshot()
	if stored["api.example.com"].Count != 1 {
		t.Fatalf("debounced repeat was counted: %+v", stored)
	}

	// 窗口过后同一 URL 重新计数
	tr.now = func() time.Time { return base.Add(2 * time.Second) }
	tr.Observe("https://api.example.com/v1")
	tr.Flush()
	stored, _ = sink.snapshot()
	if stored["api.example.com"].Count != 2 {
		t.Fatalf("post-window repeat not counted: %+v", stored)
	}
}

func TestObserveFirstMatchAttribution(t *testing.T) {
	// 镜像顺序决定归因：命中首个启用规则
	src := &fakeRules{list: []rulespec.Rule{
		{ID: "off", Pattern: "api.example.com", Token: "t", Enabled: false},
		enabledRule("r-specific", "api.example.com"),
		enabledRule("r-wild", "*.example.com"),
	}}
	sink := &fakeSink{}
	tr := newTestTracker(src, sink)
	tr.Observe("https://api.example.com/v1")
	tr.Flush()

	stored, _ := sink.snapshot()
	got := stored["api.example.com"]
	if len(got.RuleIDs) != 1 || got.RuleIDs[0] != "r-specific" {
		t.Fatalf("attribution = %v, want [r-specific]", got.RuleIDs)
	}
}

func TestObserveNoMatchNoPending(t *testing.T) {
	src := &fakeRules{list: []rulespec.Rule{enabledRule("r1", "other.net")}}
	sink := &fakeSink{}
	tr := newTestTracker(src, sink)

	tr.Observe("https://api.example.com/v1")
	tr.Observe("not a url")
	tr.Flush()

	_, replaces := sink.snapshot()
	if replaces != 0 {
		t.Fatalf("nothing matched, expected no writes, got %d", replaces)
	}
}

func TestObserveCoalescedFlush(t *testing.T) {
	src := &fakeRules{list: []rulespec.Rule{enabledRule("r1", "*.example.com")}}
	sink := &fakeSink{}
	tr := New(src, sink, logger.NewNop(), time.Second, 20*time.Millisecond)

	tr.Observe("https://a.example.com/1")
	tr.Observe("https://b.example.com/2")
	tr.Observe("https://c.example.com/3")

	// 多次观察合并为一次定时落盘
	deadline := time.Now().Add(2 * time.Second)
	for {
		if _, n := sink.snapshot(); n > 0 || time.Now().After(deadline) {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}
	stored, replaces := sink.snapshot()
	if replaces != 1 {
		t.Fatalf("expected exactly one coalesced write, got %d", replaces)
	}
	if len(stored) != 3 {
		t.Fatalf("expected 3 domains, got %d", len(stored))
	}
}

func TestObserveConcurrentNoLostUpdates(t *testing.T) {
	src := &fakeRules{list: []rulespec.Rule{enabledRule("r1", "*.example.com")}}
	sink := &fakeSink{}
	tr := newTestTracker(src, sink)

	// 工作池并发派发观察，任何一次计数都不能被并发写覆盖
	const n = 200
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			tr.Observe(fmt.Sprintf("https://h%d.example.com/api", i))
		}(i)
	}
	wg.Wait()
	tr.Flush()

	stored, _ := sink.snapshot()
	var total int64
	for _, st := range stored {
		total += st.Count
	}
	if total != n {
		t.Fatalf("observed %d requests but recorded %d", n, total)
	}
}

func TestObserveGetErrorDropsObservation(t *testing.T) {
	src := &fakeRules{list: []rulespec.Rule{enabledRule("r1", "api.example.com")}}
	sink := &fakeSink{getErr: errors.New("db closed")}
	tr := newTestTracker(src, sink)

	tr.Observe("https://api.example.com/v1")
	tr.Flush()

	_, replaces := sink.snapshot()
	if replaces != 0 {
		t.Fatalf("failed read must drop the observation, got %d writes", replaces)
	}
}

func TestResetDiscardsPending(t *testing.T) {
	src := &fakeRules{list: []rulespec.Rule{enabledRule("r1", "api.example.com")}}
	sink := &fakeSink{}
	tr := newTestTracker(src, sink)

	tr.Observe("https://api.example.com/v1")
	tr.Reset()
	tr.Flush()

	_, replaces := sink.snapshot()
	if replaces != 0 {
		t.Fatalf("reset must discard pending stats, got %d writes", replaces)
	}
}

func TestFlushIdempotent(t *testing.T) {
	src := &fakeRules{list: []rulespec.Rule{enabledRule("r1", "api.example.com")}}
	sink := &fakeSink{}
	tr := newTestTracker(src, sink)

	tr.Observe("https://api.example.com/v1")
	tr.Flush()
	tr.Flush()

	_, replaces := sink.snapshot()
	if replaces != 1 {
		t.Fatalf("second flush with nothing pending must not write, got %d", replaces)
	}
}
