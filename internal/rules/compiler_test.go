package rules

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"cdpauth/pkg/errx"
	"cdpauth/pkg/rulespec"
)

func mkRule(pattern string, enabled bool) rulespec.Rule {
	return rulespec.Rule{
		ID:      "rule-" + pattern,
		Pattern: pattern,
		Token:   "tok",
		Enabled: enabled,
	}
}

func TestCompileOrderingAndPriority(t *testing.T) {
	list := []rulespec.Rule{
		mkRule("*.com", true),
		mkRule("*.example.com", true),
		mkRule("api.example.com", true),
	}
	out, err := Compile(list)
	if err != nil {
		t.Fatalf("Compile failed: %v", err)
	}
	if len(out) != 3 {
		t.Fatalf("expected 3 directives, got %d", len(out))
	}

	// 特异性最高的模式排最前且优先级最高
	if out[0].URLPattern != "api.example.com" {
		t.Fatalf("expected api.example.com first, got %s", out[0].URLPattern)
	}
	if out[1].URLPattern != "*.example.com" || out[2].URLPattern != "*.com" {
		t.Fatalf("unexpected order: %s, %s", out[1].URLPattern, out[2].URLPattern)
	}
	if !(out[0].Priority > out[1].Priority && out[1].Priority > out[2].Priority) {
		t.Fatalf("priorities not descending: %d %d %d", out[0].Priority, out[1].Priority, out[2].Priority)
	}

	// 指令 ID 恰为连续的 1..N
	for i, d := range out {
		if d.ID != i+1 {
			t.Fatalf("directive %d has id %d, want %d", i, d.ID, i+1)
		}
	}
}

func TestCompileCapacity(t *testing.T) {
	over := make([]rulespec.Rule, 0, MaxDirectives+1)
	for i := 0; i <= MaxDirectives; i++ {
		over = append(over, mkRule(fmt.Sprintf("host%d.example.com", i), true))
	}
	_, err := Compile(over)
	if err == nil {
		t.Fatal("compiling 301 enabled rules must fail")
	}
	var capErr *errx.CapacityError
	if !errors.As(err, &capErr) {
		t.Fatalf("expected CapacityError, got %T", err)
	}
	if capErr.Count != MaxDirectives+1 || capErr.Limit != MaxDirectives {
		t.Fatalf("capacity error reports %d/%d, want %d/%d", capErr.Count, capErr.Limit, MaxDirectives+1, MaxDirectives)
	}
	if !strings.Contains(err.Error(), "301/300") {
		t.Fatalf("error must render count/limit, got %q", err.Error())
	}

	// 恰好 300 条成功
	out, err := Compile(over[:MaxDirectives])
	if err != nil {
		t.Fatalf("compiling exactly %d rules must succeed: %v", MaxDirectives, err)
	}
	if len(out) != MaxDirectives {
		t.Fatalf("expected %d directives, got %d", MaxDirectives, len(out))
	}
}

func TestCompileExcludesDisabled(t *testing.T) {
	list := []rulespec.Rule{
		mkRule("api.example.com", false),
		mkRule("*.example.com", true),
	}
	out, err := Compile(list)
	if err != nil {
		t.Fatalf("Compile failed: %v", err)
	}
	if len(out) != 1 || out[0].URLPattern != "*.example.com" {
		t.Fatalf("disabled rule leaked into output: %+v", out)
	}
}

func TestCompileEmpty(t *testing.T) {
	out, err := Compile(nil)
	if err != nil {
		t.Fatalf("compiling zero rules must succeed: %v", err)
	}
	if len(out) != 0 {
		t.Fatalf("expected empty directive set, got %d", len(out))
	}
}

func TestCompileHeaderValues(t *testing.T) {
	cases := []struct {
		scheme rulespec.Scheme
		want   string
	}{
		{rulespec.SchemeBearer, "Bearer abc"},
		{rulespec.SchemeRaw, "abc"},
		{rulespec.SchemeBasic, "Basic abc"},
		{"", "Bearer abc"},        // 缺省回退 bearer
		{"unknown", "Bearer abc"}, // 未知值同样回退
	}
	for _, c := range cases {
		r := mkRule("example.com", true)
		r.Token = "abc"
		r.Scheme = c.scheme
		out, err := Compile([]rulespec.Rule{r})
		if err != nil {
			t.Fatalf("Compile failed: %v", err)
		}
		if out[0].HeaderValue != c.want {
			t.Errorf("scheme %q: header value %q, want %q", c.scheme, out[0].HeaderValue, c.want)
		}
		if out[0].HeaderName != HeaderName {
			t.Errorf("header name %q, want %q", out[0].HeaderName, HeaderName)
		}
	}
}

func TestCompileStableTies(t *testing.T) {
	// 同分规则保持输入顺序
	list := []rulespec.Rule{
		mkRule("aaa.com", true),
		mkRule("bbb.com", true),
		mkRule("ccc.com", true),
	}
	out, err := Compile(list)
	if err != nil {
		t.Fatalf("Compile failed: %v", err)
	}
	want := []string{"aaa.com", "bbb.com", "ccc.com"}
	for i, d := range out {
		if d.URLPattern != want[i] {
			t.Fatalf("tie order broken at %d: got %s", i, d.URLPattern)
		}
	}
}
