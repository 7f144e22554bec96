package cdp

import (
	"testing"

	"cdpauth/internal/rules"
)

func TestObservedKind(t *testing.T) {
	// 只有程序化 API 调用进入观察范围
	for _, k := range rules.DefaultResourceKinds {
		if !observedKind(k) {
			t.Errorf("kind %q must be observed", k)
		}
	}
	for _, k := range []string{"document", "image", "script", "stylesheet", "font", ""} {
		if observedKind(k) {
			t.Errorf("kind %q must not be observed", k)
		}
	}
}

func TestInjectHeaderReplace(t *testing.T) {
	merged, ok := injectHeader([]byte(`{"Accept":"*/*","authorization":"Bearer old"}`), "Authorization", "Bearer new")
	if !ok {
		t.Fatal("valid headers must parse")
	}
	// 大小写不敏感替换，保留原键名，其余头部不动
	if merged["authorization"] != "Bearer new" {
		t.Fatalf("header not replaced: %v", merged)
	}
	if merged["Accept"] != "*/*" || len(merged) != 2 {
		t.Fatalf("other headers disturbed: %v", merged)
	}
}

func TestInjectHeaderAppend(t *testing.T) {
	merged, ok := injectHeader([]byte(`{"Accept":"*/*"}`), "Authorization", "Bearer tok")
	if !ok || merged["Authorization"] != "Bearer tok" || len(merged) != 2 {
		t.Fatalf("header not appended: %v", merged)
	}

	// 空头部也要注入
	merged, ok = injectHeader(nil, "Authorization", "Bearer tok")
	if !ok || merged["Authorization"] != "Bearer tok" || len(merged) != 1 {
		t.Fatalf("inject into empty headers: %v", merged)
	}
}

func TestInjectHeaderParseFailure(t *testing.T) {
	// 解析失败必须如实上报，调用方据此原样放行而不是只带注入头
	if _, ok := injectHeader([]byte(`not json`), "Authorization", "x"); ok {
		t.Fatal("malformed headers must report ok=false")
	}
}
