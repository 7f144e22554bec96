package obs

import "testing"

func TestMaskValue(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"", "***"},
		{"short", "***"},
		{"12345678", "***"},
		{"123456789", "1234***6789"},
		{"Bearer verylongtoken", "Bear***oken"},
	}
	for _, c := range cases {
		if got := MaskValue(c.in); got != c.want {
			t.Errorf("MaskValue(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestMaskHeaders(t *testing.T) {
	in := map[string]string{
		"Authorization":       "Bearer verylongtoken",
		"Proxy-Authorization": "Basic dXNlcjpwYXNz",
		"Cookie":              "session=abcdefgh1234",
		"X-Api-Key-V2":        "secretsecretsecret",
		"Content-Type":        "application/json",
	}
	out := MaskHeaders(in)
	if out["Authorization"] != "Bear***oken" {
		t.Errorf("authorization not masked: %q", out["Authorization"])
	}
	if out["Proxy-Authorization"] == in["Proxy-Authorization"] {
		t.Error("proxy credentials not masked")
	}
	if out["Cookie"] == in["Cookie"] {
		t.Error("cookie not masked")
	}
	if out["X-Api-Key-V2"] == in["X-Api-Key-V2"] {
		t.Error("api key not masked")
	}
	if out["Content-Type"] != "application/json" {
		t.Errorf("plain header altered: %q", out["Content-Type"])
	}
	// 入参不被修改
	if in["Authorization"] != "Bearer verylongtoken" {
		t.Error("input map mutated")
	}
	if MaskHeaders(nil) != nil {
		t.Error("nil input must stay nil")
	}
}
