package security

import "testing"

func TestSanitize(t *testing.T) {
	s := NewMessageSanitizer()

	cases := []struct {
		name  string
		input string
		want  string
	}{
		{"plain text passes through", "hello world", "hello world"},
		{"script tag is removed", "hi <script>alert('x')</script>", "hi"},
		{"allowed tags survive", "<strong>bold</strong> and <em>italic</em> and <code>x</code>", "<strong>bold</strong> and <em>italic</em> and <code>x</code>"},
		{"iframe is removed", `<iframe src="https://evil.example"></iframe>ok`, "ok"},
		{"event handler attribute is removed", `<strong onclick="alert('x')">b</strong>`, "<strong>b</strong>"},
		{"img tag is removed", `<img src=x onerror=alert(1)>hello`, "hello"},
		{"surrounding whitespace is trimmed", "  hello  ", "hello"},
		{"script only becomes empty", "<script>alert('x')</script>", ""},
		{"whitespace only becomes empty", " \t\n ", ""},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := s.Sanitize(tc.input); got != tc.want {
				t.Errorf("Sanitize(%q) = %q, want %q", tc.input, got, tc.want)
			}
		})
	}
}

// サニタイズ済みの文字列を再度サニタイズしても変化しない
func TestSanitize_Idempotent(t *testing.T) {
	s := NewMessageSanitizer()

	inputs := []string{
		"hello world",
		"hi <script>alert('x')</script><strong>there</strong>",
		`<strong onclick="x">b</strong> and <em>i</em>`,
	}
	for _, input := range inputs {
		once := s.Sanitize(input)
		twice := s.Sanitize(once)
		if once != twice {
			t.Errorf("Sanitize is not idempotent for %q: %q then %q", input, once, twice)
		}
	}
}
