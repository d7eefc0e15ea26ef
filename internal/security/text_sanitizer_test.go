package security

import "testing"

func TestTextSanitizer_Sanitize(t *testing.T) {
	sanitizer := NewTextSanitizer()

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"プレーンテキストはそのまま", "ROLE_EDITOR", "ROLE_EDITOR"},
		{"前後の空白を除去", "  ROLE_EDITOR \t", "ROLE_EDITOR"},
		{"タグを除去", "<b>ROLE_EDITOR</b>", "ROLE_EDITOR"},
		{"scriptは中身ごと除去", "ROLE_<script>alert(1)</script>X", "ROLE_X"},
		{"イベント属性付きタグを除去", `<img src=x onerror=alert(1)>ROLE_A`, "ROLE_A"},
		{"制御文字を除去", "ROLE_\x00A\x1b", "ROLE_A"},
		{"エスケープされない", "R&D", "R&D"},
		{"空文字列", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := sanitizer.Sanitize(tt.input); got != tt.want {
				t.Errorf("Sanitize(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

// TestTextSanitizer_Idempotent は同一入力に対して同一出力を返すことを検証する。
func TestTextSanitizer_Idempotent(t *testing.T) {
	sanitizer := NewTextSanitizer()
	inputs := []string{"<p>ROLE_A</p>", "ROLE_B", "a < b"}

	for _, in := range inputs {
		once := sanitizer.Sanitize(in)
		if twice := sanitizer.Sanitize(once); once != twice {
			t.Errorf("Sanitize not idempotent for %q: %q then %q", in, once, twice)
		}
	}
}
