package content

import (
	"errors"
	"strings"
	"testing"
)

func TestSanitize(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"Plain text", "Hello World", "Hello World"},
		{"HTML tags", "Hello <b>World</b>", "Hello <b>World</b>"},
		{"Script tag", "<script>alert('xss')</script>Hello", "Hello"},
		{"Complex HTML", "<a href='javascript:alert(1)'>Click me</a>", "Click me"},
		{"Emoji", "I am 🤖", "I am 🤖"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Sanitize(tt.input); got != tt.expected {
				t.Errorf("Sanitize() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestEscape(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"Plain text", "Hello World", "Hello World"},
		{"HTML chars", "<div>Hello</div>", "&lt;div&gt;Hello&lt;/div&gt;"},
		{"Quotes", `"Hello" 'World'`, "&#34;Hello&#34; &#39;World&#39;"},
		{"Emoji", "I am 🤖", "I am 🤖"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Escape(tt.input); got != tt.expected {
				t.Errorf("Escape() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestRender(t *testing.T) {
	tests := []struct {
		name        string
		input       string
		contains    string
		notContains string
	}{
		{"Bold", "**hi**", "<strong>hi</strong>", ""},
		{"Paragraph", "hello", "<p>hello</p>", ""},
		{"Raw script dropped", "<script>alert(1)</script>", "", "<script>"},
		{"Unsafe link dropped", "[x](javascript:alert(1))", "x", "javascript:"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Render(tt.input)
			if tt.contains != "" && !strings.Contains(got, tt.contains) {
				t.Errorf("Render() = %q, want it to contain %q", got, tt.contains)
			}
			if tt.notContains != "" && strings.Contains(got, tt.notContains) {
				t.Errorf("Render() = %q, must not contain %q", got, tt.notContains)
			}
		})
	}
}

func TestNormalizeNickname(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
		wantErr  bool
	}{
		{"Plain", "alice", "alice", false},
		{"Trimmed", "  alice  ", "alice", false},
		{"Japanese", "たろう", "たろう", false},
		{"Empty", "   ", "", true},
		{"Control char", "al\x00ice", "", true},
		{"Too long", strings.Repeat("a", MaxNicknameLength+1), "", true},
		{"Max length runes", strings.Repeat("あ", MaxNicknameLength), strings.Repeat("あ", MaxNicknameLength), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NormalizeNickname(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("NormalizeNickname() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrInvalidNickname) {
				t.Errorf("expected ErrInvalidNickname, got %v", err)
			}
			if got != tt.expected {
				t.Errorf("NormalizeNickname() = %q, want %q", got, tt.expected)
			}
		})
	}
}
