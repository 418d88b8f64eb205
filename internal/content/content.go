package content

import (
	"bytes"
	"errors"
	"html/template"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
)

const MaxNicknameLength = 32

var (
	ErrInvalidNickname = errors.New("invalid nickname")

	policy   = bluemonday.UGCPolicy()
	markdown = goldmark.New()
)

// Sanitize removes unsafe HTML from rendered output. Stored text is kept
// as typed and only sanitized on the way out.
func Sanitize(input string) string {
	return policy.Sanitize(input)
}

// Escape escapes special characters like "<" to become "&lt;".
// It matches the behavior of html/template and is safe for use in HTML attributes.
func Escape(input string) string {
	return template.HTMLEscapeString(input)
}

// Render converts message markdown to sanitized HTML. Raw HTML in the
// source is dropped.
func Render(text string) string {
	var buf bytes.Buffer
	if err := markdown.Convert([]byte(text), &buf); err != nil {
		return "<p>" + Escape(text) + "</p>"
	}
	return Sanitize(buf.String())
}

// NormalizeNickname trims the nickname and checks it is 1 to
// MaxNicknameLength runes without control characters.
func NormalizeNickname(nickname string) (string, error) {
	nickname = strings.TrimSpace(nickname)
	if nickname == "" {
		return "", errors.Join(ErrInvalidNickname, errors.New("nickname cannot be empty"))
	}
	if utf8.RuneCountInString(nickname) > MaxNicknameLength {
		return "", errors.Join(ErrInvalidNickname, errors.New("nickname is too long"))
	}
	for _, r := range nickname {
		if unicode.IsControl(r) {
			return "", errors.Join(ErrInvalidNickname, errors.New("nickname contains control characters"))
		}
	}
	return nickname, nil
}
