package extract

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCleanText(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
		want string
	}{
		{"whitespace", "a \t b\n\nc", "a b c"},
		{"entities", "fish &amp; chips &#169; now", "fish chips now"},
		{"punctuation runs", "wait... what?!!", "wait. what?"},
		{"urls", "see https://example.com/page for more", "see for more"},
		{"emails", "mail me at bob@example.com today", "mail me at today"},
		{"space before punct", "hello , world !", "hello, world!"},
		{"empty", "", ""},
	}
	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tc.want, CleanText(tc.in))
		})
	}
}

func TestRemoveBoilerplate(t *testing.T) {
	t.Parallel()

	in := "Useful intro text here. Read our cookie policy before continuing. The real content follows and keeps going."
	out := RemoveBoilerplate(in, nil)
	assert.NotContains(t, strings.ToLower(out), "cookie policy")
}

func TestValidContent(t *testing.T) {
	t.Parallel()

	long := strings.Repeat("word ", 30)
	assert.True(t, ValidContent(long, 100))
	assert.False(t, ValidContent("short", 100))
	// Long enough in characters but too few words.
	assert.False(t, ValidContent(strings.Repeat("x", 200), 100))
}
