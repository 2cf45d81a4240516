package app

import (
	"strings"
	"testing"
)

func TestMarkdownToHTML(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{"bold", "**yes** or no", "<strong>yes</strong> or no"},
		{"inline code", "run `df -h` now", "run <code>df -h</code> now"},
		{"newline", "a\nb", "a<br/>b"},
		{"unmatched bold left alone", "2 ** 8", "2 ** 8"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := markdownToHTML(tc.in); got != tc.want {
				t.Errorf("markdownToHTML(%q) = %q, want %q", tc.in, got, tc.want)
			}
		})
	}
}

func TestMarkdownToHTMLCodeBlock(t *testing.T) {
	in := "output:\n```\nsize < 10\n```"
	got := markdownToHTML(in)
	if !strings.Contains(got, "<pre><code>") || !strings.Contains(got, "</code></pre>") {
		t.Fatalf("fenced block not converted: %q", got)
	}
	if !strings.Contains(got, "size &lt; 10") {
		t.Fatalf("code block content not escaped: %q", got)
	}
}
