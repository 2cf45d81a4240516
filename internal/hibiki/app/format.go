package app

import "strings"

// markdownToHTML renders the small Markdown subset the bot produces into
// HTML for a Matrix m.text event with format=org.matrix.custom.html:
// fenced code blocks, inline code, bold, and newlines.
func markdownToHTML(md string) string {
	var out strings.Builder
	inCode := false
	for _, line := range strings.Split(md, "\n") {
		if strings.HasPrefix(line, "```") {
			if inCode {
				out.WriteString("</code></pre>")
			} else {
				out.WriteString("<pre><code>")
			}
			inCode = !inCode
			continue
		}
		if inCode {
			out.WriteString(escapeHTML(line))
		} else {
			out.WriteString(line)
		}
		out.WriteString("\n")
	}
	result := strings.TrimSuffix(out.String(), "\n")

	result = replaceDelimited(result, "`", "<code>", "</code>")
	result = replaceDelimited(result, "**", "<strong>", "</strong>")
	return strings.ReplaceAll(result, "\n", "<br/>")
}

func escapeHTML(s string) string {
	return strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;").Replace(s)
}

// replaceDelimited replaces complete delim…delim pairs with
// open+content+close; an unmatched opener is left alone.
func replaceDelimited(s, delim, open, close string) string {
	var b strings.Builder
	for {
		start := strings.Index(s, delim)
		if start == -1 {
			b.WriteString(s)
			break
		}
		end := strings.Index(s[start+len(delim):], delim)
		if end == -1 {
			b.WriteString(s)
			break
		}
		end += start + len(delim)
		b.WriteString(s[:start])
		b.WriteString(open)
		b.WriteString(s[start+len(delim) : end])
		b.WriteString(close)
		s = s[end+len(delim):]
	}
	return b.String()
}
