package content

import (
	"regexp"
	"slices"
	"strings"
	"sync"
	"unicode"

	"github.com/microcosm-cc/bluemonday"
	"golang.org/x/net/html"
	"golang.org/x/text/unicode/norm"
)

var (
	policy     *bluemonday.Policy
	policyOnce sync.Once
)

// inlineTags are passed through to the policy as-is.
var inlineTags = map[string]bool{
	"b": true, "strong": true,
	"i": true, "em": true,
	"u": true, "ins": true,
	"s": true, "strike": true, "del": true,
	"a": true, "code": true, "pre": true,
	"blockquote": true, "tg-spoiler": true,
}

// droppedTags lose their whole body, not just the markup.
var droppedTags = map[string]bool{
	"script": true, "style": true, "head": true, "title": true,
	"noscript": true, "template": true, "iframe": true, "object": true,
}

// paragraphTags become an empty line on both sides.
var paragraphTags = map[string]bool{
	"p": true, "div": true, "tr": true, "table": true,
	"ul": true, "ol": true, "section": true, "article": true,
	"header": true, "footer": true, "hr": true,
}

var headerTags = []string{"h1", "h2", "h3", "h4", "h5", "h6"}

func telegramPolicy() *bluemonday.Policy {
	policyOnce.Do(func() {
		policy = bluemonday.NewPolicy()
		policy.AllowElements(
			"b", "strong", "i", "em", "u", "ins",
			"s", "strike", "del", "code", "pre", "blockquote", "tg-spoiler",
		)
		policy.AllowAttrs("href").OnElements("a")
		policy.AllowURLSchemes("http", "https", "mailto", "tg")
		policy.RequireParseableURLs(true)
		policy.AllowAttrs("class").Matching(regexp.MustCompile(`^tg-spoiler$`)).OnElements("span")
		policy.AllowAttrs("class").Matching(regexp.MustCompile(`^language-[A-Za-z0-9_+-]+$`)).OnElements("code")
	})
	return policy
}

// Sanitize converts rich HTML into Telegram-safe HTML.
func Sanitize(rich string) string {
	if rich == "" {
		return ""
	}
	flat := rewriteBlocks(norm.NFC.String(rich))
	return strings.TrimSpace(telegramPolicy().Sanitize(flat))
}

// rewriteBlocks walks the token stream, turning block structure into line
// breaks and keeping only inline tags the channel understands.
func rewriteBlocks(s string) string {
	var (
		w     writer
		z     = html.NewTokenizer(strings.NewReader(s))
		skip  int
		pre   int
		spans []bool
	)

	for {
		tt := z.Next()
		if tt == html.ErrorToken {
			// io.EOF or a malformed tail; keep what was parsed.
			return w.String()
		}

		switch tt {
		case html.TextToken:
			if skip > 0 {
				continue
			}
			text := string(z.Text())
			if pre > 0 {
				w.raw(html.EscapeString(text))
			} else {
				w.text(text)
			}

		case html.StartTagToken, html.SelfClosingTagToken, html.EndTagToken:
			tok := z.Token()
			name := tok.Data
			start := tt != html.EndTagToken

			if droppedTags[name] {
				if tt == html.StartTagToken {
					skip++
				} else if tt == html.EndTagToken && skip > 0 {
					skip--
				}
				continue
			}
			if skip > 0 {
				continue
			}

			switch {
			case name == "br":
				w.lineBreak()
			case paragraphTags[name]:
				w.breaks(2)
			case slices.Contains(headerTags, name):
				if start {
					w.breaks(2)
					w.raw("<b>")
				} else {
					w.raw("</b>")
					w.breaks(2)
				}
			case name == "li":
				w.breaks(1)
				if start {
					w.raw("• ")
				}
			case name == "td" || name == "th":
				if !start {
					w.text(" ")
				}
			case name == "span":
				if tt == html.SelfClosingTagToken {
					continue
				}
				if start {
					spoiler := isSpoiler(tok)
					spans = append(spans, spoiler)
					if spoiler {
						w.raw(`<span class="tg-spoiler">`)
					}
				} else if n := len(spans); n > 0 {
					if spans[n-1] {
						w.raw("</span>")
					}
					spans = spans[:n-1]
				}
			case inlineTags[name]:
				if name == "pre" {
					if tt == html.StartTagToken {
						pre++
					} else if tt == html.EndTagToken && pre > 0 {
						pre--
					}
				}
				w.raw(tok.String())
			}
		}
	}
}

func isSpoiler(tok html.Token) bool {
	for _, a := range tok.Attr {
		if a.Key == "class" && slices.Contains(strings.Fields(a.Val), "tg-spoiler") {
			return true
		}
	}
	return false
}

// writer accumulates output while collapsing whitespace the way a browser
// would outside of preformatted blocks.
type writer struct {
	buf []byte
}

func (w *writer) String() string {
	return string(w.buf)
}

func (w *writer) raw(s string) {
	w.buf = append(w.buf, s...)
}

// text writes escaped text with whitespace runs collapsed to one space.
// Spaces at the start of a line are dropped.
func (w *writer) text(s string) {
	var b strings.Builder
	space := w.atLineStart() || w.last() == ' '
	for _, r := range s {
		if unicode.IsSpace(r) {
			if !space {
				b.WriteByte(' ')
				space = true
			}
			continue
		}
		b.WriteRune(r)
		space = false
	}
	w.raw(html.EscapeString(b.String()))
}

func (w *writer) lineBreak() {
	w.trimSpaces()
	w.buf = append(w.buf, '\n')
}

// breaks ends the current line and ensures n newlines trail the buffer.
// Nothing is written at the very beginning.
func (w *writer) breaks(n int) {
	w.trimSpaces()
	if len(w.buf) == 0 {
		return
	}
	have := 0
	for i := len(w.buf) - 1; i >= 0 && w.buf[i] == '\n'; i-- {
		have++
	}
	for ; have < n; have++ {
		w.buf = append(w.buf, '\n')
	}
}

func (w *writer) trimSpaces() {
	for len(w.buf) > 0 && w.buf[len(w.buf)-1] == ' ' {
		w.buf = w.buf[:len(w.buf)-1]
	}
}

func (w *writer) last() byte {
	if len(w.buf) == 0 {
		return 0
	}
	return w.buf[len(w.buf)-1]
}

func (w *writer) atLineStart() bool {
	return len(w.buf) == 0 || w.last() == '\n'
}
