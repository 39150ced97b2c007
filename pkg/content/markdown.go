package content

import (
	"bytes"
	"errors"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
)

var markdown = goldmark.New(
	goldmark.WithExtensions(extension.Strikethrough, extension.Linkify),
)

// FromMarkdown renders Markdown to HTML and sanitizes it for the channel.
func FromMarkdown(md string) (string, error) {
	var buf bytes.Buffer
	if err := markdown.Convert([]byte(md), &buf); err != nil {
		return "", errors.Join(ErrMarkdownRender, err)
	}
	return Sanitize(buf.String()), nil
}

// Render sanitizes text according to format: "markdown" or "html" (default).
func Render(text, format string) (string, error) {
	if format == "markdown" || format == "md" {
		return FromMarkdown(text)
	}
	return Sanitize(text), nil
}
