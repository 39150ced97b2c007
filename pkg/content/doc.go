// Package content converts rich text into the HTML subset accepted by the
// Telegram Bot API.
//
// [Sanitize] is pure and deterministic: the same input always yields the same
// output. Block elements are rewritten to line breaks (headers become a bold
// line, list items become "• " lines), inline formatting from the allowed set
// is kept, styling attributes are dropped and script or style bodies are
// removed. The result is NFC-normalized with at most one empty line between
// paragraphs.
//
// [FromMarkdown] renders Markdown with goldmark and sanitizes the result.
package content
