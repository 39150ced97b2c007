package content

import "errors"

var ErrMarkdownRender = errors.New("content: failed to render markdown")
