package web

import (
	"errors"
	"html/template"

	"github.com/contentflow/contentflow/util"
	"gitlab.com/golang-commonmark/markdown"
)

var ErrEmptyComment = errors.New("missing comment text")

var commonMarkParser = markdown.New(markdown.HTML(true), markdown.Linkify(true), markdown.Typographer(true), markdown.MaxNesting(10))

// RenderComment renders a comment body as CommonMark markdown. Inline HTML is
// allowed by the parser, so the result is sanitized before it is trusted.
func (ctx *context) RenderComment(content string) template.HTML {

	var rendered = commonMarkParser.RenderToString([]byte(content))

	sanitized, err := util.SanitizeHTML(rendered)
	if err != nil {
		return template.HTML(template.HTMLEscapeString(content))
	}

	return template.HTML(sanitized)
}
