package api

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
)

var mdRenderer = goldmark.New(goldmark.WithExtensions(extension.GFM))

var wikiLinkRe = regexp.MustCompile(`\[\[(.*?)\]\]`)

// linkify rewrites [[Name]] and [[Name|alias]] into markdown links to the
// page API so the rendered HTML is navigable.
func linkify(text string) string {
	return wikiLinkRe.ReplaceAllStringFunc(text, func(m string) string {
		inner := strings.TrimSpace(m[2 : len(m)-2])
		target, label, ok := strings.Cut(inner, "|")
		if !ok {
			label = target
		}
		target = strings.TrimSpace(target)
		if target == "" {
			return m
		}
		ns := "user"
		for _, p := range []string{"journal/", "journals/"} {
			if strings.HasPrefix(target, p) {
				ns, target = "journal", strings.TrimPrefix(target, p)
				break
			}
		}
		return "[" + strings.TrimSpace(label) + "](/api/pages/" + ns + "/" + url.PathEscape(target) + ")"
	})
}

// renderTodoHTML renders a todo block's text as a GFM task list item.
func renderTodoHTML(text string) (string, error) {
	return renderMarkdown("- " + text)
}

// renderMarkdown converts outline text (which is itself a markdown list) to HTML.
func renderMarkdown(text string) (string, error) {
	var b strings.Builder
	if err := mdRenderer.Convert([]byte(linkify(text)), &b); err != nil {
		return "", err
	}
	return b.String(), nil
}
