// Package parser turns outline page text into blocks and typed tokens.
package parser

import (
	"bytes"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/starford/outline/internal/models"
)

var (
	todoRe = regexp.MustCompile(`^\[([^\[\]])\]`)
	// Wikilinks and {query: ...} directives, in document order.
	inlineRe = regexp.MustCompile(`\[\[(.*?)\]\]|\{query:\s*(.*?)\}`)
)

var journalLinkPrefixes = []string{"journal/", "journals/"}

// Result holds the output of parsing a page.
type Result struct {
	Frontmatter map[string]interface{}
	Page        models.Page
	Links       []string
}

// Parse splits off optional YAML frontmatter and parses the outline body.
func Parse(data []byte) (*Result, error) {
	fm, body := splitFrontmatter(data)
	page := ParseBlocks(body)
	return &Result{
		Frontmatter: fm,
		Page:        page,
		Links:       collectLinks(page),
	}, nil
}

// splitFrontmatter separates YAML frontmatter (between leading --- delimiters)
// from the body. Missing or invalid frontmatter leaves the content untouched.
func splitFrontmatter(data []byte) (map[string]interface{}, string) {
	const delim = "---"
	trimmed := bytes.TrimLeft(data, "\n\r")

	if !bytes.HasPrefix(trimmed, []byte(delim)) {
		return nil, string(data)
	}

	rest := trimmed[len(delim):]
	idx := bytes.Index(rest, []byte("\n"+delim))
	if idx < 0 {
		return nil, string(data)
	}

	yamlBlock := rest[:idx]
	afterDelim := rest[idx+1+len(delim):]
	body := strings.TrimLeft(string(afterDelim), "\n\r")

	var fm map[string]interface{}
	if err := yaml.Unmarshal(yamlBlock, &fm); err != nil {
		return nil, string(data)
	}
	return fm, body
}

// ParseBlocks builds the outline. Each "- " bullet starts a block whose depth
// is its indentation (one tab or two spaces per level). Other non-empty lines
// continue the current block; text before the first bullet forms a root block.
func ParseBlocks(body string) models.Page {
	var page models.Page
	for _, raw := range strings.Split(strings.ReplaceAll(body, "\r\n", "\n"), "\n") {
		if strings.TrimSpace(raw) == "" {
			continue
		}
		depth, rest := indentation(raw)
		if rest == "-" || strings.HasPrefix(rest, "- ") {
			text := strings.TrimPrefix(strings.TrimPrefix(rest, "-"), " ")
			page.Blocks = append(page.Blocks, models.Block{
				Indentation: depth,
				Content:     []models.BlockContent{ParseLine(text)},
			})
			continue
		}
		if len(page.Blocks) == 0 {
			page.Blocks = append(page.Blocks, models.Block{Indentation: 0})
		}
		last := &page.Blocks[len(page.Blocks)-1]
		last.Content = append(last.Content, ParseLine(rest))
	}
	return page
}

func indentation(line string) (int, string) {
	tabs, spaces := 0, 0
	i := 0
loop:
	for ; i < len(line); i++ {
		switch line[i] {
		case '\t':
			tabs++
		case ' ':
			spaces++
		default:
			break loop
		}
	}
	return tabs + spaces/2, line[i:]
}

// ParseLine tokenizes one content line. A leading checkbox becomes a Todo
// token whose payload is the character between the brackets.
func ParseLine(text string) models.BlockContent {
	content := models.BlockContent{Text: text}
	rest := text
	if m := todoRe.FindStringSubmatch(rest); m != nil {
		content.Tokens = append(content.Tokens, models.Token{Type: models.TokenTodo, Payload: m[1]})
		rest = rest[len(m[0]):]
	}

	pos := 0
	for _, loc := range inlineRe.FindAllStringSubmatchIndex(rest, -1) {
		content.Tokens = appendText(content.Tokens, rest[pos:loc[0]])
		switch {
		case loc[2] >= 0:
			content.Tokens = append(content.Tokens, linkToken(strings.TrimSpace(rest[loc[2]:loc[3]])))
		case loc[4] >= 0:
			content.Tokens = append(content.Tokens, models.Token{Type: models.TokenQuery, Payload: strings.TrimSpace(rest[loc[4]:loc[5]])})
		}
		pos = loc[1]
	}
	content.Tokens = appendText(content.Tokens, rest[pos:])
	return content
}

func linkToken(target string) models.Token {
	if i := strings.Index(target, "|"); i >= 0 {
		target = strings.TrimSpace(target[:i])
	}
	for _, prefix := range journalLinkPrefixes {
		if strings.HasPrefix(target, prefix) {
			return models.Token{Type: models.TokenJournalLink, Payload: strings.TrimPrefix(target, prefix)}
		}
	}
	return models.Token{Type: models.TokenLink, Payload: target}
}

func appendText(tokens []models.Token, s string) []models.Token {
	if strings.TrimSpace(s) == "" {
		return tokens
	}
	return append(tokens, models.Token{Type: models.TokenText, Payload: s})
}

// collectLinks returns the distinct link targets of a page in document order.
func collectLinks(page models.Page) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, b := range page.Blocks {
		for _, c := range b.Content {
			for _, tok := range c.Tokens {
				if tok.Type != models.TokenLink || tok.Payload == "" {
					continue
				}
				if _, ok := seen[tok.Payload]; ok {
					continue
				}
				seen[tok.Payload] = struct{}{}
				out = append(out, tok.Payload)
			}
		}
	}
	return out
}
