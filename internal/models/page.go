// Package models defines the page, block and todo types shared by the indexer.
package models

import (
	"fmt"
	"sort"
	"strings"
)

// PageName identifies a page inside its namespace. Comparison is byte-exact.
type PageName string

// PageNamespace separates general pages from date-keyed journal pages.
type PageNamespace int

const (
	UserPage PageNamespace = iota
	JournalPage
)

const (
	userPagePrefix    = "%%user-page/"
	journalPagePrefix = "%%journal-page/"
)

// String returns the config/API spelling of the namespace.
func (ns PageNamespace) String() string {
	switch ns {
	case UserPage:
		return "user"
	case JournalPage:
		return "journal"
	default:
		return fmt.Sprintf("namespace(%d)", int(ns))
	}
}

// ParseNamespace accepts "user" or "journal" (case-insensitive).
func ParseNamespace(s string) (PageNamespace, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "user", "page", "pages":
		return UserPage, nil
	case "journal", "journals":
		return JournalPage, nil
	}
	return UserPage, fmt.Errorf("models: unknown namespace %q", s)
}

// MarshalText implements encoding.TextMarshaler.
func (ns PageNamespace) MarshalText() ([]byte, error) {
	return []byte(ns.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (ns *PageNamespace) UnmarshalText(b []byte) error {
	v, err := ParseNamespace(string(b))
	if err != nil {
		return err
	}
	*ns = v
	return nil
}

// PageID is a page name qualified by its namespace.
//
// Two ids are equal only if both fields match, but HashKey ignores the
// namespace: a user page and a journal page with the same name share a key.
// Set membership and index removal are keyed by name for that reason.
type PageID struct {
	Namespace PageNamespace
	Name      PageName
}

// UserPageID returns the id of a general page.
func UserPageID(name PageName) PageID {
	return PageID{Namespace: UserPage, Name: name}
}

// JournalPageID returns the id of a journal page.
func JournalPageID(name PageName) PageID {
	return PageID{Namespace: JournalPage, Name: name}
}

// IsUserPage reports whether the id lives in the general namespace.
func (id PageID) IsUserPage() bool {
	return id.Namespace == UserPage
}

// Equal compares namespace and name.
func (id PageID) Equal(other PageID) bool {
	return id == other
}

// HashKey is the key used for set membership. It is the name alone.
func (id PageID) HashKey() PageName {
	return id.Name
}

// String renders the prefixed form, e.g. "%%user-page/Proj".
func (id PageID) String() string {
	if id.Namespace == JournalPage {
		return journalPagePrefix + string(id.Name)
	}
	return userPagePrefix + string(id.Name)
}

// ParsePageID is the inverse of PageID.String.
func ParsePageID(s string) (PageID, error) {
	switch {
	case strings.HasPrefix(s, userPagePrefix):
		return UserPageID(PageName(strings.TrimPrefix(s, userPagePrefix))), nil
	case strings.HasPrefix(s, journalPagePrefix):
		return JournalPageID(PageName(strings.TrimPrefix(s, journalPagePrefix))), nil
	}
	return PageID{}, fmt.Errorf("models: malformed page id %q", s)
}

// PageIDSet is a membership set over page ids keyed by HashKey.
type PageIDSet map[PageName]PageID

// Add records id, replacing any id with the same name.
func (s PageIDSet) Add(id PageID) {
	s[id.HashKey()] = id
}

// Contains reports whether an id with the same name is present.
func (s PageIDSet) Contains(id PageID) bool {
	_, ok := s[id.HashKey()]
	return ok
}

// Remove drops the entry sharing id's name.
func (s PageIDSet) Remove(id PageID) {
	delete(s, id.HashKey())
}

// TokenType classifies a parsed token.
type TokenType int

const (
	TokenText TokenType = iota
	TokenLink
	TokenJournalLink
	TokenQuery
	TokenTodo
)

func (t TokenType) String() string {
	switch t {
	case TokenText:
		return "text"
	case TokenLink:
		return "link"
	case TokenJournalLink:
		return "journal-link"
	case TokenQuery:
		return "query"
	case TokenTodo:
		return "todo"
	default:
		return fmt.Sprintf("token(%d)", int(t))
	}
}

// Token is one typed unit of a content line. For Todo tokens the payload is
// the single checkbox character.
type Token struct {
	Type    TokenType
	Payload string
}

// IsTag reports whether the token references another page.
func (t Token) IsTag() bool {
	return t.Type == TokenLink || t.Type == TokenJournalLink
}

// BlockContent is one line of a block with its tokens.
type BlockContent struct {
	Text   string
	Tokens []Token
}

// Block is an outline node: an indentation depth plus its content lines.
type Block struct {
	Indentation int
	Content     []BlockContent
}

// Clone returns a deep copy of the block.
func (b Block) Clone() Block {
	out := Block{Indentation: b.Indentation}
	if b.Content == nil {
		return out
	}
	out.Content = make([]BlockContent, len(b.Content))
	for i, c := range b.Content {
		out.Content[i] = BlockContent{Text: c.Text}
		if c.Tokens != nil {
			out.Content[i].Tokens = append([]Token(nil), c.Tokens...)
		}
	}
	return out
}

// FirstToken returns the leading token of the first content line.
func (b Block) FirstToken() (Token, bool) {
	if len(b.Content) == 0 || len(b.Content[0].Tokens) == 0 {
		return Token{}, false
	}
	return b.Content[0].Tokens[0], true
}

// Text joins the raw text of every content line.
func (b Block) Text() string {
	lines := make([]string, len(b.Content))
	for i, c := range b.Content {
		lines[i] = c.Text
	}
	return strings.Join(lines, "\n")
}

// Page is an ordered list of blocks addressed by position.
type Page struct {
	Blocks []Block
}

// Snapshot is a read-only view of the page store.
type Snapshot struct {
	Pages    map[PageName]Page
	Journals map[PageName]Page
}

// NewSnapshot returns an empty snapshot with both maps allocated.
func NewSnapshot() *Snapshot {
	return &Snapshot{
		Pages:    make(map[PageName]Page),
		Journals: make(map[PageName]Page),
	}
}

// Namespace returns the mapping for ns.
func (s *Snapshot) Namespace(ns PageNamespace) map[PageName]Page {
	if ns == JournalPage {
		return s.Journals
	}
	return s.Pages
}

// SortedNames returns the names of a mapping in byte order. Go maps have no
// stable iteration order, so this is the snapshot's scan order.
func SortedNames(pages map[PageName]Page) []PageName {
	names := make([]PageName, 0, len(pages))
	for n := range pages {
		names = append(names, n)
	}
	sort.Slice(names, func(i, j int) bool { return names[i] < names[j] })
	return names
}
