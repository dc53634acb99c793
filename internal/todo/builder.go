// Package todo builds and maintains the cross-page index of task blocks.
package todo

import (
	"github.com/starford/outline/internal/hierarchy"
	"github.com/starford/outline/internal/models"
)

// openMarker is the only Todo payload that means "not done".
const openMarker = " "

// BuildOption configures a full index build.
type BuildOption func(*buildConfig)

type buildConfig struct {
	journalNamespace models.PageNamespace
}

// WithJournalSourceNamespace sets the namespace recorded in the source
// reference of journal entries. The default is JournalPage. Passing UserPage
// reproduces the older labelling where journal todos reported the general
// namespace; the PageID itself always stays a journal id.
func WithJournalSourceNamespace(ns models.PageNamespace) BuildOption {
	return func(c *buildConfig) {
		c.journalNamespace = ns
	}
}

// BuildFullIndex scans general pages, then journal pages, each in name order.
func BuildFullIndex(snap *models.Snapshot, opts ...BuildOption) *Index {
	cfg := buildConfig{journalNamespace: models.JournalPage}
	for _, opt := range opts {
		opt(&cfg)
	}
	if snap == nil {
		return Empty()
	}

	var entries []models.TodoIndexEntry
	for _, name := range models.SortedNames(snap.Pages) {
		entries = append(entries, BuildPageContribution(models.UserPageID(name), models.UserPage, name, snap.Pages[name])...)
	}
	for _, name := range models.SortedNames(snap.Journals) {
		entries = append(entries, BuildPageContribution(models.JournalPageID(name), cfg.journalNamespace, name, snap.Journals[name])...)
	}
	return &Index{entries: entries}
}

// BuildPageContribution returns the entries for one page in block order.
// A block is a task when the first token of its first content line is a
// Todo token; blocks without content or tokens are skipped.
func BuildPageContribution(id models.PageID, ns models.PageNamespace, name models.PageName, page models.Page) []models.TodoIndexEntry {
	tracker := hierarchy.New(name)
	var out []models.TodoIndexEntry
	for i, block := range page.Blocks {
		tracker.Feed(block)
		first, ok := block.FirstToken()
		if !ok || first.Type != models.TokenTodo {
			continue
		}
		out = append(out, models.TodoIndexEntry{
			Source: models.TodoSourceReference{
				PageID:      id,
				PageName:    name,
				Namespace:   ns,
				BlockNumber: i,
			},
			Block: block.Clone(),
			State: StateFromPayload(first.Payload),
			Tags:  tracker.CurrentTagSet(),
		})
	}
	return out
}

// StateFromPayload maps a checkbox marker to a state. Anything other than a
// single space is Done.
func StateFromPayload(payload string) models.TodoState {
	if payload == openMarker {
		return models.TodoOpen
	}
	return models.TodoDone
}
