// Package hierarchy tracks the outline ancestors of blocks as a page is
// scanned in document order and derives the tags each block inherits.
package hierarchy

import "github.com/starford/outline/internal/models"

type frame struct {
	depth int
	tags  []models.PageName
}

// Tracker holds the stack of open ancestor frames for one page.
// Blocks must be fed in document order; feeding them out of order gives
// undefined tag sets.
type Tracker struct {
	page   models.PageName
	frames []frame
}

// New returns a tracker for page with an empty stack.
func New(page models.PageName) *Tracker {
	return &Tracker{page: page}
}

// Feed closes every frame at the block's depth or deeper and opens a frame
// for the block itself, carrying the pages it links to.
func (t *Tracker) Feed(block models.Block) {
	n := len(t.frames)
	for n > 0 && t.frames[n-1].depth >= block.Indentation {
		n--
	}
	t.frames = t.frames[:n]
	t.frames = append(t.frames, frame{depth: block.Indentation, tags: blockTags(block)})
}

// CurrentTagSet returns the page name followed by the tags of every open
// frame, outermost first. Repeated names keep their first position.
func (t *Tracker) CurrentTagSet() []models.PageName {
	out := []models.PageName{t.page}
	seen := map[models.PageName]struct{}{t.page: {}}
	for _, f := range t.frames {
		for _, tag := range f.tags {
			if _, ok := seen[tag]; ok {
				continue
			}
			seen[tag] = struct{}{}
			out = append(out, tag)
		}
	}
	return out
}

// Depth is the number of open frames.
func (t *Tracker) Depth() int {
	return len(t.frames)
}

func blockTags(block models.Block) []models.PageName {
	var tags []models.PageName
	for _, line := range block.Content {
		for _, tok := range line.Tokens {
			if tok.IsTag() && tok.Payload != "" {
				tags = append(tags, models.PageName(tok.Payload))
			}
		}
	}
	return tags
}
