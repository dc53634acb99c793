package models

import "fmt"

// TodoState is the checkbox state of a task block.
type TodoState int

const (
	TodoOpen TodoState = iota
	TodoDone
)

func (s TodoState) String() string {
	if s == TodoOpen {
		return "open"
	}
	return "done"
}

// ParseTodoState accepts "open" or "done".
func ParseTodoState(s string) (TodoState, error) {
	switch s {
	case "open", "todo":
		return TodoOpen, nil
	case "done":
		return TodoDone, nil
	}
	return TodoOpen, fmt.Errorf("models: unknown todo state %q", s)
}

// MarshalText implements encoding.TextMarshaler.
func (s TodoState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// TodoSourceReference locates a task block. Namespace duplicates PageID.Namespace
// and is populated by the builder's journal labelling policy.
type TodoSourceReference struct {
	PageID      PageID
	PageName    PageName
	Namespace   PageNamespace
	BlockNumber int
}

// TodoIndexEntry is one task block in the todo index.
type TodoIndexEntry struct {
	Source TodoSourceReference
	Block  Block
	State  TodoState
	Tags   []PageName
}

// HasTag reports whether name is among the entry's tags.
func (e TodoIndexEntry) HasTag(name PageName) bool {
	for _, t := range e.Tags {
		if t == name {
			return true
		}
	}
	return false
}

// Clone returns a deep copy.
func (e TodoIndexEntry) Clone() TodoIndexEntry {
	out := e
	out.Block = e.Block.Clone()
	out.Tags = append([]PageName(nil), e.Tags...)
	return out
}
