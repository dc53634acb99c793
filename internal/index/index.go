package index

import "github.com/starford/outline/internal/models"

// TodoStore defines the persistence operations of the todo mirror.
// Consumers should depend on this interface rather than the concrete *DB type
// to facilitate testing with mocks.
type TodoStore interface {
	UpsertPage(p PageRow) error
	DeletePage(id models.PageID) error
	GetChecksum(id models.PageID) (string, error)
	AllChecksums() (map[models.PageID]string, error)
	ReplaceTodos(name models.PageName, entries []models.TodoIndexEntry) error
	ReplaceAllTodos(entries []models.TodoIndexEntry) error
	ListTodos(f TodoFilter) ([]TodoRow, int, error)
	Close() error
}

// Verify *DB satisfies TodoStore at compile time.
var _ TodoStore = (*DB)(nil)
