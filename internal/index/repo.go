package index

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/starford/outline/internal/models"
)

// todoIDSpace namespaces the name-based UUIDs of todo rows.
var todoIDSpace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("outline:todo"))

// PageRow represents a row in the pages table.
type PageRow struct {
	ID        models.PageID
	Checksum  string
	UpdatedAt time.Time
}

// TodoRow represents a row in the todos table.
type TodoRow struct {
	ID          string
	PageKey     string
	PageName    string
	Namespace   string
	BlockNumber int
	State       string
	Text        string
	Tags        []string
}

// TodoFilter narrows ListTodos. Empty fields match everything.
type TodoFilter struct {
	Tag    string
	State  string
	Limit  int
	Offset int
}

// TodoID derives the stable row id of an entry from its page id and block number.
func TodoID(src models.TodoSourceReference) string {
	return uuid.NewSHA1(todoIDSpace, []byte(src.PageID.String()+"#"+strconv.Itoa(src.BlockNumber))).String()
}

// UpsertPage records a page and its checksum.
func (db *DB) UpsertPage(p PageRow) error {
	_, err := db.conn.Exec(`
		INSERT INTO pages (page_key, namespace, name, checksum, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(page_key) DO UPDATE SET
			checksum   = excluded.checksum,
			updated_at = excluded.updated_at
	`, p.ID.String(), p.ID.Namespace.String(), string(p.ID.Name), p.Checksum, p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("index: upsert page: %w", err)
	}
	return nil
}

// DeletePage removes a page row.
func (db *DB) DeletePage(id models.PageID) error {
	if _, err := db.conn.Exec(`DELETE FROM pages WHERE page_key = ?`, id.String()); err != nil {
		return fmt.Errorf("index: delete page: %w", err)
	}
	return nil
}

// GetChecksum returns the stored checksum for a page, or empty string if not found.
func (db *DB) GetChecksum(id models.PageID) (string, error) {
	var cs string
	err := db.conn.QueryRow(`SELECT checksum FROM pages WHERE page_key = ?`, id.String()).Scan(&cs)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("index: get checksum: %w", err)
	}
	return cs, nil
}

// AllChecksums returns page checksums keyed by page id.
func (db *DB) AllChecksums() (map[models.PageID]string, error) {
	rows, err := db.conn.Query(`SELECT page_key, checksum FROM pages`)
	if err != nil {
		return nil, fmt.Errorf("index: all checksums: %w", err)
	}
	defer rows.Close()
	out := make(map[models.PageID]string)
	for rows.Next() {
		var key, cs string
		if err := rows.Scan(&key, &cs); err != nil {
			return nil, err
		}
		id, err := models.ParsePageID(key)
		if err != nil {
			continue
		}
		out[id] = cs
	}
	return out, rows.Err()
}

// ReplaceTodos deletes every todo whose page name is name, whatever its
// namespace, and inserts entries after the existing rows.
func (db *DB) ReplaceTodos(name models.PageName, entries []models.TodoIndexEntry) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("index: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // best-effort on failure path

	if err := deleteTodos(tx, `WHERE page_name = ?`, string(name)); err != nil {
		return err
	}
	var next int
	if err := tx.QueryRow(`SELECT COALESCE(MAX(position) + 1, 0) FROM todos`).Scan(&next); err != nil {
		return fmt.Errorf("index: next position: %w", err)
	}
	if err := insertTodos(tx, next, entries); err != nil {
		return err
	}
	return tx.Commit()
}

// ReplaceAllTodos rewrites the mirror from a full index.
func (db *DB) ReplaceAllTodos(entries []models.TodoIndexEntry) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("index: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if err := deleteTodos(tx, ""); err != nil {
		return err
	}
	if err := insertTodos(tx, 0, entries); err != nil {
		return err
	}
	return tx.Commit()
}

func deleteTodos(tx *sql.Tx, where string, args ...any) error {
	if _, err := tx.Exec(`DELETE FROM todo_tags WHERE todo_id IN (SELECT id FROM todos `+where+`)`, args...); err != nil {
		return fmt.Errorf("index: delete todo tags: %w", err)
	}
	if _, err := tx.Exec(`DELETE FROM todos `+where, args...); err != nil {
		return fmt.Errorf("index: delete todos: %w", err)
	}
	return nil
}

func insertTodos(tx *sql.Tx, start int, entries []models.TodoIndexEntry) error {
	if len(entries) == 0 {
		return nil
	}
	todoStmt, err := tx.Prepare(`
		INSERT OR REPLACE INTO todos (id, position, page_key, page_name, namespace, block_number, state, text, tags)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("index: prepare todo insert: %w", err)
	}
	defer todoStmt.Close()
	tagStmt, err := tx.Prepare(`INSERT OR IGNORE INTO todo_tags (todo_id, tag) VALUES (?, ?)`)
	if err != nil {
		return fmt.Errorf("index: prepare tag insert: %w", err)
	}
	defer tagStmt.Close()

	for i, e := range entries {
		id := TodoID(e.Source)
		tags := tagStrings(e.Tags)
		tagsJSON, _ := json.Marshal(tags)
		if _, err := todoStmt.Exec(id, start+i, e.Source.PageID.String(), string(e.Source.PageName),
			e.Source.Namespace.String(), e.Source.BlockNumber, e.State.String(), e.Block.Text(), string(tagsJSON)); err != nil {
			return fmt.Errorf("index: insert todo: %w", err)
		}
		for _, tag := range tags {
			if _, err := tagStmt.Exec(id, tag); err != nil {
				return fmt.Errorf("index: insert todo tag: %w", err)
			}
		}
	}
	return nil
}

// ListTodos returns todos in index order with the total matching count.
func (db *DB) ListTodos(f TodoFilter) ([]TodoRow, int, error) {
	var where []string
	var args []any
	if f.Tag != "" {
		where = append(where, `id IN (SELECT todo_id FROM todo_tags WHERE tag = ?)`)
		args = append(args, f.Tag)
	}
	if f.State != "" {
		where = append(where, `state = ?`)
		args = append(args, f.State)
	}
	clause := ""
	if len(where) > 0 {
		clause = " WHERE " + strings.Join(where, " AND ")
	}

	var total int
	if err := db.conn.QueryRow(`SELECT count(*) FROM todos`+clause, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("index: count todos: %w", err)
	}

	limit := f.Limit
	if limit <= 0 {
		limit = 100
	}
	offset := f.Offset
	if offset < 0 {
		offset = 0
	}
	rows, err := db.conn.Query(`
		SELECT id, page_key, page_name, namespace, block_number, state, text, tags
		FROM todos`+clause+`
		ORDER BY position
		LIMIT ? OFFSET ?
	`, append(args, limit, offset)...)
	if err != nil {
		return nil, 0, fmt.Errorf("index: list todos: %w", err)
	}
	defer rows.Close()

	var out []TodoRow
	for rows.Next() {
		var r TodoRow
		var tagsJSON string
		if err := rows.Scan(&r.ID, &r.PageKey, &r.PageName, &r.Namespace, &r.BlockNumber, &r.State, &r.Text, &tagsJSON); err != nil {
			return nil, 0, err
		}
		_ = json.Unmarshal([]byte(tagsJSON), &r.Tags)
		out = append(out, r)
	}
	return out, total, rows.Err()
}

func tagStrings(tags []models.PageName) []string {
	out := make([]string, len(tags))
	for i, t := range tags {
		out[i] = string(t)
	}
	return out
}
