package storage

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/starford/outline/internal/checksum"
	"github.com/starford/outline/internal/models"
)

const pageExt = ".md"

// Layout names the namespace directories under the graph root.
type Layout struct {
	PagesDir    string
	JournalsDir string
}

// DefaultLayout is "pages/" and "journals/".
var DefaultLayout = Layout{PagesDir: "pages", JournalsDir: "journals"}

// FS implements Provider backed by the local file system.
type FS struct {
	root   string // absolute path to graph directory
	layout Layout
}

// NewFS creates a new FS provider rooted at the given directory and creates
// the namespace directories if missing.
func NewFS(root string, layout Layout) (*FS, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("storage: resolve root: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("storage: stat root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("storage: root is not a directory: %s", abs)
	}
	if layout.PagesDir == "" {
		layout.PagesDir = DefaultLayout.PagesDir
	}
	if layout.JournalsDir == "" {
		layout.JournalsDir = DefaultLayout.JournalsDir
	}
	f := &FS{root: abs, layout: layout}
	for _, dir := range []string{layout.PagesDir, layout.JournalsDir} {
		p, err := f.safePath(dir)
		if err != nil {
			return nil, err
		}
		if err := os.MkdirAll(p, 0o755); err != nil {
			return nil, fmt.Errorf("storage: mkdir %s: %w", dir, err)
		}
	}
	return f, nil
}

// Root returns the absolute graph directory.
func (f *FS) Root() string {
	return f.root
}

// Dir returns the absolute directory of a namespace.
func (f *FS) Dir(ns models.PageNamespace) string {
	return filepath.Join(f.root, f.nsDir(ns))
}

func (f *FS) nsDir(ns models.PageNamespace) string {
	if ns == models.JournalPage {
		return f.layout.JournalsDir
	}
	return f.layout.PagesDir
}

// safePath resolves a relative path against the graph root and rejects
// any result that escapes it.
func (f *FS) safePath(rel string) (string, error) {
	if rel == "" {
		return f.root, nil
	}
	cleaned := filepath.Clean(rel)
	if filepath.IsAbs(cleaned) {
		return "", fmt.Errorf("storage: absolute paths not allowed: %s", rel)
	}
	abs, err := filepath.Abs(filepath.Join(f.root, cleaned))
	if err != nil {
		return "", fmt.Errorf("storage: resolve path: %w", err)
	}
	if !strings.HasPrefix(abs, f.root+string(os.PathSeparator)) && abs != f.root {
		return "", fmt.Errorf("storage: path escapes graph root: %s", rel)
	}
	return abs, nil
}

// pagePath maps an id to its file. Names are path-escaped so that a name
// containing "/" stays a single file inside the namespace directory.
func (f *FS) pagePath(id models.PageID) (string, error) {
	if id.Name == "" {
		return "", fmt.Errorf("storage: empty page name")
	}
	return f.safePath(filepath.Join(f.nsDir(id.Namespace), url.PathEscape(string(id.Name))+pageExt))
}

// PageIDForPath maps a path relative to the graph root back to a page id.
func (f *FS) PageIDForPath(rel string) (models.PageID, bool) {
	rel = filepath.Clean(rel)
	if !strings.HasSuffix(rel, pageExt) {
		return models.PageID{}, false
	}
	dir, file := filepath.Split(rel)
	dir = filepath.Clean(dir)
	var ns models.PageNamespace
	switch dir {
	case filepath.Clean(f.layout.PagesDir):
		ns = models.UserPage
	case filepath.Clean(f.layout.JournalsDir):
		ns = models.JournalPage
	default:
		return models.PageID{}, false
	}
	name, err := url.PathUnescape(strings.TrimSuffix(file, pageExt))
	if err != nil || name == "" {
		return models.PageID{}, false
	}
	return models.PageID{Namespace: ns, Name: models.PageName(name)}, true
}

// List reads the namespace directory and returns metadata for every page.
func (f *FS) List(ns models.PageNamespace) ([]PageMeta, error) {
	pages, err := f.Load(ns)
	if err != nil {
		return nil, err
	}
	out := make([]PageMeta, len(pages))
	for i, p := range pages {
		out[i] = p.PageMeta
	}
	return out, nil
}

// Load reads every page of the namespace directory.
func (f *FS) Load(ns models.PageNamespace) ([]PageData, error) {
	dir := f.Dir(ns)
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("storage: list %s: %w", ns, err)
	}
	var out []PageData
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), pageExt) {
			continue
		}
		id, ok := f.PageIDForPath(filepath.Join(f.nsDir(ns), e.Name()))
		if !ok {
			continue
		}
		info, err := e.Info()
		if err != nil {
			return nil, fmt.Errorf("storage: stat %s: %w", e.Name(), err)
		}
		data, err := os.ReadFile(filepath.Join(dir, e.Name()))
		if err != nil {
			return nil, fmt.Errorf("storage: read %s: %w", e.Name(), err)
		}
		out = append(out, PageData{
			PageMeta: PageMeta{
				ID:        id,
				Checksum:  checksum.Sum(data),
				UpdatedAt: info.ModTime(),
			},
			Content: data,
		})
	}
	return out, nil
}

// Read returns the raw bytes of a page.
func (f *FS) Read(id models.PageID) ([]byte, error) {
	abs, err := f.pagePath(id)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(abs)
	if err != nil {
		return nil, fmt.Errorf("storage: read %s: %w", id, err)
	}
	return data, nil
}

// Write atomically writes content: tmp file → fsync → rename.
func (f *FS) Write(id models.PageID, content []byte) error {
	abs, err := f.pagePath(id)
	if err != nil {
		return err
	}
	dir := filepath.Dir(abs)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("storage: mkdir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".outline-tmp-*")
	if err != nil {
		return fmt.Errorf("storage: create temp: %w", err)
	}
	tmpName := tmp.Name()

	success := false
	defer func() {
		if !success {
			_ = tmp.Close()
			_ = os.Remove(tmpName)
		}
	}()

	if _, err := tmp.Write(content); err != nil {
		return fmt.Errorf("storage: write temp: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("storage: fsync: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("storage: close temp: %w", err)
	}
	if err := os.Rename(tmpName, abs); err != nil {
		return fmt.Errorf("storage: rename: %w", err)
	}
	success = true
	return nil
}

// Delete removes a page file.
func (f *FS) Delete(id models.PageID) error {
	abs, err := f.pagePath(id)
	if err != nil {
		return err
	}
	if err := os.Remove(abs); err != nil {
		return fmt.Errorf("storage: delete %s: %w", id, err)
	}
	return nil
}
