// Package storage defines the page store file-system abstraction.
package storage

import (
	"time"

	"github.com/starford/outline/internal/models"
)

// PageMeta describes one stored page.
type PageMeta struct {
	ID        models.PageID
	Checksum  string
	UpdatedAt time.Time
}

// PageData is a stored page together with its raw content.
type PageData struct {
	PageMeta
	Content []byte
}

// Provider is the interface for page file operations.
type Provider interface {
	// List returns metadata for every page in the namespace.
	List(ns models.PageNamespace) ([]PageMeta, error)
	// Load returns metadata and content for every page in the namespace,
	// reading each file once.
	Load(ns models.PageNamespace) ([]PageData, error)
	// Read returns the raw bytes of a page.
	Read(id models.PageID) ([]byte, error)
	// Write atomically replaces the content of a page.
	Write(id models.PageID, content []byte) error
	// Delete removes a page.
	Delete(id models.PageID) error
}
