package api

import (
	"github.com/starford/outline/internal/pageservice"
	"github.com/starford/outline/internal/todo"
)

// SavePageRequest is the request body for PUT /pages/{namespace}/{name}.
type SavePageRequest struct {
	Content string `json:"content" example:"- [ ] write docs" validate:"required"`
}

// PageDetail is the full page response type (aliased from the domain layer).
type PageDetail = pageservice.PageDetail

// PageListItem is a lightweight item in a page listing.
type PageListItem = pageservice.PageListItem

// PageResponse is a page plus its optional rendered body.
type PageResponse struct {
	*PageDetail
	HTML string `json:"html,omitempty"`
}

// PageListResponse wraps a namespace listing.
type PageListResponse struct {
	Pages []PageListItem `json:"pages" validate:"required"`
}

// TodoItem is one todo in a listing, with optional HTML.
type TodoItem struct {
	pageservice.TodoItem
	HTML string `json:"html,omitempty"`
}

// TodoListResponse wraps paginated todo listings.
type TodoListResponse struct {
	Todos []TodoItem `json:"todos" validate:"required"`
	Total int        `json:"total" example:"42" validate:"required"`
}

// TagListResponse wraps the per-tag summary.
type TagListResponse struct {
	Tags []todo.TagSummary `json:"tags" validate:"required"`
}
