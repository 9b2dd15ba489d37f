// Package protocol defines the document-store API request/response types.
package protocol

import "time"

// ProjectEntry is one project in GET /api/v1/projects.
type ProjectEntry struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Archived  bool      `json:"archived"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ProjectListResponse is returned by GET /api/v1/projects.
type ProjectListResponse struct {
	Projects []ProjectEntry `json:"projects"`
}

// FileEntry is one file in GET /api/v1/projects/{id}/files.
type FileEntry struct {
	Path      string    `json:"path"`
	Hash      string    `json:"hash"`
	Size      int64     `json:"size"`
	UpdatedAt time.Time `json:"updated_at"`
}

// FileListResponse is returned by GET /api/v1/projects/{id}/files.
type FileListResponse struct {
	Files []FileEntry `json:"files"`

	// Instructions is the project's instruction template, when set.
	Instructions string `json:"instructions,omitempty"`
}

// UploadResponse is returned by PUT /api/v1/projects/{id}/files/{path}.
type UploadResponse struct {
	Path      string    `json:"path"`
	Hash      string    `json:"hash"`
	Size      int64     `json:"size"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ErrorResponse is returned on API errors.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    int    `json:"code"`
	Details string `json:"details,omitempty"`
}

// ThreadEntry is one conversation thread in GET /api/v1/projects/{id}/threads.
type ThreadEntry struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	UpdatedAt    time.Time `json:"updated_at"`
	MessageCount int       `json:"message_count"`
}

// ThreadListResponse is returned by GET /api/v1/projects/{id}/threads.
type ThreadListResponse struct {
	Threads []ThreadEntry `json:"threads"`
}

// ThreadMessage is one message in a thread response.
type ThreadMessage struct {
	Sender    string    `json:"sender"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
}

// ThreadResponse is returned by GET /api/v1/projects/{id}/threads/{tid}.
type ThreadResponse struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	UpdatedAt time.Time       `json:"updated_at"`
	Messages  []ThreadMessage `json:"messages"`
}
