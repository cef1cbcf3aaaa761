package model

import "time"

// RunStatus is the outcome of one ingestion tick.
type RunStatus string

const (
	RunStatusIdle         RunStatus = "idle"
	RunStatusRejected     RunStatus = "rejected"
	RunStatusNoAttachment RunStatus = "no_attachment"
	RunStatusCommitted    RunStatus = "committed"
	RunStatusFailed       RunStatus = "failed"
)

// Valid reports whether s is a known status.
func (s RunStatus) Valid() bool {
	switch s {
	case RunStatusIdle, RunStatusRejected, RunStatusNoAttachment, RunStatusCommitted, RunStatusFailed:
		return true
	}
	return false
}

// Run is the audit record of one ingestion tick.
type Run struct {
	ID         string    `json:"id"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	Status     RunStatus `json:"status"`

	// Selected message, when one got past the filter.
	MessageUID uint32 `json:"message_uid,omitempty"`
	From       string `json:"from,omitempty"`
	Subject    string `json:"subject,omitempty"`
	Scanned    int    `json:"scanned"`

	Attachment     string `json:"attachment,omitempty"`
	ContentType    string `json:"content_type,omitempty"`
	AttachmentSize int    `json:"attachment_size,omitempty"`

	Candidates int      `json:"candidates"`
	Plan       []string `json:"plan,omitempty"`

	Error      string `json:"error,omitempty"`
	ErrorClass string `json:"error_class,omitempty"`
}

// Duration returns how long the tick took.
func (r Run) Duration() time.Duration {
	if r.FinishedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// RunFilter narrows run listings.
type RunFilter struct {
	Status RunStatus
	Limit  int
}
