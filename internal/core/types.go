package core

import "time"

const (
	RecallName          = "Recall"
	RecallVersion       = "0.1.0"
	RecallRepositoryURL = "https://github.com/sandevgo/recall"
)

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Attachment is a binary blob carried by a message (image, audio, file).
// Only its size and MIME type matter to the pipeline; the bytes are opaque.
type Attachment struct {
	MimeType string `json:"mime_type"`
	Data     []byte `json:"-"`
	Size     int    `json:"size"`
}

// Message is a single conversational turn. Immutable once created.
// Messages with HasError set are excluded from all context assembly.
type Message struct {
	ID          int64        `json:"id,omitempty"`
	Role        string       `json:"role"`
	Content     string       `json:"content"`
	Attachments []Attachment `json:"attachments,omitempty"`
	HasError    bool         `json:"has_error,omitempty"`
	CreatedAt   time.Time    `json:"created_at,omitempty"`
}

// ContextWindow is the bounded slice of history actually sent to the model.
// Built fresh on every assembly call, never persisted.
type ContextWindow struct {
	Messages      []Message
	TokenCount    int
	Truncated     bool
	OriginalCount int
}

// SessionKind distinguishes sessions that persist memory from throwaways.
type SessionKind string

const (
	SessionPersistent SessionKind = "persistent"
	SessionTemporary  SessionKind = "temporary"
)

type Session struct {
	ID             string
	UserID         string
	Title          string
	Kind           SessionKind
	CreatedAt      time.Time
	UpdatedAt      time.Time
	LastSearchedAt time.Time
}

// SummaryKind marks whether a row is a full running summary or a lightweight
// synopsis written for sessions that never crossed the summarization
// threshold.
type SummaryKind string

const (
	SummaryFull     SummaryKind = "full"
	SummarySynopsis SummaryKind = "synopsis"
)

// SessionSummary is the running compressed record of one session.
// At most one row exists per session; Version increments on every fold.
type SessionSummary struct {
	ID           int64
	SessionID    string
	UserID       string
	Summary      string
	MessageCount int
	Version      int
	Kind         SummaryKind
	Embedding    []float32
	UpdatedAt    time.Time
}

// SummaryMatch is a similarity-search projection over session summaries.
type SummaryMatch struct {
	SessionID  string
	Summary    string
	Similarity float32
	UpdatedAt  time.Time
}

// Fact categories, in the priority order used when rendering memory context.
const (
	CategoryPersonal   = "personal"
	CategoryPreference = "preference"
	CategoryInterest   = "interest"
	CategoryProject    = "project"
	CategoryTechnical  = "technical"
	CategoryGeneral    = "general"
)

// MemoryFact is one durable, user-scoped statement extracted from
// conversation. Soft-deleted rather than removed.
type MemoryFact struct {
	ID            int64
	UserID        string
	Fact          string
	Category      string
	Confidence    float64
	Embedding     []float32
	SourceSession string
	SourceMessage int64
	AccessCount   int
	LastAccessed  time.Time
	Pinned        bool
	Deleted       bool
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// FactMatch is a fact paired with its similarity to a retrieval query.
type FactMatch struct {
	Fact       MemoryFact
	Similarity float32
}
