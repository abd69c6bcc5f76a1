package db

import (
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/google/uuid"
)

// WikiPage represents an archived wiki page
type WikiPage struct {
	ID          uuid.UUID  `json:"id"`
	RunID       *uuid.UUID `json:"run_id,omitempty"`
	Title       string     `json:"title"`
	URL         string     `json:"url"`
	RawText     *string    `json:"-"` // Don't serialize (large)
	Text        *string    `json:"text,omitempty"`
	ContentHash *string    `json:"content_hash,omitempty"`
	WordCount   int        `json:"word_count"`
	HTTPStatus  *int       `json:"http_status,omitempty"`
	// Error tracking
	FetchStatus        string  `json:"fetch_status"` // 'success', 'error', 'not_found', 'timeout', 'blocked'
	ErrorMessage       *string `json:"error_message,omitempty"`
	IsPermanentFailure bool    `json:"is_permanent_failure"`
	RetryCount         int     `json:"retry_count"`
	// Timestamps
	FetchedAt time.Time  `json:"fetched_at"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// FetchStatus constants for archived pages
const (
	FetchStatusSuccess  = "success"   // Page fetched successfully
	FetchStatusError    = "error"     // Generic error (may retry)
	FetchStatusNotFound = "not_found" // 404/410 - permanent failure
	FetchStatusTimeout  = "timeout"   // Request timed out (may retry)
	FetchStatusBlocked  = "blocked"   // 403/429 - blocked by server
)

// Run status constants
const (
	RunStatusRunning   = "running"
	RunStatusCompleted = "completed"
	RunStatusFailed    = "failed"
)

// DefaultPageCacheTTL is the default time-to-live for archived pages (7 days)
const DefaultPageCacheTTL = 7 * 24 * time.Hour

// IsPermanentHTTPStatus returns true for status codes that indicate permanent failure
func IsPermanentHTTPStatus(status int) bool {
	switch status {
	case 404, 410, 451: // Not Found, Gone, Unavailable for Legal Reasons
		return true
	default:
		return false
	}
}

// FetchStatusFromHTTP determines fetch status from HTTP status code
func FetchStatusFromHTTP(status int) string {
	switch {
	case status >= 200 && status < 300:
		return FetchStatusSuccess
	case status == 404 || status == 410:
		return FetchStatusNotFound
	case status == 403 || status == 429:
		return FetchStatusBlocked
	default:
		return FetchStatusError
	}
}

// HashContent computes SHA-256 hash of content for change detection
func HashContent(content string) string {
	hash := sha256.Sum256([]byte(content))
	return hex.EncodeToString(hash[:])
}

// IsExpired returns true if the archived page has expired
func (p *WikiPage) IsExpired() bool {
	if p.ExpiresAt == nil {
		return false // No expiry set, never expires
	}
	return time.Now().After(*p.ExpiresAt)
}

// IsFresh returns true if the page was fetched within maxAge
func (p *WikiPage) IsFresh(maxAge time.Duration) bool {
	return time.Since(p.FetchedAt) < maxAge
}
