package db

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// GetPageByURL retrieves an archived page by URL
func (db *DB) GetPageByURL(ctx context.Context, pageURL string) (*WikiPage, error) {
	var p WikiPage
	err := db.pool.QueryRow(ctx,
		`SELECT id, run_id, title, url, raw_text, text, content_hash, word_count,
		        http_status, fetch_status, error_message, is_permanent_failure, retry_count,
		        fetched_at, expires_at, created_at, updated_at
		 FROM wiki_pages WHERE url = $1`,
		pageURL,
	).Scan(&p.ID, &p.RunID, &p.Title, &p.URL, &p.RawText, &p.Text, &p.ContentHash, &p.WordCount,
		&p.HTTPStatus, &p.FetchStatus, &p.ErrorMessage, &p.IsPermanentFailure, &p.RetryCount,
		&p.FetchedAt, &p.ExpiresAt, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get wiki page: %w", err)
	}
	return &p, nil
}

// GetFreshPage retrieves a page only if it's not stale and was successful
func (db *DB) GetFreshPage(ctx context.Context, pageURL string, maxAge time.Duration) (*WikiPage, error) {
	page, err := db.GetPageByURL(ctx, pageURL)
	if err != nil {
		return nil, err
	}
	if page == nil {
		return nil, nil
	}

	if page.IsExpired() || !page.IsFresh(maxAge) {
		return nil, nil // Stale, should re-fetch
	}

	// Only return successful pages from the archive
	if page.FetchStatus != FetchStatusSuccess {
		return nil, nil
	}

	return page, nil
}

// ShouldSkipURL checks if a URL should be skipped due to previous permanent failure
func (db *DB) ShouldSkipURL(ctx context.Context, pageURL string) (bool, string, error) {
	page, err := db.GetPageByURL(ctx, pageURL)
	if err != nil {
		return false, "", err
	}
	if page == nil {
		return false, "", nil // Never tried, don't skip
	}

	if page.IsPermanentFailure {
		reason := "permanent failure"
		if page.ErrorMessage != nil {
			reason = *page.ErrorMessage
		}
		return true, reason, nil
	}

	return false, "", nil
}

// UpsertPage inserts or updates an archived page (for successful fetches)
func (db *DB) UpsertPage(ctx context.Context, page *WikiPage) error {
	// Compute content hash if we have raw text
	var contentHash *string
	if page.RawText != nil {
		hash := HashContent(*page.RawText)
		contentHash = &hash
	} else if page.Text != nil {
		hash := HashContent(*page.Text)
		contentHash = &hash
	}

	// Set default TTL if not provided
	expiresAt := page.ExpiresAt
	if expiresAt == nil {
		t := time.Now().Add(DefaultPageCacheTTL)
		expiresAt = &t
	}

	// Default to success status
	fetchStatus := page.FetchStatus
	if fetchStatus == "" {
		fetchStatus = FetchStatusSuccess
	}

	err := db.pool.QueryRow(ctx,
		`INSERT INTO wiki_pages (run_id, title, url, raw_text, text, content_hash, word_count,
		                         http_status, fetch_status, error_message, is_permanent_failure,
		                         retry_count, fetched_at, expires_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, 0, NOW(), $12)
		 ON CONFLICT (url) DO UPDATE SET
		     run_id = COALESCE($1, wiki_pages.run_id),
		     title = $2,
		     raw_text = $4,
		     text = $5,
		     content_hash = $6,
		     word_count = $7,
		     http_status = $8,
		     fetch_status = $9,
		     error_message = $10,
		     is_permanent_failure = $11,
		     retry_count = 0,
		     fetched_at = NOW(),
		     expires_at = $12,
		     updated_at = NOW()
		 RETURNING id, fetched_at, created_at, updated_at`,
		page.RunID, page.Title, page.URL, page.RawText, page.Text, contentHash, page.WordCount,
		page.HTTPStatus, fetchStatus, page.ErrorMessage, page.IsPermanentFailure, expiresAt,
	).Scan(&page.ID, &page.FetchedAt, &page.CreatedAt, &page.UpdatedAt)

	if err != nil {
		return fmt.Errorf("failed to upsert wiki page: %w", err)
	}
	return nil
}

// RecordFailedFetch records a failed fetch attempt for a page
func (db *DB) RecordFailedFetch(ctx context.Context, runID *uuid.UUID, title, pageURL string, httpStatus int, errorMsg string) error {
	fetchStatus := FetchStatusFromHTTP(httpStatus)
	isPermanent := IsPermanentHTTPStatus(httpStatus)

	_, err := db.pool.Exec(ctx,
		`INSERT INTO wiki_pages (run_id, title, url, http_status, fetch_status, error_message, is_permanent_failure, retry_count, fetched_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, 1, NOW())
		 ON CONFLICT (url) DO UPDATE SET
		     run_id = COALESCE($1, wiki_pages.run_id),
		     http_status = $4,
		     fetch_status = $5,
		     error_message = $6,
		     is_permanent_failure = $7 OR wiki_pages.is_permanent_failure,
		     retry_count = wiki_pages.retry_count + 1,
		     fetched_at = NOW(),
		     updated_at = NOW()`,
		runID, title, pageURL, httpStatus, fetchStatus, errorMsg, isPermanent,
	)
	if err != nil {
		return fmt.Errorf("failed to record failed fetch: %w", err)
	}
	return nil
}

// DeleteExpiredPages removes archived pages whose TTL has elapsed
func (db *DB) DeleteExpiredPages(ctx context.Context) (int64, error) {
	tag, err := db.pool.Exec(ctx,
		`DELETE FROM wiki_pages WHERE expires_at IS NOT NULL AND expires_at < NOW()`,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired pages: %w", err)
	}
	return tag.RowsAffected(), nil
}
