//go:build integration

package harvest

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kmori/wikiharvest/internal/config"
	"github.com/kmori/wikiharvest/internal/db"
)

// These tests require a running PostgreSQL database.
// Set TEST_DATABASE_URL environment variable to run them.

func TestIntegration_RunSkipsPermanentlyFailedURLs(t *testing.T) {
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set, skipping integration test")
	}
	ctx := context.Background()

	server := fakeAPIWiki(t)
	defer server.Close()

	database, err := db.Connect(ctx, dsn)
	require.NoError(t, err)
	defer database.Close()
	require.NoError(t, database.EnsureSchema(ctx))

	// A prior run recorded Alpha as permanently gone
	alphaURL := server.URL + "/wiki/Alpha"
	require.NoError(t, database.RecordFailedFetch(ctx, nil, "Alpha", alphaURL, 404, "page not found"))

	col, err := Run(ctx, Options{
		Wiki:        server.URL,
		Mode:        config.ModeAPI,
		DatabaseURL: dsn,
	})
	require.NoError(t, err)

	// Alpha is skipped up front, Beta scrapes, Gamma is empty, Delta is missing
	assert.Equal(t, 4, col.Stats.PagesFound)
	assert.Equal(t, 1, col.Stats.PagesScraped)
	assert.Equal(t, 2, col.Stats.PagesSkipped)
	assert.Equal(t, 1, col.Stats.PagesFailed)

	require.Len(t, col.Pages, 1)
	assert.Equal(t, "Beta", col.Pages[0].Title)
}
