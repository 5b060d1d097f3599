package cmd

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/claimsync/internal/ui"
)

func TestStatusCmd_MissingIndex(t *testing.T) {
	// Given: no index yet
	cfgPath := testEnv(t, 0)

	// When: asking for status
	output, err := execute(t, "status", "--config", cfgPath, "--no-color")

	// Then: the index is reported missing
	require.NoError(t, err)
	assert.Contains(t, output, "Search Index: claims")
	assert.Contains(t, output, "missing")
	assert.Contains(t, output, "expected 1")

	// And: probing left the search root alone
	_, statErr := os.Stat(filepath.Join(filepath.Dir(cfgPath), "search"))
	assert.True(t, os.IsNotExist(statErr))
}

func TestStatusCmd_AfterSync(t *testing.T) {
	// Given: a synced index
	cfgPath := testEnv(t, 7)
	_, err := execute(t, "sync", "--config", cfgPath, "--plain")
	require.NoError(t, err)

	// When: asking for JSON status
	output, err := execute(t, "status", "--config", cfgPath, "--json")

	// Then: the stored version and count are reported
	require.NoError(t, err)
	var info ui.StatusInfo
	require.NoError(t, json.Unmarshal([]byte(output), &info))
	assert.Equal(t, "ready", info.Engine)
	assert.True(t, info.Exists)
	assert.Equal(t, 1, info.StoredVersion)
	assert.Equal(t, int64(7), info.Documents)
	assert.Equal(t, "current", info.State())
}

func TestStatusCmd_OutdatedAfterVersionBump(t *testing.T) {
	// Given: an index synced at version 1
	cfgPath := testEnv(t, 2)
	_, err := execute(t, "sync", "--config", cfgPath, "--plain")
	require.NoError(t, err)

	// When: the expected version moves to 2
	t.Setenv("CLAIMSYNC_INDEX_VERSION", "2")
	output, err := execute(t, "status", "--config", cfgPath, "--json")

	// Then: the index is outdated
	require.NoError(t, err)
	var info ui.StatusInfo
	require.NoError(t, json.Unmarshal([]byte(output), &info))
	assert.Equal(t, "outdated", info.State())

	// When: syncing at version 2
	output, err = execute(t, "sync", "--config", cfgPath, "--plain")

	// Then: the index is recreated and reloaded
	require.NoError(t, err)
	assert.Contains(t, output, "Outcome: recreated")
	assert.Contains(t, output, "Complete: 2 documents")
}
