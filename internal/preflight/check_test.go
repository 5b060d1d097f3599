package preflight

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/claimsync/internal/claims"
	"github.com/Aman-CERP/claimsync/internal/claims/claimstest"
	"github.com/Aman-CERP/claimsync/internal/searchindex"
)

func TestCheckStatus_String(t *testing.T) {
	tests := []struct {
		status CheckStatus
		want   string
	}{
		{StatusPass, "PASS"},
		{StatusWarn, "WARN"},
		{StatusFail, "FAIL"},
		{CheckStatus(9), "UNKNOWN"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.status.String())
		})
	}
}

func TestCheckResult_JSONUsesStatusName(t *testing.T) {
	// Given: a failed result
	r := CheckResult{Name: "claim_store", Status: StatusFail, Required: true}

	// When: encoding it
	data, err := json.Marshal(r)

	// Then: the status is spelled out
	require.NoError(t, err)
	assert.Contains(t, string(data), `"status":"FAIL"`)
}

func TestCheckResult_IsCritical(t *testing.T) {
	tests := []struct {
		name     string
		result   CheckResult
		expected bool
	}{
		{"required pass is not critical", CheckResult{Status: StatusPass, Required: true}, false},
		{"required fail is critical", CheckResult{Status: StatusFail, Required: true}, true},
		{"optional fail is not critical", CheckResult{Status: StatusFail, Required: false}, false},
		{"required warn is not critical", CheckResult{Status: StatusWarn, Required: true}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.result.IsCritical())
		})
	}
}

func TestChecker_NewWithOptions(t *testing.T) {
	// Given: custom options
	buf := &bytes.Buffer{}
	checker := New(
		WithVerbose(true),
		WithTimeout(time.Second),
		WithOutput(buf),
	)

	// Then: options are applied
	assert.True(t, checker.verbose)
	assert.Equal(t, time.Second, checker.timeout)
	assert.Equal(t, buf, checker.output)
}

func TestChecker_HasCriticalFailures(t *testing.T) {
	checker := New()

	tests := []struct {
		name     string
		results  []CheckResult
		expected bool
	}{
		{"no results", nil, false},
		{"all pass", []CheckResult{{Status: StatusPass, Required: true}}, false},
		{"warning only", []CheckResult{{Status: StatusPass, Required: true}, {Status: StatusWarn}}, false},
		{"optional failure", []CheckResult{{Status: StatusFail, Required: false}}, false},
		{"required failure", []CheckResult{{Status: StatusPass, Required: true}, {Status: StatusFail, Required: true}}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, checker.HasCriticalFailures(tt.results))
		})
	}
}

func TestChecker_SummaryStatus(t *testing.T) {
	checker := New()

	tests := []struct {
		name     string
		results  []CheckResult
		expected string
	}{
		{"all pass", []CheckResult{{Status: StatusPass}, {Status: StatusPass}}, "ready"},
		{"with warnings", []CheckResult{{Status: StatusPass}, {Status: StatusWarn}}, "ready_with_warnings"},
		{"with critical failure", []CheckResult{{Status: StatusPass}, {Status: StatusFail, Required: true}}, "failed"},
		{"with optional failure", []CheckResult{{Status: StatusPass}, {Status: StatusFail}}, "ready_with_warnings"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, checker.SummaryStatus(tt.results))
		})
	}
}

func TestChecker_CheckWritePermissions_CreatesDir(t *testing.T) {
	// Given: a data directory that does not exist yet
	dir := filepath.Join(t.TempDir(), "data")

	// When: checking write permissions
	result := New().CheckWritePermissions(dir)

	// Then: it passes, creates the dir and leaves no probe file behind
	assert.Equal(t, StatusPass, result.Status)
	assert.True(t, result.Required)
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestChecker_CheckWritePermissions_ReadOnly(t *testing.T) {
	if os.Getuid() == 0 {
		t.Skip("root can write anywhere")
	}

	// Given: a read-only directory
	readOnlyDir := filepath.Join(t.TempDir(), "readonly")
	require.NoError(t, os.Mkdir(readOnlyDir, 0o555))
	defer func() { _ = os.Chmod(readOnlyDir, 0o755) }()

	// When: checking write permissions
	result := New().CheckWritePermissions(readOnlyDir)

	// Then: fails
	assert.Equal(t, StatusFail, result.Status)
	assert.Contains(t, result.Message, "permission denied")
}

func TestChecker_CheckStore(t *testing.T) {
	t.Run("opens and closes", func(t *testing.T) {
		// Given: a working store
		store := claimstest.Generate(3)

		// When: checking it
		result := New().CheckStore(context.Background(), store.Opener())

		// Then: it passes and the store is closed again
		assert.Equal(t, StatusPass, result.Status)
		assert.Equal(t, 1, store.Closed())
		assert.Zero(t, store.Reads())
	})

	t.Run("open fails", func(t *testing.T) {
		// Given: a store that cannot be opened
		opener := claims.OpenerFunc(func(context.Context) (claims.Store, error) {
			return nil, errors.New("no such directory")
		})

		// When: checking it
		result := New().CheckStore(context.Background(), opener)

		// Then: it is a critical failure
		assert.True(t, result.IsCritical())
		assert.Contains(t, result.Message, "no such directory")
	})
}

func TestChecker_CheckSearchEngine(t *testing.T) {
	t.Run("healthy", func(t *testing.T) {
		// Given: a reachable engine
		engine := searchindex.NewMemoryEngine()

		// When: checking it
		result := New().CheckSearchEngine(context.Background(), engine)

		// Then: it passes and the connection is closed
		assert.Equal(t, StatusPass, result.Status)
		assert.Equal(t, 1, engine.Closes())
	})

	t.Run("unreachable", func(t *testing.T) {
		// Given: an engine that refuses connections
		connector := searchindex.ConnectorFunc(func(context.Context) (searchindex.Engine, error) {
			return nil, errors.New("connection refused")
		})

		// When: checking it
		result := New().CheckSearchEngine(context.Background(), connector)

		// Then: it is a critical failure
		assert.True(t, result.IsCritical())
		assert.Contains(t, result.Message, "connection refused")
	})
}

func TestChecker_RunAll_ReturnsAllChecks(t *testing.T) {
	// Given: a data dir, a store and an engine
	target := Target{
		DataDir: t.TempDir(),
		Store:   claimstest.Generate(1).Opener(),
		Search:  searchindex.NewMemoryEngine(),
	}

	// When: running all checks
	results := New().RunAll(context.Background(), target)

	// Then: every check ran
	names := make(map[string]bool)
	for _, r := range results {
		names[r.Name] = true
	}
	for _, name := range []string{"write_permissions", "disk_space", "file_descriptors", "claim_store", "search_engine"} {
		assert.True(t, names[name], "%s check missing", name)
	}
}

func TestChecker_RunAll_SkipsMissingTargets(t *testing.T) {
	// Given: only a data dir
	results := New().RunAll(context.Background(), Target{DataDir: t.TempDir()})

	// Then: only the local checks ran
	assert.Len(t, results, 3)
}

func TestChecker_PrintResults(t *testing.T) {
	// Given: some check results
	results := []CheckResult{
		{Name: "disk_space", Status: StatusPass, Message: "50 GB free"},
		{Name: "file_descriptors", Status: StatusWarn, Message: "256 (minimum: 1024)", Details: "Run 'ulimit -n 10240'"},
		{Name: "search_engine", Status: StatusFail, Message: "connection refused", Required: true},
	}
	buf := &bytes.Buffer{}
	checker := New(WithOutput(buf), WithVerbose(true))

	// When: printing results
	checker.PrintResults(results)

	// Then: output contains formatted results and the summary
	output := buf.String()
	assert.Contains(t, output, "[PASS] disk_space")
	assert.Contains(t, output, "[WARN] file_descriptors")
	assert.Contains(t, output, "ulimit -n 10240")
	assert.Contains(t, output, "[FAIL] search_engine")
	assert.Contains(t, output, "Status: FAILED")
	assert.Contains(t, output, "1 error(s):")
	assert.Contains(t, output, "1 warning(s):")
}

func TestChecker_CheckDiskSpace(t *testing.T) {
	t.Run("volumes on one filesystem are reported once", func(t *testing.T) {
		// Given: a data dir and a search root below it that does not exist yet
		dir := t.TempDir()

		// When: checking both
		result := New().CheckDiskSpace(
			Volume{Label: "data", Path: dir},
			Volume{Label: "search", Path: filepath.Join(dir, "search")})

		// Then: the shared filesystem is measured once, without creating anything
		assert.Equal(t, "disk_space", result.Name)
		assert.True(t, result.Required)
		assert.Contains(t, result.Message, "data: ")
		assert.NotContains(t, result.Message, "search: ")
		assert.Contains(t, result.Message, "minimum: 100 MB")
		_, err := os.Stat(filepath.Join(dir, "search"))
		assert.True(t, os.IsNotExist(err))
	})

	t.Run("no paths", func(t *testing.T) {
		result := New().CheckDiskSpace(Volume{Label: "search"})

		assert.Equal(t, StatusWarn, result.Status)
		assert.False(t, result.IsCritical())
	})
}

func TestExistingAncestor(t *testing.T) {
	dir := t.TempDir()

	assert.Equal(t, dir, existingAncestor(dir))
	assert.Equal(t, dir, existingAncestor(filepath.Join(dir, "a", "b", "c")))
}

func TestFormatBytes(t *testing.T) {
	tests := []struct {
		in   uint64
		want string
	}{
		{512, "512 bytes"},
		{2048, "2.0 KB"},
		{150 * 1024 * 1024, "150.0 MB"},
		{3 * 1024 * 1024 * 1024, "3.0 GB"},
		{5 * 1024 * 1024 * 1024 * 1024, "5.0 TB"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, formatBytes(tt.in))
	}
}
