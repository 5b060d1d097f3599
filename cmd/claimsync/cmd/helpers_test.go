package cmd

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/claimsync/internal/claims"
)

// testEnv seeds a pebble store with n claims and writes a config that
// points a bleve index at the temp dir. It returns the config path.
func testEnv(t *testing.T, n int) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(dir, "xdg"))

	storePath := filepath.Join(dir, "claims")
	store, err := claims.OpenPebble(storePath, false, claims.Options{})
	require.NoError(t, err)
	for i := 1; i <= n; i++ {
		require.NoError(t, store.Put(&claims.Claim{
			ClaimID:   fmt.Sprintf("%040x", i),
			Name:      fmt.Sprintf("claim-%d", i),
			Height:    int64(i),
			ClaimType: "stream",
		}))
	}
	require.NoError(t, store.Close())

	cfg := fmt.Sprintf(`data_dir: %s
store:
  backend: pebble
  path: %s
search:
  backend: bleve
  path: %s
  index: claims
  version: 1
sync:
  batch_size: 10
  clients: 2
  progress_every: 0
logging:
  level: error
`, dir, storePath, filepath.Join(dir, "search"))

	cfgPath := filepath.Join(dir, "claimsync.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte(cfg), 0o644))
	return cfgPath
}

// execute runs the root command with args and returns what it printed.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}
