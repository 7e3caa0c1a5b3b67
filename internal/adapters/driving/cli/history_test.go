package cli

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHistoryCmd_EmptyMemoryBackend(t *testing.T) {
	buf := setupCLITest(t, map[string]string{})

	rootCmd.SetArgs([]string{"history"})
	require.NoError(t, rootCmd.Execute())

	assert.Contains(t, buf.String(), "No runs recorded.")
}

func TestHistoryCmd_SQLiteKeepsRuns(t *testing.T) {
	up := newStubUpstream(t)
	env := upstreamEnv(up.URL)
	env["PROPFEED_HISTORY_BACKEND"] = "sqlite"
	buf := setupCLITest(t, env)

	rootCmd.SetArgs([]string{"fetch"})
	require.NoError(t, rootCmd.Execute(), buf.String())

	up.tokenStatus.Store(http.StatusUnauthorized)
	rootCmd.SetArgs([]string{"fetch"})
	require.Error(t, rootCmd.Execute())

	buf.Reset()
	rootCmd.SetArgs([]string{"history", "--limit", "5"})
	require.NoError(t, rootCmd.Execute())

	out := lines(buf.String())
	require.Len(t, out, 3, buf.String())
	assert.Contains(t, out[0], "STARTED")
	assert.Contains(t, out[1], "failed")
	assert.Contains(t, out[1], "credential")
	assert.Contains(t, out[2], "ok")
}

func TestHistoryCmd_Limit(t *testing.T) {
	up := newStubUpstream(t)
	env := upstreamEnv(up.URL)
	env["PROPFEED_HISTORY_BACKEND"] = "sqlite"
	buf := setupCLITest(t, env)

	for i := 0; i < 3; i++ {
		rootCmd.SetArgs([]string{"fetch"})
		require.NoError(t, rootCmd.Execute())
	}

	buf.Reset()
	rootCmd.SetArgs([]string{"history", "-n", "2"})
	require.NoError(t, rootCmd.Execute())

	assert.Len(t, lines(buf.String()), 3)
}
