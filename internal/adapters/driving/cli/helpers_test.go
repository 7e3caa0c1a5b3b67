package cli

import (
	"bytes"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/propfeed/internal/logger"
)

// stubUpstream serves the provider endpoints with a two-item feed.
type stubUpstream struct {
	*httptest.Server
	tokenStatus  atomic.Int32
	listingCalls atomic.Int32
}

func newStubUpstream(t *testing.T) *stubUpstream {
	t.Helper()
	s := &stubUpstream{}
	s.tokenStatus.Store(http.StatusOK)

	mux := http.NewServeMux()
	mux.HandleFunc("/oauth/token", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		status := int(s.tokenStatus.Load())
		w.WriteHeader(status)
		if status == http.StatusOK {
			_, _ = w.Write([]byte(`{"access_token": "tok", "token_type": "bearer", "expires_in": 3600}`))
			return
		}
		_, _ = w.Write([]byte(`{"error": "invalid_client"}`))
	})
	mux.HandleFunc("/v1/feeds/coastal/listings", func(w http.ResponseWriter, _ *http.Request) {
		s.listingCalls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"items": [
				{"id": "abc12345", "title": "Sea view flat", "price": 250000, "rooms": 3,
				 "operationType": "sell", "zone": "Centro", "isActive": true,
				 "images": [{"assetId": "img1"}]},
				{"id": "def67890", "title": "Garden house", "price": 1200, "operationType": "rent",
				 "images": [{"assetId": "img1"}]}
			],
			"total": 2, "page": 1, "pageSize": 50, "totalPages": 1,
			"includes": {"assets": [
				{"sys": {"id": "img1"}, "fields": {"title": "Front", "file": {"url": "//cdn.example/img1.jpg"}}}
			]}
		}`))
	})
	mux.HandleFunc("/v1/listings/", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"images": []}`))
	})
	mux.HandleFunc("/v1/assets/", func(w http.ResponseWriter, _ *http.Request) {
		http.NotFound(w, nil)
	})

	s.Server = httptest.NewServer(mux)
	t.Cleanup(s.Close)
	return s
}

// upstreamEnv returns a valid environment pointing at the stub.
func upstreamEnv(baseURL string) map[string]string {
	return map[string]string{
		"PROPFEED_UPSTREAM_BASE_URL":      baseURL,
		"PROPFEED_UPSTREAM_CLIENT_ID":     "client",
		"PROPFEED_UPSTREAM_CLIENT_SECRET": "s3cret",
		"PROPFEED_UPSTREAM_FEED_KEY":      "coastal",
		"PROPFEED_UPSTREAM_MAX_RETRIES":   "0",
	}
}

// setupCLITest points the CLI at a temp config dir and the given env and
// captures command output.
func setupCLITest(t *testing.T, env map[string]string) *bytes.Buffer {
	t.Helper()
	oldDir, oldEnv := configDir, lookupEnv
	configDir = t.TempDir()
	lookupEnv = func(key string) (string, bool) {
		v, ok := env[key]
		return v, ok
	}
	logger.SetOutput(io.Discard)
	resetContexts(rootCmd)

	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)

	t.Cleanup(func() {
		configDir, lookupEnv = oldDir, oldEnv
		rootCmd.SetArgs(nil)
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
		_ = fetchCmd.Flags().Set("json", "false")
		_ = historyCmd.Flags().Set("limit", "20")
		_ = serveCmd.Flags().Set("addr", "")
		resetContexts(rootCmd)
		logger.SetOutput(os.Stderr)
	})
	return buf
}

// resetContexts clears contexts cobra keeps from earlier executions so
// each test's ExecuteContext reaches the subcommand.
func resetContexts(cmd *cobra.Command) {
	cmd.SetContext(nil) //nolint:staticcheck
	for _, sub := range cmd.Commands() {
		resetContexts(sub)
	}
}

func lines(s string) []string {
	return strings.Split(strings.TrimSpace(s), "\n")
}
