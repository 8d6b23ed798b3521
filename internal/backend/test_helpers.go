package backend

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/require"

	"github.com/kvirtanen/galleria/internal/httpclient"
)

// testBaseURL is the fake API root the mock transport answers for.
const testBaseURL = "https://api.example.test/rest/v1"

// setupMockClient creates a backend client whose transport is intercepted by
// httpmock. The mock is deactivated when the test finishes.
func setupMockClient(tb testing.TB) *Client {
	tb.Helper()

	httpc := httpclient.New(nil)
	httpmock.ActivateNonDefault(httpc.Underlying())

	client, err := NewClient(Config{
		BaseURL:           testBaseURL,
		APIKey:            "test-key",
		Timeout:           5 * time.Second,
		RequestsPerSecond: 1000, // fast for tests
	}, httpc, discardLogger(), nil)
	require.NoError(tb, err)

	if tt, ok := tb.(*testing.T); ok {
		tt.Cleanup(func() {
			httpmock.DeactivateAndReset()
			client.Close()
		})
	}

	return client
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
