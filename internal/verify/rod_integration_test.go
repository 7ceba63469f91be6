//go:build integration

package verify

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ascbridge/internal/testutil"
)

func TestRodDriverAgainstFixture(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(testutil.IndexHTML))
	})
	mux.HandleFunc("/app.js", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/javascript; charset=utf-8")
		_, _ = w.Write([]byte(testutil.AppJS))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	s := NewSession(&RodDriver{Headless: true, NoSandbox: true})
	for _, modern := range []bool{true, false} {
		ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
		v, err := s.Verify(ctx, srv.URL+"/", modern)
		cancel()
		require.NoError(t, err)
		assert.True(t, v.Passed, "modern=%t: %s", modern, v)
		assert.Equal(t, OracleLine(modern), v.Line)
	}
}
