package app

import (
	"bytes"
	"context"
	"crypto/x509"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func run(t *testing.T, ctx context.Context, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	root := newRootCommand(zap.NewNop(), &out)
	root.SetArgs(args)
	err := root.ExecuteContext(ctx)
	return out.String(), err
}

func isolateEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{"CHOWSPACE_CONFIG", "CHOWSPACE_BACKEND_URL", "CHOWSPACE_MENU_PATH", tokenEnv, "PORT"} {
		t.Setenv(key, "")
	}
}

func TestVersion(t *testing.T) {
	isolateEnv(t)
	out, err := run(t, context.Background(), "version")
	require.NoError(t, err)
	assert.Contains(t, out, "chowspace version dev")
}

func TestMenuCommand(t *testing.T) {
	isolateEnv(t)
	out, err := run(t, context.Background(), "menu")
	require.NoError(t, err)
	assert.Contains(t, out, "jollof-rice")
	assert.Contains(t, out, "₦1,500.00")

	path := filepath.Join(t.TempDir(), "menu.yaml")
	require.NoError(t, os.WriteFile(path, []byte("products:\n  - id: zobo\n    name: Zobo\n    price: 350\n"), 0o600))
	t.Setenv("CHOWSPACE_MENU_PATH", path)

	out, err = run(t, context.Background(), "menu")
	require.NoError(t, err)
	assert.Contains(t, out, "Zobo")
	assert.NotContains(t, out, "jollof-rice")
}

func TestBadConfigFails(t *testing.T) {
	isolateEnv(t)
	_, err := run(t, context.Background(), "--config", filepath.Join(t.TempDir(), "missing.yaml"), "version")
	assert.Error(t, err)
}

func TestOrdersCommand(t *testing.T) {
	isolateEnv(t)
	today := time.Now().UTC().Format(time.RFC3339)
	var toggled, cleaned atomic.Bool
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/manager/orders", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		fmt.Fprintf(w, `{"orders":[{"_id":"64f0c2a1b9e3d4a5f6a7b8c9","status":"pending","paymentStatus":"paid","totalAmount":2200,
			"guestInfo":{"name":"Ada","phone":"0803"},"items":[{"name":"Peppered Chicken","quantity":1}],"createdAt":%q}]}`, today)
	})
	mux.HandleFunc("PUT /api/order/{id}", func(w http.ResponseWriter, r *http.Request) {
		toggled.Store(r.PathValue("id") == "64f0c2a1b9e3d4a5f6a7b8c9")
	})
	mux.HandleFunc("DELETE /api/cleanupPendingOrders", func(w http.ResponseWriter, r *http.Request) {
		cleaned.Store(true)
		w.WriteHeader(http.StatusNoContent)
	})
	backend := httptest.NewServer(mux)
	defer backend.Close()
	t.Setenv("CHOWSPACE_BACKEND_URL", backend.URL)

	_, err := run(t, context.Background(), "orders")
	assert.ErrorContains(t, err, "manager token")

	out, err := run(t, context.Background(), "orders", "--token", "secret")
	require.NoError(t, err)
	assert.Contains(t, out, "#A7B8C9")
	assert.Contains(t, out, "Peppered Chicken x1")

	t.Setenv(tokenEnv, "secret")
	out, err = run(t, context.Background(), "orders", "toggle", "64f0c2a1b9e3d4a5f6a7b8c9", "pending")
	require.NoError(t, err)
	assert.True(t, toggled.Load())
	assert.Contains(t, out, "marked as completed")

	_, err = run(t, context.Background(), "orders", "cleanup")
	require.NoError(t, err)
	assert.True(t, cleaned.Load())

	_, err = run(t, context.Background(), "orders", "--status", "cancelled")
	assert.Error(t, err)
}

func TestServeStopsWhenContextEnds(t *testing.T) {
	isolateEnv(t)
	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		_, err := run(t, ctx, "serve", "--port", "0")
		done <- err
	}()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("serve did not shut down")
	}
}

func TestGenerateCertificate(t *testing.T) {
	now := time.Date(2026, 10, 18, 12, 0, 0, 0, time.UTC)
	cert, err := generateCertificate("chowspace.example", now)
	require.NoError(t, err)
	require.NotEmpty(t, cert.Certificate)

	parsed, err := x509.ParseCertificate(cert.Certificate[0])
	require.NoError(t, err)
	assert.Equal(t, []string{"chowspace.example"}, parsed.DNSNames)
	assert.True(t, parsed.NotAfter.After(now.Add(89*24*time.Hour)))
}

func TestRedirectHandler(t *testing.T) {
	rec := httptest.NewRecorder()
	redirectHandler("chowspace.example").ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/menu?x=1", nil))
	assert.Equal(t, http.StatusPermanentRedirect, rec.Code)
	assert.Equal(t, "https://chowspace.example/api/menu?x=1", rec.Header().Get("Location"))
}
