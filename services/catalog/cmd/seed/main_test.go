package main

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/utafrali/storefront/pkg/auth"
)

type fakeCatalog struct {
	mu      sync.Mutex
	batches [][]map[string]any
	tokens  []string
	fail    bool
}

func (f *fakeCatalog) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if r.URL.Path != "/api/products/bulk-insert" || r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	f.tokens = append(f.tokens, strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer "))
	if f.fail {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = io.WriteString(w, `{"code":"VALIDATION_ERROR","message":"field '[0].brand' is required"}`)
		return
	}
	var batch []map[string]any
	_ = json.NewDecoder(r.Body).Decode(&batch)
	f.batches = append(f.batches, batch)
	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(map[string]any{"message": "ok", "data": batch})
}

func testConfig(url string) config {
	return config{
		CatalogURL: url,
		SeedFile:   "testdata/products.json",
		BatchSize:  2,
		SeedToken:  "static-token",
	}
}

func discard() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func TestRun_InsertsInBatches(t *testing.T) {
	fc := &fakeCatalog{}
	srv := httptest.NewServer(fc)
	defer srv.Close()

	n, err := run(context.Background(), testConfig(srv.URL), discard())

	require.NoError(t, err)
	assert.Equal(t, 3, n)
	require.Len(t, fc.batches, 2)
	assert.Len(t, fc.batches[0], 2)
	assert.Len(t, fc.batches[1], 1)
	assert.Equal(t, "Cannon EOS 80D DSLR Camera", fc.batches[1][0]["name"])
	assert.Equal(t, []string{"static-token", "static-token"}, fc.tokens)
}

func TestRun_StopsOnRejectedBatch(t *testing.T) {
	fc := &fakeCatalog{fail: true}
	srv := httptest.NewServer(fc)
	defer srv.Close()

	n, err := run(context.Background(), testConfig(srv.URL), discard())

	require.Error(t, err)
	assert.Equal(t, 0, n)
	assert.Contains(t, err.Error(), "field '[0].brand' is required")
}

func TestRun_MissingFile(t *testing.T) {
	cfg := testConfig("http://unused")
	cfg.SeedFile = "testdata/missing.json"

	_, err := run(context.Background(), cfg, discard())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read seed file")
}

func TestAdminToken_MintedFromSecret(t *testing.T) {
	token, err := adminToken(config{JWTSecret: "s3cr3t"})
	require.NoError(t, err)

	claims, err := auth.NewJWTManager("s3cr3t", 0, 0).ValidateAccessToken(token)
	require.NoError(t, err)
	assert.True(t, claims.IsAdmin)
	assert.Equal(t, "seed-admin", claims.UserID)
}

func TestConfigValidate(t *testing.T) {
	assert.Error(t, (&config{CatalogURL: "x", BatchSize: 1}).Validate())
	assert.Error(t, (&config{CatalogURL: "x", SeedToken: "t"}).Validate())
	assert.NoError(t, (&config{CatalogURL: "x", SeedToken: "t", BatchSize: 1}).Validate())
}
