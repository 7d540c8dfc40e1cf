package testsupport

import (
	"context"
	"fmt"
	"testing"

	"photosync/internal/assets"
	"photosync/internal/config"
)

// MustOpenStore opens an assets.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *assets.Store {
	t.Helper()

	store, err := assets.Open(cfg)
	if err != nil {
		t.Fatalf("assets.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// NewAsset inserts a pending asset with a generated filename for tests.
func NewAsset(t testing.TB, store *assets.Store, name string) *assets.Asset {
	t.Helper()

	asset, err := store.New(context.Background(), assets.NewAssetParams{
		Filename: fmt.Sprintf("%s.jpg", name),
		MimeType: "image/jpeg",
		Category: "Site",
	})
	if err != nil {
		t.Fatalf("store.New: %v", err)
	}
	return asset
}
