package core

import (
	"context"
	"testing"
)

func TestRefreshProjectionsExposesLatestVersions(t *testing.T) {
	svc, store := newMemoryService(t)
	ctx := context.Background()

	for _, version := range []string{"2026-01-01T000000.000000Z", "2026-02-01T000000.000000Z"} {
		bundle := fetchedBundle(metadataFile("f-1", version, "donor_organism", `"organ":"brain"`))
		if err := svc.IngestBundle(ctx, "b-1", version, bundle); err != nil {
			t.Fatalf("ingest %s: %v", version, err)
		}
	}
	if err := svc.RefreshProjections(ctx); err != nil {
		t.Fatalf("refresh projections: %v", err)
	}

	bundle, ok, err := store.LatestBundle(ctx, "b-1")
	if err != nil || !ok {
		t.Fatalf("latest bundle: ok=%v err=%v", ok, err)
	}
	if bundle.Version != "2026-02-01T000000.000000Z" {
		t.Fatalf("unexpected latest bundle version %s", bundle.Version)
	}
	file, ok, err := store.LatestFile(ctx, "f-1")
	if err != nil || !ok {
		t.Fatalf("latest file: ok=%v err=%v", ok, err)
	}
	if file.Version != "2026-02-01T000000.000000Z" {
		t.Fatalf("unexpected latest file version %s", file.Version)
	}
}

func TestSchemaCatalogCache(t *testing.T) {
	c := newSchemaCatalog()
	if c.has("donor_organism") {
		t.Fatalf("empty catalog must miss")
	}
	c.remember([]string{"donor_organism", "links"})
	if !c.has("donor_organism") || !c.has("links") {
		t.Fatalf("remembered types must hit")
	}
	c.remember(nil)
	if c.has("cell_suspension") {
		t.Fatalf("unknown type must miss")
	}
}

func TestHandleBundleEventWithoutFetcher(t *testing.T) {
	svc, _ := newMemoryService(t)
	if err := svc.HandleBundleEvent(context.Background(), BundleEvent{BundleUUID: "b-1", BundleVersion: "v1"}); err == nil {
		t.Fatalf("expected error when no fetcher is configured")
	}
}
