package core

import (
	"context"
	"fmt"

	"lineagecore/internal/metrics"
	"lineagecore/pkg/domain"
)

// DropBundle removes one bundle version and any file versions that become
// orphaned by its removal. Link removal, the shared-file check, and the
// deletes all happen in a single transaction so a concurrent ingest cannot
// observe a file row without its bundle or lose a file that is still
// referenced. Process nodes and derived edges survive deletion; lineage is
// historical fact. The whole operation is a no-op when the bundle was never
// ingested or was already dropped.
func (s *Service) DropBundle(ctx context.Context, bundleUUID, bundleVersion string) error {
	bundleFQID := domain.MakeFQID(bundleUUID, bundleVersion)
	err := s.store.RunInTransaction(ctx, func(tx Tx) error {
		fileFQIDs, err := tx.UnlinkBundle(bundleFQID)
		if err != nil {
			return err
		}
		orphans := fileFQIDs
		if len(fileFQIDs) > 0 {
			remaining, err := tx.BundlesForFiles(fileFQIDs)
			if err != nil {
				return err
			}
			stillLinked := make(map[string]bool, len(remaining))
			for _, link := range remaining {
				stillLinked[link.FileFQID] = true
			}
			orphans = orphans[:0]
			for _, fqid := range fileFQIDs {
				if !stillLinked[fqid] {
					orphans = append(orphans, fqid)
				}
			}
		}
		if err := tx.DeleteFiles(orphans); err != nil {
			return err
		}
		return tx.DeleteBundles([]string{bundleFQID})
	})
	if err != nil {
		return fmt.Errorf("drop bundle %s: %w", bundleFQID, err)
	}
	metrics.BundlesDropped.Inc()
	s.log.Infow("dropped bundle", "bundle_fqid", bundleFQID)
	return nil
}
