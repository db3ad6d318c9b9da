// Package blob selects a blob store implementation from process environment.
package blob

import (
	"context"
	"fmt"
	"os"

	"lineagecore/internal/infra/blob/core"
	"lineagecore/internal/infra/blob/fs"
	"lineagecore/internal/infra/blob/memory"
	"lineagecore/internal/infra/blob/s3"
)

// Store aliases core.Store for callers that only need the factory.
type Store = core.Store

// Open selects a blob store using environment variables.
//
//	LINEAGECORE_BLOB_DRIVER: fs|s3|memory (default fs)
//	LINEAGECORE_BLOB_FS_ROOT: directory root when driver=fs (default ./blobdata)
//	(S3 specific variables documented in s3.OpenFromEnv)
func Open(ctx context.Context) (Store, error) {
	driver := os.Getenv("LINEAGECORE_BLOB_DRIVER")
	if driver == "" {
		driver = string(core.DriverFilesystem)
	}
	switch core.Driver(driver) {
	case core.DriverFilesystem:
		return fs.New(os.Getenv("LINEAGECORE_BLOB_FS_ROOT"))
	case core.DriverS3:
		return s3.OpenFromEnv(ctx)
	case core.DriverMemory:
		return memory.New(), nil
	default:
		return nil, fmt.Errorf("unknown blob driver %s", driver)
	}
}
