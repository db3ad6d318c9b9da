package domain

import (
	"fmt"
	"strings"
)

// MakeFQID builds the fully-qualified identifier for one entity version.
// Versions are sortable timestamp strings, so FQIDs for the same uuid order
// chronologically under plain string comparison.
func MakeFQID(uuid, version string) string {
	return uuid + "." + version
}

// SplitFQID splits a fully-qualified identifier back into uuid and version.
// The uuid portion never contains a dot; everything after the first dot is
// the version (versions themselves may contain dots).
func SplitFQID(fqid string) (uuid, version string, err error) {
	i := strings.IndexByte(fqid, '.')
	if i <= 0 || i == len(fqid)-1 {
		return "", "", fmt.Errorf("malformed fqid %q", fqid)
	}
	return fqid[:i], fqid[i+1:], nil
}
