package normalize

import (
	"strings"
)

var remoteKeywords = []string{"remote", "anywhere", "work from home", "wfh", "distributed", "virtual", "telecommute"}

// NormalizeLocation trims label prefixes and repeated comma-separated parts
func NormalizeLocation(loc string) string {
	loc = CleanText(loc)
	for _, prefix := range []string{"Location:", "Locations:", "LOCATION:", "LOCATIONS:"} {
		loc = strings.TrimPrefix(loc, prefix)
	}
	loc = strings.Trim(strings.TrimSpace(loc), ",;|")

	return strings.Join(DedupeStrings(strings.Split(loc, ",")), ", ")
}

// IsRemoteLocation reports whether a location string advertises remote work
func IsRemoteLocation(loc string) bool {
	return containsAny(strings.ToLower(loc), remoteKeywords...)
}

// LocationKey is the comparison form used by deduplication
func LocationKey(loc string) string {
	return strings.ToLower(FoldAccents(NormalizeLocation(loc)))
}
