package elasticx

import (
	"regexp"
	"strings"
)

// IndexName is the name of a concrete index. Versioned indexes are named
// "{logical}-{fingerprint}" and published under the logical name as an alias.
type IndexName string

const versionSeparator = "-"

var fingerprintRegexp = regexp.MustCompile(`^[0-9a-f]{32}$`)

func VersionedIndexName(logical, fingerprint string) IndexName {
	return IndexName(logical + versionSeparator + fingerprint)
}

// FingerprintFor returns the fingerprint suffix of the index when it is a version of logical.
func (i IndexName) FingerprintFor(logical string) (string, bool) {
	prefix := logical + versionSeparator
	if !strings.HasPrefix(string(i), prefix) || len(i) == len(prefix) {
		return "", false
	}
	return string(i)[len(prefix):], true
}

// IsGeneratedVersionOf reports whether the index is a version of logical whose
// suffix has the shape of a generated fingerprint.
func (i IndexName) IsGeneratedVersionOf(logical string) bool {
	fp, ok := i.FingerprintFor(logical)
	return ok && fingerprintRegexp.MatchString(fp)
}

func (i IndexName) String() string {
	return string(i)
}
