package ledger

import (
	"fmt"
	"strconv"
	"strings"
)

// A persisted ledger is readable by this build when it shares the major
// format version (1.x reads 1.y, never 2.x).
func compatibleFormat(documentVersion string) (bool, error) {
	docMajor, err := extractMajor(documentVersion)
	if err != nil {
		return false, fmt.Errorf("invalid document version: %v", err)
	}

	ownMajor, err := extractMajor(FormatVersion)
	if err != nil {
		return false, fmt.Errorf("invalid format version: %v", err)
	}

	return docMajor == ownMajor, nil
}

func extractMajor(version string) (int, error) {
	if version == "" {
		return 0, fmt.Errorf("empty version string")
	}

	parts := strings.Split(version, ".")
	major, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, fmt.Errorf("invalid major version: %v", err)
	}

	if major < 0 {
		return 0, fmt.Errorf("major version cannot be negative")
	}

	return major, nil
}

// checkFormat wraps an incompatible or unparsable version into the corrupt
// classification so callers treat it like any other unreadable ledger.
func checkFormat(documentVersion string) error {
	ok, err := compatibleFormat(documentVersion)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	if !ok {
		return fmt.Errorf("%w: unsupported format version %q", ErrCorrupt, documentVersion)
	}
	return nil
}
