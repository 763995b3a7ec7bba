package domain

import (
	"fmt"
	"strings"
)

// ValidateLegacyNote validates a record returned by the source store
func ValidateLegacyNote(n LegacyNote) error {
	if strings.TrimSpace(n.GUID) == "" {
		return fmt.Errorf("invalid legacy note: empty guid (title %q)", n.Title)
	}
	if strings.Contains(n.GUID, "/") {
		return fmt.Errorf("invalid legacy note: guid %q contains '/'", n.GUID)
	}
	if n.CreatedAt < 0 {
		return fmt.Errorf("invalid legacy note %s: negative created timestamp", n.GUID)
	}
	return nil
}

// ValidateDialect validates a markup_language value
func ValidateDialect(d Dialect) error {
	if !d.Known() {
		return fmt.Errorf("invalid dialect %d: must be one of: 1 (markdown), 2 (html)", int(d))
	}
	return nil
}
