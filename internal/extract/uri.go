package extract

import (
	"fmt"
	"strings"
)

const (
	// DefaultScheme is the URI scheme of legacy internal links
	DefaultScheme = "evernote"

	// DefaultSegment is the zero-based index of the note guid after splitting
	// scheme://shard/notebook/notebook/note/note on '/'
	DefaultSegment = 6
)

// ParseLegacyURI extracts the note guid from a legacy link URI.
// The guid is the segment-th element of the URI split on '/'.
func ParseLegacyURI(uri, scheme string, segment int) (string, error) {
	guid, merr := parseLegacyURI(uri, scheme, segment)
	if merr != nil {
		return "", merr
	}
	return guid, nil
}

func parseLegacyURI(uri, scheme string, segment int) (string, *MalformedLinkError) {
	if !strings.HasPrefix(uri, scheme+"://") {
		return "", &MalformedLinkError{URI: uri, Reason: fmt.Sprintf("scheme is not %s", scheme)}
	}

	parts := strings.Split(uri, "/")
	if len(parts) <= segment {
		return "", &MalformedLinkError{
			URI:    uri,
			Reason: fmt.Sprintf("guid segment %d missing, uri has %d segments", segment, len(parts)),
		}
	}

	guid := strings.TrimSpace(parts[segment])
	if guid == "" {
		return "", &MalformedLinkError{URI: uri, Reason: fmt.Sprintf("guid segment %d is empty", segment)}
	}

	return guid, nil
}
