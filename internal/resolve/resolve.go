// Package resolve maps legacy guids to destination note ids through the
// (title, created) pair that survives import. The join is exact-match only
// and never breaks ties: more than one destination match is Ambiguous.
package resolve

import (
	"fmt"
	"sort"
	"strings"

	"github.com/lherron/relink/internal/domain"
	"github.com/lherron/relink/internal/extract"
	"github.com/lherron/relink/internal/legacy"
)

// Kind classifies a resolution
type Kind int

const (
	KindNotFound Kind = iota
	KindUnique
	KindAmbiguous
)

func (k Kind) String() string {
	switch k {
	case KindUnique:
		return "unique"
	case KindAmbiguous:
		return "ambiguous"
	default:
		return "not_found"
	}
}

// Resolution is the outcome of resolving one candidate.
// DestID and Title are set only for KindUnique; Candidates only for KindAmbiguous.
type Resolution struct {
	Kind       Kind
	DestID     string
	Title      string
	Candidates []string
	Legacy     *domain.LegacyNote
}

// Unique returns a unique resolution
func Unique(destID, title string) Resolution {
	return Resolution{Kind: KindUnique, DestID: destID, Title: title}
}

// NotFound returns an unresolved resolution
func NotFound() Resolution {
	return Resolution{Kind: KindNotFound}
}

// Ambiguous returns a resolution carrying every matching destination id
func Ambiguous(ids ...string) Resolution {
	sorted := append([]string(nil), ids...)
	sort.Strings(sorted)
	return Resolution{Kind: KindAmbiguous, Candidates: sorted}
}

// Reason describes a failed resolution for log output
func (r Resolution) Reason() string {
	switch r.Kind {
	case KindUnique:
		return ""
	case KindAmbiguous:
		return fmt.Sprintf("%d destination notes share title and creation time: %s",
			len(r.Candidates), strings.Join(r.Candidates, ", "))
	default:
		if r.Legacy == nil {
			return "guid not found in source notes"
		}
		return fmt.Sprintf("no destination note with title %q created %d", r.Legacy.Title, r.Legacy.CreatedAt)
	}
}

// Resolver performs the two-hop join against a fixed legacy index and
// destination catalog. It is read-only after New.
type Resolver struct {
	index   *legacy.Index
	catalog map[domain.TitleKey][]domain.DestinationNote
}

// New builds a resolver. The catalog is grouped by (title, created) once;
// a note listed more than once counts as one match.
func New(index *legacy.Index, catalog []domain.DestinationNote) *Resolver {
	grouped := make(map[domain.TitleKey][]domain.DestinationNote, len(catalog))
	seen := make(map[string]bool, len(catalog))
	for _, n := range catalog {
		if seen[n.ID] {
			continue
		}
		seen[n.ID] = true
		grouped[n.Key()] = append(grouped[n.Key()], n)
	}
	return &Resolver{index: index, catalog: grouped}
}

// Resolve resolves a candidate's guid to a destination note
func (r *Resolver) Resolve(c extract.Candidate) Resolution {
	return r.ResolveGUID(c.GUID)
}

// ResolveGUID performs the join for a bare guid
func (r *Resolver) ResolveGUID(guid string) Resolution {
	src, ok := r.index.LookupByID(guid)
	if !ok {
		return NotFound()
	}

	var res Resolution
	matches := r.catalog[src.Key()]
	switch len(matches) {
	case 0:
		res = NotFound()
	case 1:
		res = Unique(matches[0].ID, matches[0].Title)
	default:
		ids := make([]string, 0, len(matches))
		for _, m := range matches {
			ids = append(ids, m.ID)
		}
		res = Ambiguous(ids...)
	}
	res.Legacy = &src
	return res
}
