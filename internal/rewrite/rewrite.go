// Package rewrite replaces legacy links with destination links and drives
// the per-note read, rewrite and write cycle.
package rewrite

import (
	"fmt"
	"sort"
	"strings"

	"golang.org/x/net/html"

	"github.com/lherron/relink/internal/domain"
	"github.com/lherron/relink/internal/extract"
	"github.com/lherron/relink/internal/resolve"
)

// Format builds destination link URIs per dialect
type Format struct {
	LightweightPrefix string
	TaggedPrefix      string
}

// DefaultFormat links to notes the way the destination's own editor does
func DefaultFormat() Format {
	return Format{LightweightPrefix: ":/", TaggedPrefix: "joplin://"}
}

// Link returns the destination URI for a note id
func (f Format) Link(d domain.Dialect, destID string) string {
	if d == domain.DialectTagged {
		return f.TaggedPrefix + destID
	}
	return f.LightweightPrefix + destID
}

// Edit pairs a candidate with its resolution
type Edit struct {
	Candidate  extract.Candidate
	Resolution resolve.Resolution
}

// Rewrite returns body with one candidate replaced. The body is returned
// unchanged when the resolution is not unique or when the candidate span no
// longer holds the candidate's raw text, which makes repeated application a
// no-op.
func Rewrite(body string, d domain.Dialect, c extract.Candidate, res resolve.Resolution, f Format) (string, error) {
	if err := extract.CheckDialect(d); err != nil {
		return body, err
	}
	if res.Kind != resolve.KindUnique {
		return body, nil
	}
	if c.Start < 0 || c.End > len(body) || c.Start > c.End || body[c.Start:c.End] != c.Raw {
		return body, nil
	}

	var replacement string
	switch d {
	case domain.DialectLightweight:
		replacement = "[" + c.Text + "](" + f.Link(d, res.DestID) + ")"
	case domain.DialectTagged:
		tag, err := rewriteAnchor(c.Raw, f.Link(d, res.DestID), res.Title)
		if err != nil {
			return body, err
		}
		replacement = tag
	}

	return body[:c.Start] + replacement + body[c.End:], nil
}

// Apply performs every edit against body, last span first so earlier
// offsets stay valid. It returns the new body and the number of edits that
// changed it.
func Apply(body string, d domain.Dialect, edits []Edit, f Format) (string, int, error) {
	ordered := make([]Edit, len(edits))
	copy(ordered, edits)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Candidate.Start > ordered[j].Candidate.Start
	})

	applied := 0
	for _, e := range ordered {
		next, err := Rewrite(body, d, e.Candidate, e.Resolution, f)
		if err != nil {
			return body, applied, err
		}
		if next != body {
			applied++
		}
		body = next
	}
	return body, applied, nil
}

// rewriteAnchor sets the href and title of an <a> start tag. Only those
// attribute values change; every other byte of the tag is kept.
func rewriteAnchor(raw, href, title string) (string, error) {
	if len(raw) < 2 || raw[0] != '<' {
		return "", fmt.Errorf("not an anchor start tag: %q", raw)
	}
	attrs, end := scanAttrs(raw)

	var splices []splice
	set := func(key, val string) {
		quoted := `"` + html.EscapeString(val) + `"`
		for _, a := range attrs {
			if a.key != key {
				continue
			}
			if a.valStart < 0 {
				splices = append(splices, splice{a.keyEnd, a.keyEnd, "=" + quoted})
			} else {
				splices = append(splices, splice{a.valStart, a.valEnd, quoted})
			}
			return
		}
		at := end
		if len(attrs) > 0 {
			at = attrs[len(attrs)-1].end()
		}
		splices = append(splices, splice{at, at, " " + key + "=" + quoted})
	}

	set("href", href)
	if title != "" {
		set("title", title)
	}

	sort.Slice(splices, func(i, j int) bool { return splices[i].start > splices[j].start })
	out := raw
	for _, sp := range splices {
		out = out[:sp.start] + sp.text + out[sp.end:]
	}
	return out, nil
}

type splice struct {
	start, end int
	text       string
}

// attrSpan locates one attribute inside a raw start tag. valStart is -1
// for a bare attribute; otherwise the value span includes its quotes.
type attrSpan struct {
	key              string
	keyEnd           int
	valStart, valEnd int
}

func (a attrSpan) end() int {
	if a.valStart < 0 {
		return a.keyEnd
	}
	return a.valEnd
}

// scanAttrs walks a start tag the way an HTML tokenizer does and returns
// its attributes in order, plus the offset of the closing "/>" or ">".
func scanAttrs(raw string) ([]attrSpan, int) {
	i := 1
	for i < len(raw) && !isSpace(raw[i]) && raw[i] != '/' && raw[i] != '>' {
		i++
	}

	var attrs []attrSpan
	for {
		for i < len(raw) && (isSpace(raw[i]) || (raw[i] == '/' && i+1 < len(raw) && raw[i+1] != '>')) {
			i++
		}
		if i >= len(raw) || raw[i] == '>' || raw[i] == '/' {
			return attrs, i
		}

		keyStart := i
		i++
		for i < len(raw) && !isSpace(raw[i]) && raw[i] != '=' && raw[i] != '>' && raw[i] != '/' {
			i++
		}
		a := attrSpan{key: strings.ToLower(raw[keyStart:i]), keyEnd: i, valStart: -1}

		j := i
		for j < len(raw) && isSpace(raw[j]) {
			j++
		}
		if j < len(raw) && raw[j] == '=' {
			j++
			for j < len(raw) && isSpace(raw[j]) {
				j++
			}
			a.valStart = j
			switch {
			case j < len(raw) && (raw[j] == '"' || raw[j] == '\''):
				if k := strings.IndexByte(raw[j+1:], raw[j]); k >= 0 {
					j += k + 2
				} else {
					j = len(raw)
				}
			default:
				for j < len(raw) && !isSpace(raw[j]) && raw[j] != '>' {
					j++
				}
			}
			a.valEnd = j
			i = j
		}
		attrs = append(attrs, a)
	}
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r' || c == '\f'
}
