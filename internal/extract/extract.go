// Package extract locates legacy internal links inside note bodies.
//
// Two dialects are supported: lightweight markup, where links look like
// [text](scheme://...), and tagged markup, where links are <a href="scheme://...">
// elements. Extraction keeps no state between calls, so the same body always
// yields the same candidates.
package extract

import (
	"iter"
	"regexp"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/lherron/relink/internal/domain"
)

// Candidate is a legacy link found in a body.
// Start and End delimit Raw in the body: the whole [text](uri) for lightweight
// bodies, the <a ...> start tag for tagged bodies.
type Candidate struct {
	Raw   string
	URI   string
	GUID  string
	Text  string
	Start int
	End   int
}

// Options configures an Extractor
type Options struct {
	Scheme  string
	Segment int
}

// Extractor finds legacy links for one scheme
type Extractor struct {
	scheme  string
	prefix  string
	segment int
	mdLink  *regexp.Regexp
}

// New creates an extractor. Zero options fall back to DefaultScheme and DefaultSegment.
func New(opts Options) *Extractor {
	if opts.Scheme == "" {
		opts.Scheme = DefaultScheme
	}
	if opts.Segment <= 0 {
		opts.Segment = DefaultSegment
	}
	prefix := opts.Scheme + "://"
	return &Extractor{
		scheme:  opts.Scheme,
		prefix:  prefix,
		segment: opts.Segment,
		mdLink:  regexp.MustCompile(`\[([^\]]+)\]\((` + regexp.QuoteMeta(prefix) + `[^)]+)\)`),
	}
}

// Scheme returns the legacy scheme this extractor matches
func (e *Extractor) Scheme() string {
	return e.scheme
}

// Extract returns the lazy sequence of candidates in body. Links whose URI
// cannot be parsed are yielded with a *MalformedLinkError and a zero Candidate.
// An unsupported dialect returns *UnknownDialectError.
func (e *Extractor) Extract(body string, dialect domain.Dialect) (iter.Seq2[Candidate, error], error) {
	switch dialect {
	case domain.DialectLightweight:
		return e.lightweight(body), nil
	case domain.DialectTagged:
		return e.tagged(body), nil
	default:
		return nil, CheckDialect(dialect)
	}
}

func (e *Extractor) lightweight(body string) iter.Seq2[Candidate, error] {
	return func(yield func(Candidate, error) bool) {
		pos := 0
		for pos < len(body) {
			loc := e.mdLink.FindStringSubmatchIndex(body[pos:])
			if loc == nil {
				return
			}
			start, end := pos+loc[0], pos+loc[1]
			text := body[pos+loc[2] : pos+loc[3]]
			uri := body[pos+loc[4] : pos+loc[5]]
			pos = end

			guid, merr := parseLegacyURI(uri, e.scheme, e.segment)
			if merr != nil {
				merr.Start = start
				if !yield(Candidate{}, merr) {
					return
				}
				continue
			}

			c := Candidate{
				Raw:   body[start:end],
				URI:   uri,
				GUID:  guid,
				Text:  text,
				Start: start,
				End:   end,
			}
			if !yield(c, nil) {
				return
			}
		}
	}
}

func (e *Extractor) tagged(body string) iter.Seq2[Candidate, error] {
	return func(yield func(Candidate, error) bool) {
		z := html.NewTokenizer(strings.NewReader(body))
		offset := 0
		for {
			tt := z.Next()
			if tt == html.ErrorToken {
				return
			}

			raw := string(z.Raw())
			start := offset
			offset += len(raw)

			if tt != html.StartTagToken && tt != html.SelfClosingTagToken {
				continue
			}
			tok := z.Token()
			if tok.DataAtom != atom.A {
				continue
			}

			href, ok := attr(tok, "href")
			if !ok || !strings.HasPrefix(href, e.prefix) {
				continue
			}

			guid, merr := parseLegacyURI(href, e.scheme, e.segment)
			if merr != nil {
				merr.Start = start
				if !yield(Candidate{}, merr) {
					return
				}
				continue
			}

			title, _ := attr(tok, "title")
			c := Candidate{
				Raw:   raw,
				URI:   href,
				GUID:  guid,
				Text:  title,
				Start: start,
				End:   offset,
			}
			if !yield(c, nil) {
				return
			}
		}
	}
}

// HasEnvelope reports whether a tagged body starts with the legacy <en-note> root
func HasEnvelope(body string) bool {
	return strings.HasPrefix(strings.TrimSpace(body), "<en-note")
}

func attr(tok html.Token, key string) (string, bool) {
	for _, a := range tok.Attr {
		if a.Namespace == "" && a.Key == key {
			return a.Val, true
		}
	}
	return "", false
}
