package testutil

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/lherron/relink/internal/domain"
)

// DestNote is a note held by FakeDestination
type DestNote struct {
	ID        string         `json:"id"`
	Title     string         `json:"title"`
	Body      string         `json:"body"`
	CreatedAt int64          `json:"created_time"`
	Dialect   domain.Dialect `json:"markup_language"`
}

// FakeDestination is an in-memory destination data API served over httptest.
// Requests must carry Token as the token query parameter.
type FakeDestination struct {
	Token string

	srv      *httptest.Server
	mu       sync.Mutex
	notes    map[string]*DestNote
	order    []string
	puts     int
	pingBody string
	failPut  map[string]bool
}

// NewFakeDestination starts a fake holding notes; it is closed on cleanup
func NewFakeDestination(t *testing.T, token string, notes ...DestNote) *FakeDestination {
	t.Helper()
	f := &FakeDestination{
		Token:    token,
		notes:    make(map[string]*DestNote, len(notes)),
		pingBody: "JoplinClipperServer",
		failPut:  map[string]bool{},
	}
	for _, n := range notes {
		f.notes[n.ID] = &n
		f.order = append(f.order, n.ID)
	}
	f.srv = httptest.NewServer(f.handler())
	t.Cleanup(f.srv.Close)
	return f
}

// URL is the base URL of the fake
func (f *FakeDestination) URL() string {
	return f.srv.URL
}

// Body returns the current body of a note
func (f *FakeDestination) Body(id string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if n, ok := f.notes[id]; ok {
		return n.Body
	}
	return ""
}

// Puts counts successful note updates
func (f *FakeDestination) Puts() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.puts
}

// SetPing changes the /ping response body
func (f *FakeDestination) SetPing(body string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pingBody = body
}

// FailPut makes updates of id answer 500
func (f *FakeDestination) FailPut(id string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failPut[id] = true
}

func (f *FakeDestination) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /ping", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		_, _ = w.Write([]byte(f.pingBody))
	})
	mux.HandleFunc("GET /search", f.auth(func(w http.ResponseWriter, r *http.Request) {
		q := strings.TrimPrefix(r.URL.Query().Get("query"), "body:")
		f.writePage(w, r, func(n *DestNote) bool { return strings.Contains(n.Body, q) })
	}))
	mux.HandleFunc("GET /notes", f.auth(func(w http.ResponseWriter, r *http.Request) {
		f.writePage(w, r, func(*DestNote) bool { return true })
	}))
	mux.HandleFunc("GET /notes/{id}", f.auth(func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		n, ok := f.notes[r.PathValue("id")]
		if !ok {
			http.NotFound(w, r)
			return
		}
		_ = json.NewEncoder(w).Encode(n)
	}))
	mux.HandleFunc("PUT /notes/{id}", f.auth(func(w http.ResponseWriter, r *http.Request) {
		var upd map[string]string
		if err := json.NewDecoder(r.Body).Decode(&upd); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		f.mu.Lock()
		defer f.mu.Unlock()
		id := r.PathValue("id")
		if f.failPut[id] {
			http.Error(w, `{"error":"Internal Server Error"}`, http.StatusInternalServerError)
			return
		}
		n, ok := f.notes[id]
		if !ok {
			http.NotFound(w, r)
			return
		}
		if body, ok := upd["body"]; ok {
			n.Body = body
		}
		f.puts++
		_ = json.NewEncoder(w).Encode(n)
	}))
	return mux
}

func (f *FakeDestination) auth(h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("token") != f.Token {
			http.Error(w, `{"error":"Invalid "token" parameter"}`, http.StatusForbidden)
			return
		}
		h(w, r)
	}
}

// writePage answers a listing the way the data API pages: page is 1-based,
// has_more is set while items remain
func (f *FakeDestination) writePage(w http.ResponseWriter, r *http.Request, match func(*DestNote) bool) {
	page, err := strconv.Atoi(r.URL.Query().Get("page"))
	if err != nil || page < 1 {
		page = 1
	}
	limit, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil || limit < 1 {
		limit = 10
	}

	f.mu.Lock()
	items := []domain.DestinationNote{}
	for _, id := range f.order {
		n := f.notes[id]
		if match(n) {
			items = append(items, domain.DestinationNote{ID: n.ID, Title: n.Title, CreatedAt: n.CreatedAt, Dialect: n.Dialect})
		}
	}
	f.mu.Unlock()

	start := min((page-1)*limit, len(items))
	end := min(start+limit, len(items))
	_ = json.NewEncoder(w).Encode(map[string]any{
		"items":    items[start:end],
		"has_more": end < len(items),
	})
}
