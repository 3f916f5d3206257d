// Package web is the thin HTTP surface: tab listing and swipe actions.
package web

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/siftnews/sift/internal/feeds"
	"github.com/siftnews/sift/internal/logging"
	"github.com/siftnews/sift/internal/store"
)

// Headline is the wire shape of one list entry.
type Headline struct {
	ID        string  `json:"id"`
	Category  *string `json:"category"`
	Title     string  `json:"title"`
	URL       string  `json:"url"`
	SourceURL string  `json:"source_url"`
}

// Server serves the swipe UI and its JSON API.
type Server struct {
	store    *store.Store
	pageSize int
	srv      *http.Server
}

// New creates a Server listening on addr. pageSize <= 0 defaults to 100.
func New(st *store.Store, addr string, pageSize int) *Server {
	if pageSize <= 0 {
		pageSize = 100
	}

	s := &Server{store: st, pageSize: pageSize}
	s.srv = &http.Server{
		Addr:         addr,
		Handler:      s.Router(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
	return s
}

// Router builds the route table. Exposed for handler tests.
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/api/headlines/{tab}", s.handleTab).Methods("GET")
	r.HandleFunc("/api/headlines/{id}/{action}", s.handleAction).Methods("POST")
	r.HandleFunc("/", s.handleIndex).Methods("GET")
	return r
}

// Start serves until Shutdown. Blocks.
func (s *Server) Start() error {
	logging.Info("HTTP server listening", "addr", s.srv.Addr)
	err := s.srv.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

// handleTab lists one tab in display order. Reads are best-effort: they
// serve whatever the store holds even if the last ingestion run failed.
func (s *Server) handleTab(w http.ResponseWriter, r *http.Request) {
	tab := mux.Vars(r)["tab"]

	items, err := s.store.Tab(tab, s.pageSize)
	if err != nil {
		if errors.Is(err, store.ErrUnknownTab) {
			http.NotFound(w, r)
			return
		}
		logging.Error("Tab query failed", "tab", tab, "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	headlines := make([]Headline, len(items))
	for i, item := range items {
		h := Headline{
			ID:        item.ID,
			Title:     item.Title,
			URL:       item.URL,
			SourceURL: item.SourceURL,
		}
		if item.Category != nil {
			name := item.Category.String()
			h.Category = &name
		}
		headlines[i] = h
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(headlines); err != nil {
		logging.Error("Encode response failed", "error", err)
	}
}

// handleAction swipes one item: like or dislike. The first swipe stamps
// the classification time; later swipes only move the item between
// categories. Eviction runs after every swipe so the target category
// stays under its ceiling.
func (s *Server) handleAction(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	id := vars["id"]

	category, err := feeds.ParseCategory(vars["action"])
	if err != nil {
		http.Error(w, "unknown action", http.StatusBadRequest)
		return
	}

	if err := s.store.Reclassify(id, category); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			http.NotFound(w, r)
			return
		}
		logging.Error("Reclassify failed", "id", id, "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	if err := s.store.EvictOverflow(category); err != nil {
		logging.Error("Eviction after swipe failed", "category", category.String(), "error", err)
	}

	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write([]byte(indexHTML))
}
