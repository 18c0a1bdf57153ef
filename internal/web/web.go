package web

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/yanivmizrachiy/luztedi/internal/config"
	"github.com/yanivmizrachiy/luztedi/internal/ics"
	appLog "github.com/yanivmizrachiy/luztedi/internal/log"
	"github.com/yanivmizrachiy/luztedi/internal/model"
	"github.com/yanivmizrachiy/luztedi/internal/store"
)

// maxBodyBytes bounds uploaded documents and items.
const maxBodyBytes = 8 << 20

// Server provides the HTTP API over the calendar document. Reads see the
// local override when one exists; every write lands in the override, never
// in the committed document.
type Server struct {
	cfg      *config.Config
	mux      *http.ServeMux
	override *store.Override

	// mu serializes read-modify-write cycles on the override slot.
	mu sync.RWMutex
}

// NewServer constructs a new Server.
func NewServer(cfg *config.Config) *Server {
	s := &Server{
		cfg:      cfg,
		mux:      http.NewServeMux(),
		override: store.NewOverride(cfg.OverridePath),
	}
	s.registerRoutes()
	return s
}

// Handler returns the underlying http.Handler for this server.
func (s *Server) Handler() http.Handler {
	return s.mux
}

// StartServer serves on cfg.Listen until ctx is cancelled, then shuts down
// gracefully.
func StartServer(ctx context.Context, cfg *config.Config) error {
	s := NewServer(cfg)
	srv := &http.Server{
		Addr:              cfg.Listen,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		appLog.Info("starting HTTP server", "listen", "http://"+cfg.Listen)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		appLog.Info("shutting down HTTP server")
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.HandleFunc("GET /api/data", s.handleGetData)
	s.mux.HandleFunc("PUT /api/data", s.handlePutData)
	s.mux.HandleFunc("POST /api/items", s.handleCreateItem)
	s.mux.HandleFunc("PUT /api/items/{id}", s.handleUpdateItem)
	s.mux.HandleFunc("DELETE /api/items/{id}", s.handleDeleteItem)
	s.mux.HandleFunc("DELETE /api/override", s.handleResetOverride)
	s.mux.HandleFunc("GET /api/months", s.handleMonths)
	s.mux.HandleFunc("GET /calendar.ics", s.handleCalendar)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// dataResponse is the JSON response shape for /api/data.
type dataResponse struct {
	LocalOverrideApplied bool          `json:"localOverrideApplied"`
	Data                 model.Dataset `json:"data"`
}

// effective loads the committed document and lets the override shadow it.
// Callers hold s.mu.
func (s *Server) effective() (model.Dataset, bool, error) {
	base, err := store.Load(s.cfg.DataPath)
	if err != nil {
		return model.Dataset{}, false, err
	}
	return s.override.Effective(base)
}

func (s *Server) handleGetData(w http.ResponseWriter, _ *http.Request) {
	s.mu.RLock()
	ds, applied, err := s.effective()
	s.mu.RUnlock()
	if err != nil {
		appLog.Error("api data: load failed", err)
		writeError(w, http.StatusInternalServerError, "failed to load data")
		return
	}
	writeJSON(w, http.StatusOK, dataResponse{LocalOverrideApplied: applied, Data: ds})
}

// handlePutData imports a whole document into the override.
//
// PUT /api/data?mode=replace|merge
//   - replace (default): the uploaded document becomes the override
//   - merge: records are overlaid by id onto the current effective data
//
// An invalid document is rejected as a whole and nothing is written.
func (s *Server) handlePutData(w http.ResponseWriter, r *http.Request) {
	mode := r.URL.Query().Get("mode")
	if mode == "" {
		mode = "replace"
	}
	if mode != "replace" && mode != "merge" {
		writeError(w, http.StatusBadRequest, "mode must be replace or merge")
		return
	}

	raw, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read body")
		return
	}
	incoming, err := model.Validate(raw)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	next := incoming
	if mode == "merge" {
		current, _, err := s.effective()
		if err != nil {
			appLog.Error("api data: load failed", err)
			writeError(w, http.StatusInternalServerError, "failed to load data")
			return
		}
		next = model.MergeByID(current, incoming)
	}
	if err := s.override.Save(next); err != nil {
		appLog.Error("api data: save override failed", err)
		writeError(w, http.StatusInternalServerError, "failed to save data")
		return
	}
	appLog.Info("document imported into override", "mode", mode, "records", next.Sizes().Total())
	writeJSON(w, http.StatusOK, dataResponse{LocalOverrideApplied: true, Data: next})
}

func decodeRecord(w http.ResponseWriter, r *http.Request) (model.Record, bool) {
	var rec model.Record
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(&rec); err != nil {
		writeError(w, http.StatusBadRequest, "malformed record")
		return model.Record{}, false
	}
	return rec, true
}

func checkRecord(w http.ResponseWriter, rec model.Record) bool {
	var probe model.Dataset
	if probe.Collection(rec.Kind) == nil {
		writeError(w, http.StatusBadRequest, "kind must be schedule, exam or holiday")
		return false
	}
	if verr := model.ValidateRecord(rec, rec.Kind); verr != nil {
		writeError(w, http.StatusBadRequest, verr.Error())
		return false
	}
	return true
}

// editOverride runs fn on the current effective data and stores the result
// in the override. fn returns an HTTP status; anything but 2xx aborts.
func (s *Server) editOverride(fn func(ds *model.Dataset) (int, string)) (int, string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ds, _, err := s.effective()
	if err != nil {
		appLog.Error("api items: load failed", err)
		return http.StatusInternalServerError, "failed to load data"
	}
	ds = ds.Clone()
	if status, msg := fn(&ds); status >= 300 {
		return status, msg
	}
	model.SortForDisplay(&ds)
	if err := s.override.Save(ds); err != nil {
		appLog.Error("api items: save override failed", err)
		return http.StatusInternalServerError, "failed to save data"
	}
	return http.StatusOK, ""
}

func (s *Server) handleCreateItem(w http.ResponseWriter, r *http.Request) {
	rec, ok := decodeRecord(w, r)
	if !ok {
		return
	}
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if !checkRecord(w, rec) {
		return
	}

	status, msg := s.editOverride(func(ds *model.Dataset) (int, string) {
		if _, exists := ds.Find(rec.ID); exists {
			return http.StatusConflict, "id already exists: " + rec.ID
		}
		col := ds.Collection(rec.Kind)
		*col = append(*col, rec)
		return http.StatusCreated, ""
	})
	if status >= 300 {
		writeError(w, status, msg)
		return
	}
	appLog.Info("item created", "id", rec.ID, "kind", rec.Kind)
	writeJSON(w, http.StatusCreated, rec)
}

func (s *Server) handleUpdateItem(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	rec, ok := decodeRecord(w, r)
	if !ok {
		return
	}
	rec.ID = id
	if !checkRecord(w, rec) {
		return
	}

	status, msg := s.editOverride(func(ds *model.Dataset) (int, string) {
		old, exists := ds.Find(id)
		if !exists {
			return http.StatusNotFound, "no item " + id
		}
		if old.Kind == rec.Kind {
			col := ds.Collection(rec.Kind)
			for i := range *col {
				if (*col)[i].ID == id {
					(*col)[i] = rec
				}
			}
			return http.StatusOK, ""
		}
		ds.Remove(id)
		col := ds.Collection(rec.Kind)
		*col = append(*col, rec)
		return http.StatusOK, ""
	})
	if status >= 300 {
		writeError(w, status, msg)
		return
	}
	appLog.Info("item updated", "id", id, "kind", rec.Kind)
	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) handleDeleteItem(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	status, msg := s.editOverride(func(ds *model.Dataset) (int, string) {
		if !ds.Remove(id) {
			return http.StatusNotFound, "no item " + id
		}
		return http.StatusOK, ""
	})
	if status >= 300 {
		writeError(w, status, msg)
		return
	}
	appLog.Info("item deleted", "id", id)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleResetOverride(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	err := s.override.Clear()
	s.mu.Unlock()
	if err != nil {
		appLog.Error("api override: clear failed", err)
		writeError(w, http.StatusInternalServerError, "failed to clear override")
		return
	}
	appLog.Info("local override cleared")
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleMonths(w http.ResponseWriter, _ *http.Request) {
	s.mu.RLock()
	ds, _, err := s.effective()
	s.mu.RUnlock()
	if err != nil {
		appLog.Error("api months: load failed", err)
		writeError(w, http.StatusInternalServerError, "failed to load data")
		return
	}
	writeJSON(w, http.StatusOK, model.MonthlyCounts(ds))
}

// handleCalendar serves the effective data as an iCalendar feed so any
// calendar client can subscribe to it.
func (s *Server) handleCalendar(w http.ResponseWriter, _ *http.Request) {
	s.mu.RLock()
	ds, _, err := s.effective()
	s.mu.RUnlock()
	if err != nil {
		appLog.Error("calendar feed: load failed", err)
		writeError(w, http.StatusInternalServerError, "failed to load data")
		return
	}

	body, err := ics.Encode(ds, ics.ExportOptions{Name: "luztedi", Location: s.cfg.Location()})
	if err != nil {
		appLog.Error("calendar feed: encode failed", err)
		writeError(w, http.StatusInternalServerError, "failed to encode calendar")
		return
	}
	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, body)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		appLog.Error("failed to write JSON response", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	type errResp struct {
		Error string `json:"error"`
	}
	writeJSON(w, status, errResp{Error: msg})
}
