package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"fieldsnap/internal/logging"
	"fieldsnap/internal/progress"
	"fieldsnap/internal/queue"
	"fieldsnap/internal/uploader"
)

const (
	// DefaultWaitTimeout applies when a wait request names no timeout.
	DefaultWaitTimeout = 30 * time.Second
	// MaxWaitTimeout caps how long a wait request may hold a connection.
	MaxWaitTimeout = 2 * time.Minute

	maxBodyBytes = 1 << 20
)

// Drainer starts drain passes.
type Drainer interface {
	Trigger()
	Drain(ctx context.Context) uploader.DrainResult
}

// Options wires the handler to the daemon's components.
type Options struct {
	Store    *queue.Store
	Drainer  Drainer
	Progress *progress.Facade
	Status   func(ctx context.Context) StatusResponse
	Token    string
	Logger   *slog.Logger
}

type server struct {
	store    *queue.Store
	drainer  Drainer
	progress *progress.Facade
	status   func(ctx context.Context) StatusResponse
	logger   *slog.Logger
}

// NewHandler returns the /api router.
func NewHandler(opts Options) http.Handler {
	logger := opts.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	s := &server{
		store:    opts.Store,
		drainer:  opts.Drainer,
		progress: opts.Progress,
		status:   opts.Status,
		logger:   logger,
	}
	if s.progress == nil {
		s.progress = progress.New(opts.Store, opts.Drainer)
	}

	r := chi.NewRouter()
	r.Use(recoverer(logger))
	r.Use(requestID)
	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, "not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	})

	r.Route("/api", func(r chi.Router) {
		r.Use(bearerAuth(opts.Token))

		r.Get("/status", s.handleStatus)
		r.Post("/drain", s.handleDrain)

		r.Route("/items", func(r chi.Router) {
			r.Get("/", s.handleListItems)
			r.Post("/", s.handleEnqueue)
			r.Post("/retry", s.handleRetry)
			r.Post("/clear-completed", s.handleClearCompleted)
			r.Get("/{id}", s.handleGetItem)
			r.Delete("/{id}", s.handleRemoveItem)
			r.Patch("/{id}/metadata", s.handleUpdateMetadata)
		})

		r.Route("/groups", func(r chi.Router) {
			r.Get("/", s.handleGroups)
			r.Delete("/{group}", s.handleClearGroup)
			r.Get("/{group}/progress", s.handleProgress)
			r.Get("/{group}/uploaded", s.handleUploaded)
			r.Post("/{group}/wait", s.handleWait)
		})
	})
	return r
}

func (s *server) handleStatus(w http.ResponseWriter, r *http.Request) {
	var payload StatusResponse
	if s.status != nil {
		payload = s.status(r.Context())
	} else {
		payload = StatusResponse{
			Running:    true,
			RetryLimit: s.store.RetryLimit(),
			Queue:      s.store.Counts(""),
		}
	}
	writeJSON(w, http.StatusOK, payload)
}

func (s *server) handleListItems(w http.ResponseWriter, r *http.Request) {
	var statuses []queue.Status
	for _, value := range r.URL.Query()["status"] {
		for _, part := range strings.Split(value, ",") {
			if strings.TrimSpace(part) == "" {
				continue
			}
			status, ok := queue.ParseStatus(part)
			if !ok {
				writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid status %q", part))
				return
			}
			statuses = append(statuses, status)
		}
	}

	items := s.store.List(statuses...)
	if group := strings.TrimSpace(r.URL.Query().Get("group")); group != "" {
		filtered := items[:0]
		for _, item := range items {
			if item.GroupID == group {
				filtered = append(filtered, item)
			}
		}
		items = filtered
	}
	writeJSON(w, http.StatusOK, ItemsResponse{Items: FromQueueItems(items, s.store.RetryLimit())})
}

func (s *server) handleEnqueue(w http.ResponseWriter, r *http.Request) {
	var spec queue.EnqueueSpec
	if !s.decode(w, r, &spec) {
		return
	}
	id, err := s.store.Enqueue(r.Context(), spec)
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, EnqueueResponse{ID: id})
}

func (s *server) handleGetItem(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	item, ok := s.store.Get(id)
	if !ok {
		writeError(w, http.StatusNotFound, fmt.Sprintf("item %s not found", id))
		return
	}
	writeJSON(w, http.StatusOK, FromQueueItem(item, s.store.RetryLimit()))
}

func (s *server) handleRemoveItem(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	removed, err := s.store.Remove(r.Context(), id)
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	if !removed {
		writeError(w, http.StatusNotFound, fmt.Sprintf("item %s not found", id))
		return
	}
	writeJSON(w, http.StatusOK, CountResponse{Count: 1})
}

func (s *server) handleUpdateMetadata(w http.ResponseWriter, r *http.Request) {
	var update queue.MetadataUpdate
	if !s.decode(w, r, &update) {
		return
	}
	id := chi.URLParam(r, "id")
	if err := s.store.UpdateMetadata(r.Context(), id, update); err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	item, _ := s.store.Get(id)
	writeJSON(w, http.StatusOK, FromQueueItem(item, s.store.RetryLimit()))
}

func (s *server) handleRetry(w http.ResponseWriter, r *http.Request) {
	var req RetryRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
		return
	}
	count, err := s.store.RetryFailed(r.Context(), req.IDs...)
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	if count > 0 && s.drainer != nil {
		s.drainer.Trigger()
	}
	writeJSON(w, http.StatusOK, CountResponse{Count: count})
}

func (s *server) handleClearCompleted(w http.ResponseWriter, r *http.Request) {
	count, err := s.store.ClearCompleted(r.Context())
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, CountResponse{Count: count})
}

func (s *server) handleDrain(w http.ResponseWriter, r *http.Request) {
	if s.drainer == nil {
		writeError(w, http.StatusServiceUnavailable, "uploader not running")
		return
	}
	wait, _ := strconv.ParseBool(r.URL.Query().Get("wait"))
	if !wait {
		s.drainer.Trigger()
		writeJSON(w, http.StatusAccepted, DrainResponse{Triggered: true})
		return
	}
	// A client hanging up must not interrupt transfers mid-pass.
	result := s.drainer.Drain(context.WithoutCancel(r.Context()))
	writeJSON(w, http.StatusOK, DrainResponse{Triggered: true, Result: &result})
}

func (s *server) handleGroups(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, GroupsResponse{Groups: s.store.Groups()})
}

func (s *server) handleClearGroup(w http.ResponseWriter, r *http.Request) {
	count, err := s.store.ClearGroup(r.Context(), chi.URLParam(r, "group"))
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, CountResponse{Count: count})
}

func (s *server) handleProgress(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, progressResponse(s.progress, chi.URLParam(r, "group")))
}

func (s *server) handleUploaded(w http.ResponseWriter, r *http.Request) {
	group := chi.URLParam(r, "group")
	writeJSON(w, http.StatusOK, UploadedResponse{GroupID: group, Items: s.progress.UploadedItems(group)})
}

func (s *server) handleWait(w http.ResponseWriter, r *http.Request) {
	timeout := DefaultWaitTimeout
	if raw := strings.TrimSpace(r.URL.Query().Get("timeout")); raw != "" {
		parsed, err := time.ParseDuration(raw)
		if err != nil || parsed < 0 {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid timeout %q", raw))
			return
		}
		timeout = min(parsed, MaxWaitTimeout)
	}
	group := chi.URLParam(r, "group")
	done := s.progress.WaitForUploads(r.Context(), group, timeout)
	writeJSON(w, http.StatusOK, WaitResponse{Done: done, Progress: progressResponse(s.progress, group)})
}

func (s *server) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
		return false
	}
	return true
}

func (s *server) writeStoreError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, queue.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, queue.ErrInvalidSpec), errors.Is(err, queue.ErrInvalidStatus):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		logging.ErrorWithContext(
			logging.WithContext(r.Context(), s.logger),
			"api request failed",
			"api_store_error",
			logging.String("path", r.URL.Path),
			logging.Error(err),
		)
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}
