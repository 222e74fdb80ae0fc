// Package v1 provides the REST handlers of the pool read-model.
package v1

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/stacklok/poolsync/internal/api/common"
	"github.com/stacklok/poolsync/internal/auth"
	"github.com/stacklok/poolsync/internal/command"
	"github.com/stacklok/poolsync/internal/optimistic"
	"github.com/stacklok/poolsync/internal/projection"
	"github.com/stacklok/poolsync/internal/snapshot"
	"github.com/stacklok/poolsync/internal/status"
	"github.com/stacklok/poolsync/internal/store"
	"github.com/stacklok/poolsync/internal/sync/coordinator"
	"github.com/stacklok/poolsync/internal/versions"
)

// maxBodyBytes bounds write request bodies
const maxBodyBytes = 64 << 10

// Synchronizer is the view of the mirrored document served over HTTP
//
//go:generate mockgen -destination=mocks/mock_synchronizer.go -package=mocks -source=routes.go Synchronizer
type Synchronizer interface {
	// Ready reports whether a snapshot has been loaded
	Ready() bool

	// Snapshot returns the current snapshot, or nil before the first load
	Snapshot() *snapshot.Snapshot

	// Revision describes the current snapshot
	Revision() store.Revision

	// Get returns the observed value at a dotted path
	Get(path string) (any, bool)

	// Display returns the value to show at path, honoring unconfirmed writes
	Display(path string) any

	// ApplyCommand writes value at path
	ApplyCommand(ctx context.Context, path string, value any) error

	// Pending returns the unconfirmed commands keyed by path
	Pending() map[string]optimistic.PendingCommand

	// Status returns a copy of the synchronizer status
	Status() status.SyncStatus
}

// SnapshotResponse is the body of GET /v1/snapshot
type SnapshotResponse struct {
	Revision store.Revision     `json:"revision"`
	Document *snapshot.Snapshot `json:"document"`
}

// ValueResponse is the body of GET /v1/values/{path}
type ValueResponse struct {
	Path     string `json:"path"`
	Value    any    `json:"value"`
	Observed any    `json:"observed"`
	Pending  bool   `json:"pending"`
}

// StatusResponse is the body of GET /v1/status
type StatusResponse struct {
	Status   status.SyncStatus                    `json:"status"`
	Revision store.Revision                       `json:"revision"`
	Pending  map[string]optimistic.PendingCommand `json:"pending"`
}

// WriteRequest is the body of PUT /v1/controls/{name}
type WriteRequest struct {
	Value any `json:"value"`
}

// CommandRequest is the body of POST /v1/commands
type CommandRequest struct {
	Path  string `json:"path"`
	Value any    `json:"value"`
}

// CommandResponse acknowledges an accepted command
type CommandResponse struct {
	Path   string `json:"path"`
	Value  any    `json:"value"`
	Status string `json:"status"`
}

// Routes serves the read-model of one synchronizer
type Routes struct {
	sync     Synchronizer
	controls *projection.Set
}

// NewRoutes creates a Routes instance evaluating projections against svc
func NewRoutes(svc Synchronizer, projections []projection.Projection) (*Routes, error) {
	controls, err := projection.NewSet(svc, projections)
	if err != nil {
		return nil, err
	}
	return &Routes{sync: svc, controls: controls}, nil
}

// Router creates the /v1 router
func (rr *Routes) Router() http.Handler {
	r := chi.NewRouter()

	r.Get("/snapshot", rr.getSnapshot)
	r.Get("/values/{path}", rr.getValue)
	r.Get("/controls", rr.listControls)
	r.Get("/controls/{name}", rr.getControl)
	r.Put("/controls/{name}", rr.putControl)
	r.Post("/commands", rr.postCommand)
	r.Get("/status", rr.getStatus)

	return r
}

// HealthRouter creates a router for health check endpoints
func HealthRouter(svc Synchronizer) http.Handler {
	r := chi.NewRouter()

	r.Get("/health", healthHandler)
	r.Get("/readiness", readinessHandler(svc))
	r.Get("/version", versionHandler)

	return r
}

func healthHandler(w http.ResponseWriter, _ *http.Request) {
	common.WriteJSONResponse(w, map[string]string{"status": "healthy"}, http.StatusOK)
}

// readinessHandler reports ready once the first snapshot is loaded
func readinessHandler(svc Synchronizer) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		if !svc.Ready() {
			common.WriteErrorResponse(w, "synchronizer not ready: "+projection.ErrNotReady.Error(), http.StatusServiceUnavailable)
			return
		}
		common.WriteJSONResponse(w, map[string]string{"status": "ready"}, http.StatusOK)
	}
}

func versionHandler(w http.ResponseWriter, _ *http.Request) {
	common.WriteJSONResponse(w, versions.GetVersionInfo(), http.StatusOK)
}

func (rr *Routes) getSnapshot(w http.ResponseWriter, _ *http.Request) {
	snap := rr.sync.Snapshot()
	if snap == nil {
		common.WriteErrorResponse(w, projection.ErrNotReady.Error(), http.StatusServiceUnavailable)
		return
	}
	common.WriteJSONResponse(w, SnapshotResponse{Revision: rr.sync.Revision(), Document: snap}, http.StatusOK)
}

func (rr *Routes) getValue(w http.ResponseWriter, r *http.Request) {
	path, err := common.GetDottedPathParam(r, "path")
	if err != nil {
		common.WriteErrorResponse(w, err.Error(), http.StatusBadRequest)
		return
	}
	if !rr.sync.Ready() {
		common.WriteErrorResponse(w, projection.ErrNotReady.Error(), http.StatusServiceUnavailable)
		return
	}

	observed, found := rr.sync.Get(path)
	_, pending := rr.sync.Pending()[path]
	if !found && !pending {
		common.WriteErrorResponse(w, "no value at "+path, http.StatusNotFound)
		return
	}

	common.WriteJSONResponse(w, ValueResponse{
		Path:     path,
		Value:    rr.sync.Display(path),
		Observed: observed,
		Pending:  pending,
	}, http.StatusOK)
}

func (rr *Routes) listControls(w http.ResponseWriter, _ *http.Request) {
	if !rr.sync.Ready() {
		common.WriteErrorResponse(w, projection.ErrNotReady.Error(), http.StatusServiceUnavailable)
		return
	}
	common.WriteJSONResponse(w, rr.controls.Values(), http.StatusOK)
}

func (rr *Routes) getControl(w http.ResponseWriter, r *http.Request) {
	name, err := common.GetAndValidateURLParam(r, "name")
	if err != nil {
		common.WriteErrorResponse(w, err.Error(), http.StatusBadRequest)
		return
	}

	value, err := rr.controls.Value(name)
	if err != nil {
		writeFailure(w, err)
		return
	}
	common.WriteJSONResponse(w, value, http.StatusOK)
}

func (rr *Routes) putControl(w http.ResponseWriter, r *http.Request) {
	name, err := common.GetAndValidateURLParam(r, "name")
	if err != nil {
		common.WriteErrorResponse(w, err.Error(), http.StatusBadRequest)
		return
	}

	var req WriteRequest
	if err := decodeBody(w, r, &req); err != nil {
		common.WriteErrorResponse(w, err.Error(), http.StatusBadRequest)
		return
	}

	if err := rr.controls.Write(r.Context(), name, req.Value); err != nil {
		writeFailure(w, err)
		return
	}

	value, err := rr.controls.Value(name)
	if err != nil {
		writeFailure(w, err)
		return
	}
	common.WriteJSONResponse(w, value, http.StatusAccepted)
}

func (rr *Routes) postCommand(w http.ResponseWriter, r *http.Request) {
	var req CommandRequest
	if err := decodeBody(w, r, &req); err != nil {
		common.WriteErrorResponse(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := common.ValidateDottedPath(req.Path); err != nil {
		common.WriteErrorResponse(w, "path "+err.Error(), http.StatusBadRequest)
		return
	}

	if err := rr.sync.ApplyCommand(r.Context(), req.Path, req.Value); err != nil {
		writeFailure(w, err)
		return
	}
	common.WriteJSONResponse(w, CommandResponse{Path: req.Path, Value: req.Value, Status: "accepted"}, http.StatusAccepted)
}

func (rr *Routes) getStatus(w http.ResponseWriter, _ *http.Request) {
	common.WriteJSONResponse(w, StatusResponse{
		Status:   rr.sync.Status(),
		Revision: rr.sync.Revision(),
		Pending:  rr.sync.Pending(),
	}, http.StatusOK)
}

func decodeBody(w http.ResponseWriter, r *http.Request, into any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(into); err != nil {
		return errors.New("invalid request body: " + err.Error())
	}
	return nil
}

// writeFailure maps read and write errors to HTTP statuses
func writeFailure(w http.ResponseWriter, err error) {
	var dispatchErr *command.CommandDispatchError

	switch {
	case errors.Is(err, projection.ErrNotFound):
		common.WriteErrorResponse(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, projection.ErrReadOnly):
		common.WriteErrorResponse(w, err.Error(), http.StatusMethodNotAllowed)
	case errors.Is(err, projection.ErrUnavailable):
		common.WriteErrorResponse(w, err.Error(), http.StatusConflict)
	case errors.Is(err, projection.ErrNotReady), errors.Is(err, coordinator.ErrNotStarted):
		common.WriteErrorResponse(w, err.Error(), http.StatusServiceUnavailable)
	case projection.IsInvalidValue(err):
		common.WriteErrorResponse(w, err.Error(), http.StatusBadRequest)
	case errors.As(err, &dispatchErr) && dispatchErr.Err == nil:
		// rejected before anything was sent
		common.WriteErrorResponse(w, err.Error(), http.StatusUnprocessableEntity)
	case errors.As(err, &dispatchErr), auth.IsAuthError(err):
		slog.Warn("Upstream rejected write", "error", err)
		common.WriteErrorResponse(w, err.Error(), http.StatusBadGateway)
	default:
		slog.Error("Request failed", "error", err)
		common.WriteErrorResponse(w, "internal error", http.StatusInternalServerError)
	}
}
