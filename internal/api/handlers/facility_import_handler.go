package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/zatekoja/caremarket/backend/internal/application/services"
	"github.com/zatekoja/caremarket/backend/internal/domain/entities"
	"github.com/zatekoja/caremarket/backend/internal/infrastructure/observability"
)

const idempotencyKeyPrefix = "facility_import_idem:"

// ImportRunner starts and reports on directory imports
type ImportRunner interface {
	Start(ctx context.Context, opts services.RunOptions) (string, error)
	Latest() (snap entities.ImportRunSnapshot, running bool, ok bool)
}

// ReportBuilder builds the directory report
type ReportBuilder interface {
	Build(ctx context.Context, run *entities.ImportRunSnapshot) (*services.ImportReport, error)
}

// IdempotencyStore remembers request keys
type IdempotencyStore interface {
	SetIfAbsent(ctx context.Context, key string, value []byte, expirationSeconds int) (bool, error)
	Delete(ctx context.Context, key string) error
}

// FacilityImportHandler is the admin surface for the directory import
type FacilityImportHandler struct {
	imports        ImportRunner
	reports        ReportBuilder
	idempotency    IdempotencyStore
	idempotencyTTL time.Duration
	runCtx         context.Context
}

// NewFacilityImportHandler creates the handler. Runs started over HTTP live on runCtx,
// not on the request. idempotency may be nil.
func NewFacilityImportHandler(
	runCtx context.Context,
	imports ImportRunner,
	reports ReportBuilder,
	idempotency IdempotencyStore,
	idempotencyTTL time.Duration,
) *FacilityImportHandler {
	if idempotencyTTL <= 0 {
		idempotencyTTL = 24 * time.Hour
	}
	return &FacilityImportHandler{
		imports:        imports,
		reports:        reports,
		idempotency:    idempotency,
		idempotencyTTL: idempotencyTTL,
		runCtx:         runCtx,
	}
}

type startImportRequest struct {
	Reset   bool   `json:"reset"`
	DryRun  bool   `json:"dry_run"`
	Confirm string `json:"confirm"`
}

// StartImport handles POST /api/admin/facility-imports
func (h *FacilityImportHandler) StartImport(w http.ResponseWriter, r *http.Request) {
	var req startImportRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		respondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Reset && !req.DryRun && req.Confirm != "yes" {
		respondWithError(w, http.StatusBadRequest, `reset deletes every imported facility; send "confirm": "yes"`)
		return
	}

	key := idempotencyKey(r)
	claimed, duplicate := h.claimKey(r.Context(), key)
	if duplicate {
		respondWithJSON(w, http.StatusOK, map[string]string{
			"status":          "duplicate",
			"idempotency_key": key,
		})
		return
	}

	runID, err := h.imports.Start(h.runCtx, services.RunOptions{Reset: req.Reset, DryRun: req.DryRun})
	if err != nil && claimed {
		// only a started run consumes the key
		h.releaseKey(r.Context(), key)
	}
	if errors.Is(err, services.ErrRunInProgress) {
		respondWithError(w, http.StatusConflict, err.Error())
		return
	}
	if err != nil {
		observability.LoggerFromContext(r.Context()).Error().Err(err).Msg("Failed to start facility import")
		respondWithError(w, http.StatusServiceUnavailable, "failed to start facility import")
		return
	}

	respondWithJSON(w, http.StatusAccepted, map[string]interface{}{
		"status":  "started",
		"run_id":  runID,
		"reset":   req.Reset,
		"dry_run": req.DryRun,
	})
}

type importStatusResponse struct {
	Running bool                       `json:"running"`
	Run     entities.ImportRunSnapshot `json:"run"`
}

// GetCurrentImport handles GET /api/admin/facility-imports/current
func (h *FacilityImportHandler) GetCurrentImport(w http.ResponseWriter, r *http.Request) {
	snap, running, ok := h.imports.Latest()
	if !ok {
		respondWithError(w, http.StatusNotFound, "no facility import has run since startup")
		return
	}
	respondWithJSON(w, http.StatusOK, importStatusResponse{Running: running, Run: snap})
}

// GetReport handles GET /api/admin/facility-report
func (h *FacilityImportHandler) GetReport(w http.ResponseWriter, r *http.Request) {
	var run *entities.ImportRunSnapshot
	if snap, _, ok := h.imports.Latest(); ok {
		run = &snap
	}

	report, err := h.reports.Build(r.Context(), run)
	if err != nil {
		observability.LoggerFromContext(r.Context()).Error().Err(err).Msg("Failed to build facility report")
		respondWithError(w, http.StatusInternalServerError, "failed to build facility report")
		return
	}
	respondWithJSON(w, http.StatusOK, report)
}

func idempotencyKey(r *http.Request) string {
	key := strings.TrimSpace(r.Header.Get("Idempotency-Key"))
	if key == "" {
		key = strings.TrimSpace(r.Header.Get("X-Idempotency-Key"))
	}
	return key
}

// claimKey records key and reports whether this request stored it, or whether an earlier one did
func (h *FacilityImportHandler) claimKey(ctx context.Context, key string) (claimed bool, duplicate bool) {
	if key == "" || h.idempotency == nil {
		return false, false
	}

	stamp := []byte(time.Now().UTC().Format(time.RFC3339Nano))
	ok, err := h.idempotency.SetIfAbsent(ctx, idempotencyKeyPrefix+key, stamp, int(h.idempotencyTTL.Seconds()))
	if err != nil {
		observability.LoggerFromContext(ctx).Warn().Err(err).Str("idempotency_key", key).Msg("Idempotency check failed")
		return false, false
	}
	return ok, !ok
}

func (h *FacilityImportHandler) releaseKey(ctx context.Context, key string) {
	if err := h.idempotency.Delete(context.WithoutCancel(ctx), idempotencyKeyPrefix+key); err != nil {
		observability.LoggerFromContext(ctx).Warn().Err(err).Str("idempotency_key", key).Msg("Failed to release idempotency key")
	}
}
