package api

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/google/uuid"

	"codeset/internal/config"
	"codeset/internal/proto"
	"codeset/internal/registry"
	"codeset/internal/session"
	"codeset/internal/status"
	"codeset/internal/store"
)

// Handler wraps the store, hierarchy registry and config for HTTP handlers.
type Handler struct {
	db  *store.DB
	reg *registry.Registry
	cfg *config.Config
}

// NewHandler creates a new API handler.
func NewHandler(db *store.DB, reg *registry.Registry, cfg *config.Config) *Handler {
	return &Handler{db: db, reg: reg, cfg: cfg}
}

// NewRouter creates the HTTP router with all routes registered.
func NewRouter(db *store.DB, reg *registry.Registry, cfg *config.Config) http.Handler {
	h := NewHandler(db, reg, cfg)
	mux := http.NewServeMux()

	// Health
	mux.HandleFunc("GET /health", h.Health)
	mux.HandleFunc("GET /healthz", h.Health)
	mux.HandleFunc("GET /readyz", h.Ready)

	// Admin routes
	mux.HandleFunc("POST /admin/v1/drafts", h.CreateDraft)
	mux.HandleFunc("GET /admin/v1/drafts", h.ListDrafts)
	mux.HandleFunc("DELETE /admin/v1/drafts/{owner}/{draft}", h.DeleteDraft)

	// Draft-scoped routes: /{owner}/{draft}/v1/...
	mux.HandleFunc("GET /{owner}/{draft}/v1/state", h.GetState)
	mux.HandleFunc("POST /{owner}/{draft}/v1/update", h.Update)
	mux.HandleFunc("POST /{owner}/{draft}/v1/save", h.Save)
	mux.HandleFunc("GET /{owner}/{draft}/v1/versions/{tag}/download", h.Download)

	return mux
}

// draftFrom resolves the draft named in the request path. A nil return
// means the response has already been written.
func (h *Handler) draftFrom(w http.ResponseWriter, r *http.Request) *store.Draft {
	owner := r.PathValue("owner")
	slug := r.PathValue("draft")
	if owner == "" || slug == "" {
		writeError(w, http.StatusBadRequest, "owner and draft required", nil)
		return nil
	}

	d, err := h.db.GetDraft(owner, slug)
	if err != nil {
		if err == store.ErrDraftNotFound {
			writeError(w, http.StatusNotFound, "draft not found", nil)
			return nil
		}
		writeError(w, http.StatusInternalServerError, "failed to load draft", err)
		return nil
	}
	return d
}

// ----- Health -----

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, proto.HealthResponse{
		Status:  "ok",
		Version: h.cfg.Version,
	})
}

func (h *Handler) Ready(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, proto.HealthResponse{
		Status:  "ready",
		Version: h.cfg.Version,
	})
}

// ----- Admin -----

func (h *Handler) CreateDraft(w http.ResponseWriter, r *http.Request) {
	var req proto.CreateDraftRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}

	if req.Owner == "" || req.Name == "" || req.Hierarchy == "" {
		writeError(w, http.StatusBadRequest, "owner, name and hierarchy required", nil)
		return
	}

	hier, err := h.reg.Get(req.Hierarchy)
	if err != nil {
		if err == registry.ErrHierarchyNotFound {
			writeError(w, http.StatusBadRequest, "unknown hierarchy", nil)
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to load hierarchy", err)
		return
	}

	// Every hierarchy code is tracked; seed codes start explicitly
	// included, everything else derives from them.
	explicit := make(map[string]status.Status, len(req.Codes))
	for _, code := range req.Codes {
		if !hier.Has(code) {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("unknown code %q", code), nil)
			return
		}
		explicit[code] = status.Included
	}

	derived, err := session.Derive(hier, explicit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to derive statuses", err)
		return
	}
	initial := make(map[string]string, derived.Len())
	for code, v := range derived.All() {
		initial[code] = v.String()
	}

	d := &store.Draft{
		ID:        uuid.NewString(),
		Owner:     req.Owner,
		Name:      req.Name,
		Slug:      Slugify(req.Name),
		Hierarchy: req.Hierarchy,
	}
	if err := h.db.CreateDraft(d, initial); err != nil {
		if err == store.ErrDraftExists {
			writeError(w, http.StatusConflict, "draft already exists", nil)
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to create draft", err)
		return
	}

	writeJSON(w, http.StatusCreated, proto.CreateDraftResponse{
		Owner: d.Owner,
		Slug:  d.Slug,
		ID:    d.ID,
	})
}

func (h *Handler) ListDrafts(w http.ResponseWriter, r *http.Request) {
	owner := r.URL.Query().Get("owner")

	drafts, err := h.db.ListDrafts(owner)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list drafts", err)
		return
	}

	var result []*proto.DraftEntry
	for _, d := range drafts {
		result = append(result, &proto.DraftEntry{
			Owner:     d.Owner,
			Slug:      d.Slug,
			Name:      d.Name,
			UpdatedAt: d.UpdatedAt,
		})
	}

	writeJSON(w, http.StatusOK, proto.DraftsListResponse{Drafts: result})
}

func (h *Handler) DeleteDraft(w http.ResponseWriter, r *http.Request) {
	owner := r.PathValue("owner")
	slug := r.PathValue("draft")

	if err := h.db.DeleteDraft(owner, slug); err != nil {
		if err == store.ErrDraftNotFound {
			writeError(w, http.StatusNotFound, "draft not found", nil)
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to delete draft", err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// ----- Draft state -----

func (h *Handler) GetState(w http.ResponseWriter, r *http.Request) {
	d := h.draftFrom(w, r)
	if d == nil {
		return
	}

	statuses, err := h.db.CodeStatuses(d.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load statuses", err)
		return
	}

	writeJSON(w, http.StatusOK, proto.DraftState{
		Owner:        d.Owner,
		Slug:         d.Slug,
		Name:         d.Name,
		Hierarchy:    d.Hierarchy,
		CodeToStatus: statuses,
		UpdatedAt:    d.UpdatedAt,
	})
}

// ----- Update -----

// Update applies an ordered batch of explicit status decisions to a draft.
// Each decision is propagated through the hierarchy before the next is
// applied. On the first failing decision the batch stops: the applied head
// prefix is committed and its length reported, so the client can keep the
// tail queued. Re-delivery of an applied decision is idempotent.
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	d := h.draftFrom(w, r)
	if d == nil {
		return
	}

	var req proto.UpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}
	if len(req.Updates) == 0 {
		writeJSON(w, http.StatusOK, proto.UpdateResponse{AppliedCount: 0})
		return
	}
	if len(req.Updates) > h.cfg.MaxBatchSize {
		writeError(w, http.StatusRequestEntityTooLarge, "batch too large", nil)
		return
	}

	hier, err := h.reg.Get(d.Hierarchy)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load hierarchy", err)
		return
	}

	persisted, err := h.db.CodeStatuses(d.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load statuses", err)
		return
	}

	snapshot, err := storeFromSymbols(persisted)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "corrupt persisted statuses", err)
		return
	}

	applied := 0
	var applyErr error
	for _, upd := range req.Updates {
		st, err := status.Parse(upd.Status)
		if err != nil || !st.Assignable() {
			applyErr = fmt.Errorf("status %q not assignable", upd.Status)
			break
		}
		next, err := status.Update(hier, snapshot, upd.Code, st)
		if err != nil {
			applyErr = err
			break
		}
		snapshot = next
		applied++
	}

	// Persist whatever prefix was applied, even if the batch failed partway.
	changes := make(map[string]string)
	for code, v := range snapshot.All() {
		if persisted[code] != v.String() {
			changes[code] = v.String()
		}
	}
	if err := h.db.SetCodeStatuses(d.ID, changes); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to persist statuses", err)
		return
	}

	resp := proto.UpdateResponse{
		AppliedCount: applied,
		BatchID:      uuid.NewString(),
	}
	if applyErr != nil {
		resp.Error = applyErr.Error()
	}
	writeJSON(w, http.StatusOK, resp)
}

// ----- Versions -----

func (h *Handler) Save(w http.ResponseWriter, r *http.Request) {
	d := h.draftFrom(w, r)
	if d == nil {
		return
	}

	var req struct {
		Tag string `json:"tag"`
	}
	// Body is optional; an empty body saves an untagged version.
	if r.Body != nil {
		json.NewDecoder(r.Body).Decode(&req)
	}

	statuses, err := h.db.CodeStatuses(d.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load statuses", err)
		return
	}

	v, err := h.db.SaveVersion(d.ID, req.Tag, statuses)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to save version", err)
		return
	}

	writeJSON(w, http.StatusCreated, proto.SaveResponse{
		Fingerprint: v.Fingerprint,
		Tag:         v.Tag,
		CreatedAt:   v.CreatedAt,
	})
}

// Download serves a saved version's status table. Export is gated: a
// version containing any unresolved or conflicted code is refused.
func (h *Handler) Download(w http.ResponseWriter, r *http.Request) {
	d := h.draftFrom(w, r)
	if d == nil {
		return
	}

	tag := r.PathValue("tag")
	v, statuses, err := h.db.GetVersion(d.ID, tag)
	if err != nil {
		if err == store.ErrVersionNotFound {
			writeError(w, http.StatusNotFound, "version not found", nil)
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to load version", err)
		return
	}

	snapshot, err := storeFromSymbols(statuses)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "corrupt version blob", err)
		return
	}
	if !snapshot.ExportReady() {
		writeError(w, http.StatusConflict, "version has unresolved or conflicting codes", nil)
		return
	}

	terms := make(map[string]string, len(statuses))
	if hier, err := h.reg.Get(d.Hierarchy); err == nil {
		for code := range statuses {
			terms[code] = hier.Term(code)
		}
	}

	tagOrFingerprint := v.Tag
	if tagOrFingerprint == "" {
		tagOrFingerprint = v.Fingerprint
	}

	writeJSON(w, http.StatusOK, proto.VersionDownload{
		Filename:     fmt.Sprintf("%s-%s-%s", d.Owner, d.Slug, tagOrFingerprint),
		Fingerprint:  v.Fingerprint,
		CodeToStatus: statuses,
		CodeToTerm:   terms,
	})
}

// ----- Helpers -----

func writeJSON(w http.ResponseWriter, statusCode int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, statusCode int, msg string, err error) {
	resp := proto.ErrorResponse{Error: msg}
	if err != nil {
		resp.Details = err.Error()
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(resp)
}

// storeFromSymbols builds a snapshot from persisted wire symbols.
func storeFromSymbols(symbols map[string]string) (*status.Store, error) {
	statuses := make(map[string]status.Status, len(symbols))
	for code, symbol := range symbols {
		st, err := status.Parse(symbol)
		if err != nil {
			return nil, fmt.Errorf("code %q: %w", code, err)
		}
		statuses[code] = st
	}
	return status.NewStore(statuses), nil
}
