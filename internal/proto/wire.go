// Package proto defines wire format DTOs for the codeset HTTP API.
package proto

// StatusUpdate is one (code, status) pair in an update batch. Order inside
// a batch is significant: the server applies updates head to tail.
type StatusUpdate struct {
	Code   string `json:"code"`
	Status string `json:"status"`
}

// UpdateRequest carries an ordered batch of status updates for a draft.
type UpdateRequest struct {
	Updates []StatusUpdate `json:"updates"`
}

// UpdateResponse reports how many updates from the head of the submitted
// batch were applied. AppliedCount may be less than the batch length on
// partial failure; the client keeps the tail queued.
type UpdateResponse struct {
	AppliedCount int    `json:"appliedCount"`
	BatchID      string `json:"batchId,omitempty"`
	Error        string `json:"error,omitempty"`
}

// CreateDraftRequest creates a new draft codelist.
type CreateDraftRequest struct {
	Owner     string `json:"owner"`
	Name      string `json:"name"`
	Hierarchy string `json:"hierarchy"`
	// Codes optionally seeds the draft with explicitly included codes.
	Codes []string `json:"codes,omitempty"`
}

// CreateDraftResponse is returned after creating a draft.
type CreateDraftResponse struct {
	Owner string `json:"owner"`
	Slug  string `json:"slug"`
	ID    string `json:"id"`
}

// DraftState is the full server-side state of a draft.
type DraftState struct {
	Owner        string            `json:"owner"`
	Slug         string            `json:"slug"`
	Name         string            `json:"name"`
	Hierarchy    string            `json:"hierarchy"`
	CodeToStatus map[string]string `json:"codeToStatus"`
	UpdatedAt    int64             `json:"updatedAt"`
}

// SaveResponse is returned after saving a draft as a version.
type SaveResponse struct {
	Fingerprint string `json:"fingerprint"`
	Tag         string `json:"tag"`
	CreatedAt   int64  `json:"createdAt"`
}

// VersionDownload is the gated read-only view of a saved version.
type VersionDownload struct {
	Filename     string            `json:"filename"`
	Fingerprint  string            `json:"fingerprint"`
	CodeToStatus map[string]string `json:"codeToStatus"`
	CodeToTerm   map[string]string `json:"codeToTerm,omitempty"`
}

// DraftEntry is one draft in list responses.
type DraftEntry struct {
	Owner     string `json:"owner"`
	Slug      string `json:"slug"`
	Name      string `json:"name"`
	UpdatedAt int64  `json:"updatedAt"`
}

// DraftsListResponse lists drafts.
type DraftsListResponse struct {
	Drafts []*DraftEntry `json:"drafts"`
}

// ErrorResponse is returned for API errors.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details string `json:"details,omitempty"`
}

// HealthResponse is returned by the health endpoint.
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
}
