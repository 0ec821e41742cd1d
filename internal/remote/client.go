// Package remote provides client functionality for communicating with codeset servers.
package remote

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"codeset/internal/editsync"
	"codeset/internal/proto"
)

// DefaultServer is used when no explicit remote is configured.
// Can be overridden via CODESET_SERVER environment variable.
const DefaultServer = "http://localhost:7448"

// Client communicates with a codeset server for one draft.
type Client struct {
	BaseURL    string
	Owner      string
	Draft      string
	HTTPClient *http.Client
	Actor      string
}

// NewClient creates a new codeset client.
// baseURL should be the server base (e.g., http://localhost:7448);
// owner and draft specify the draft to operate on.
func NewClient(baseURL, owner, draft string) *Client {
	return &Client{
		BaseURL: baseURL,
		Owner:   owner,
		Draft:   draft,
		HTTPClient: &http.Client{
			Timeout: 1 * time.Minute,
		},
		Actor: os.Getenv("USER"),
	}
}

// draftPath returns the path prefix for draft-scoped endpoints.
func (c *Client) draftPath() string {
	return "/" + c.Owner + "/" + c.Draft
}

// --- API methods ---

// SendBatch posts an ordered batch of status updates and returns how many
// were applied from the head. It satisfies the edit synchronizer's Sender
// interface: a short count with a nil error means the tail stays queued.
func (c *Client) SendBatch(edits []editsync.Edit) (int, error) {
	updates := make([]proto.StatusUpdate, len(edits))
	for i, e := range edits {
		updates[i] = proto.StatusUpdate{Code: e.Code, Status: e.Status.String()}
	}

	body, err := json.Marshal(proto.UpdateRequest{Updates: updates})
	if err != nil {
		return 0, fmt.Errorf("marshaling request: %w", err)
	}

	resp, err := c.post(c.draftPath()+"/v1/update", body)
	if err != nil {
		return 0, fmt.Errorf("sending request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, c.parseError(resp)
	}

	var result proto.UpdateResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return 0, fmt.Errorf("decoding response: %w", err)
	}
	if result.Error != "" {
		return result.AppliedCount, fmt.Errorf("update rejected: %s", result.Error)
	}
	return result.AppliedCount, nil
}

// GetState retrieves the full server-side state of the draft.
func (c *Client) GetState() (*proto.DraftState, error) {
	resp, err := c.get(c.draftPath() + "/v1/state")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, c.parseError(resp)
	}

	var result proto.DraftState
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}
	return &result, nil
}

// CreateDraft creates a new draft on the server.
func (c *Client) CreateDraft(name, hierarchy string, codes []string) (*proto.CreateDraftResponse, error) {
	body, err := json.Marshal(proto.CreateDraftRequest{
		Owner:     c.Owner,
		Name:      name,
		Hierarchy: hierarchy,
		Codes:     codes,
	})
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}

	resp, err := c.post("/admin/v1/drafts", body)
	if err != nil {
		return nil, fmt.Errorf("sending request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		return nil, c.parseError(resp)
	}

	var result proto.CreateDraftResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}
	return &result, nil
}

// ListDrafts lists the owner's drafts on the server.
func (c *Client) ListDrafts() ([]*proto.DraftEntry, error) {
	resp, err := c.get("/admin/v1/drafts?owner=" + c.Owner)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, c.parseError(resp)
	}

	var result proto.DraftsListResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}
	return result.Drafts, nil
}

// Save saves the draft's current state as a version, optionally tagged.
func (c *Client) Save(tag string) (*proto.SaveResponse, error) {
	body, err := json.Marshal(struct {
		Tag string `json:"tag,omitempty"`
	}{Tag: tag})
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}

	resp, err := c.post(c.draftPath()+"/v1/save", body)
	if err != nil {
		return nil, fmt.Errorf("sending request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		return nil, c.parseError(resp)
	}

	var result proto.SaveResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}
	return &result, nil
}

// Download retrieves a saved version by tag or fingerprint. The server
// refuses versions that still contain unresolved or conflicting codes.
func (c *Client) Download(tagOrFingerprint string) (*proto.VersionDownload, error) {
	resp, err := c.get(c.draftPath() + "/v1/versions/" + tagOrFingerprint + "/download")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, c.parseError(resp)
	}

	var result proto.VersionDownload
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}
	return &result, nil
}

// Health checks if the server is healthy.
func (c *Client) Health() error {
	resp, err := c.get("/health")
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("server unhealthy: status %d", resp.StatusCode)
	}
	return nil
}

// --- Helper methods ---

func (c *Client) get(path string) (*http.Response, error) {
	req, err := http.NewRequest("GET", c.BaseURL+path, nil)
	if err != nil {
		return nil, err
	}
	return c.HTTPClient.Do(req)
}

func (c *Client) post(path string, body []byte) (*http.Response, error) {
	req, err := http.NewRequest("POST", c.BaseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Codeset-Actor", c.Actor)
	return c.HTTPClient.Do(req)
}

func (c *Client) parseError(resp *http.Response) error {
	body, _ := io.ReadAll(resp.Body)
	var errResp proto.ErrorResponse
	if err := json.Unmarshal(body, &errResp); err == nil && errResp.Error != "" {
		if errResp.Details != "" {
			return fmt.Errorf("%s: %s", errResp.Error, errResp.Details)
		}
		return fmt.Errorf("%s", errResp.Error)
	}
	return fmt.Errorf("server error: %d %s", resp.StatusCode, string(body))
}

// --- Config ---

// RemoteEntry holds configuration for a single remote.
type RemoteEntry struct {
	URL   string `json:"url"`
	Owner string `json:"owner"`
	Draft string `json:"draft"`
}

// Config holds remote configuration.
type Config struct {
	Remotes map[string]*RemoteEntry `json:"remotes"` // name -> entry
}

// ConfigPath returns the path to the remote config file.
func ConfigPath() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".codeset", "remotes.json")
}

// LoadConfig loads the remote configuration.
func LoadConfig() (*Config, error) {
	data, err := os.ReadFile(ConfigPath())
	if os.IsNotExist(err) {
		return &Config{Remotes: make(map[string]*RemoteEntry)}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if cfg.Remotes == nil {
		cfg.Remotes = make(map[string]*RemoteEntry)
	}
	return &cfg, nil
}

// SaveConfig saves the remote configuration.
func SaveConfig(cfg *Config) error {
	path := ConfigPath()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating config dir: %w", err)
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	return nil
}

// GetRemote gets the entry for a named remote.
// If the remote is not configured and the name is "origin", it falls back
// to CODESET_SERVER and then DefaultServer.
func GetRemote(name string) (*RemoteEntry, error) {
	cfg, err := LoadConfig()
	if err != nil {
		return nil, err
	}

	entry, ok := cfg.Remotes[name]
	if !ok {
		if name == "origin" {
			serverURL := os.Getenv("CODESET_SERVER")
			if serverURL == "" {
				serverURL = DefaultServer
			}
			return &RemoteEntry{URL: serverURL}, nil
		}
		return nil, fmt.Errorf("remote %q not configured", name)
	}
	return entry, nil
}

// SetRemote sets the entry for a named remote.
func SetRemote(name string, entry *RemoteEntry) error {
	cfg, err := LoadConfig()
	if err != nil {
		return err
	}

	cfg.Remotes[name] = entry
	return SaveConfig(cfg)
}

// DeleteRemote deletes a named remote.
func DeleteRemote(name string) error {
	cfg, err := LoadConfig()
	if err != nil {
		return err
	}

	if _, ok := cfg.Remotes[name]; !ok {
		return fmt.Errorf("remote %q not found", name)
	}

	delete(cfg.Remotes, name)
	return SaveConfig(cfg)
}

// ListRemotes returns all configured remotes.
func ListRemotes() (map[string]*RemoteEntry, error) {
	cfg, err := LoadConfig()
	if err != nil {
		return nil, err
	}
	return cfg.Remotes, nil
}

// NewClientForRemote creates a new client for a named remote, with owner
// and draft overridable by the caller when the entry leaves them empty.
func NewClientForRemote(name, owner, draft string) (*Client, error) {
	entry, err := GetRemote(name)
	if err != nil {
		return nil, err
	}
	if entry.Owner != "" {
		owner = entry.Owner
	}
	if entry.Draft != "" {
		draft = entry.Draft
	}
	return NewClient(entry.URL, owner, draft), nil
}
