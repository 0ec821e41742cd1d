// Package store provides SQLite-backed storage for the codeset server: it
// is the system of record for drafts, their code statuses, and saved
// versions.
package store

import (
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/zstd"
	_ "modernc.org/sqlite"

	"codeset/internal/fingerprint"
)

//go:embed schema.sql
var schemaSQL string

//go:embed pragmas.sql
var pragmasSQL string

var (
	ErrDraftNotFound   = errors.New("draft not found")
	ErrDraftExists     = errors.New("draft already exists")
	ErrVersionNotFound = errors.New("version not found")
)

// DB wraps a SQLite connection for codeset storage.
type DB struct {
	conn *sql.DB
	path string
}

// OpenDataDir opens or creates the database under the given data directory.
func OpenDataDir(root string) (*DB, error) {
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}
	return Open(filepath.Join(root, "codeset.db"))
}

// Open opens a database at the given path.
func Open(dbPath string) (*DB, error) {
	conn, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite: %w", err)
	}

	db := &DB{conn: conn, path: dbPath}

	// Apply pragmas
	for _, pragma := range strings.Split(pragmasSQL, "\n") {
		pragma = strings.TrimSpace(pragma)
		if pragma == "" || strings.HasPrefix(pragma, "--") {
			continue
		}
		if _, err := conn.Exec(pragma); err != nil {
			conn.Close()
			return nil, fmt.Errorf("applying pragma %q: %w", pragma, err)
		}
	}

	// Apply schema
	if _, err := conn.Exec(schemaSQL); err != nil {
		conn.Close()
		return nil, fmt.Errorf("applying schema: %w", err)
	}

	return db, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

// BeginTx starts a new transaction.
func (db *DB) BeginTx() (*sql.Tx, error) {
	return db.conn.Begin()
}

// ----- Drafts -----

// Draft is one codelist under construction.
type Draft struct {
	ID        string
	Owner     string
	Name      string
	Slug      string
	Hierarchy string
	CreatedAt int64
	UpdatedAt int64
}

// CreateDraft inserts a draft and its initial code rows. Each code in
// statuses gets its given status symbol; use "?" for untouched codes.
func (db *DB) CreateDraft(d *Draft, statuses map[string]string) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	ts := fingerprint.NowMs()
	_, err = tx.Exec(
		`INSERT INTO drafts (id, owner, name, slug, hierarchy, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		d.ID, d.Owner, d.Name, d.Slug, d.Hierarchy, ts, ts,
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE") {
			return ErrDraftExists
		}
		return fmt.Errorf("inserting draft: %w", err)
	}

	stmt, err := tx.Prepare(`INSERT INTO draft_codes (draft_id, code, status) VALUES (?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing code insert: %w", err)
	}
	defer stmt.Close()

	for code, symbol := range statuses {
		if _, err := stmt.Exec(d.ID, code, symbol); err != nil {
			return fmt.Errorf("inserting code %q: %w", code, err)
		}
	}

	d.CreatedAt = ts
	d.UpdatedAt = ts
	return tx.Commit()
}

// GetDraft retrieves a draft by owner and slug.
func (db *DB) GetDraft(owner, slug string) (*Draft, error) {
	var d Draft
	err := db.conn.QueryRow(
		`SELECT id, owner, name, slug, hierarchy, created_at, updated_at
		 FROM drafts WHERE owner = ? AND slug = ?`,
		owner, slug,
	).Scan(&d.ID, &d.Owner, &d.Name, &d.Slug, &d.Hierarchy, &d.CreatedAt, &d.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrDraftNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying draft: %w", err)
	}
	return &d, nil
}

// ListDrafts returns all drafts, optionally filtered by owner.
func (db *DB) ListDrafts(owner string) ([]*Draft, error) {
	var rows *sql.Rows
	var err error
	if owner == "" {
		rows, err = db.conn.Query(
			`SELECT id, owner, name, slug, hierarchy, created_at, updated_at
			 FROM drafts ORDER BY owner, slug`,
		)
	} else {
		rows, err = db.conn.Query(
			`SELECT id, owner, name, slug, hierarchy, created_at, updated_at
			 FROM drafts WHERE owner = ? ORDER BY slug`,
			owner,
		)
	}
	if err != nil {
		return nil, fmt.Errorf("querying drafts: %w", err)
	}
	defer rows.Close()

	var drafts []*Draft
	for rows.Next() {
		var d Draft
		if err := rows.Scan(&d.ID, &d.Owner, &d.Name, &d.Slug, &d.Hierarchy, &d.CreatedAt, &d.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scanning draft: %w", err)
		}
		drafts = append(drafts, &d)
	}
	return drafts, rows.Err()
}

// DeleteDraft removes a draft and its codes and versions.
func (db *DB) DeleteDraft(owner, slug string) error {
	result, err := db.conn.Exec(`DELETE FROM drafts WHERE owner = ? AND slug = ?`, owner, slug)
	if err != nil {
		return fmt.Errorf("deleting draft: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrDraftNotFound
	}
	return nil
}

// ----- Code statuses -----

// CodeStatuses returns the full code-to-status mapping for a draft.
func (db *DB) CodeStatuses(draftID string) (map[string]string, error) {
	rows, err := db.conn.Query(
		`SELECT code, status FROM draft_codes WHERE draft_id = ?`, draftID,
	)
	if err != nil {
		return nil, fmt.Errorf("querying code statuses: %w", err)
	}
	defer rows.Close()

	statuses := make(map[string]string)
	for rows.Next() {
		var code, symbol string
		if err := rows.Scan(&code, &symbol); err != nil {
			return nil, fmt.Errorf("scanning code status: %w", err)
		}
		statuses[code] = symbol
	}
	return statuses, rows.Err()
}

// SetCodeStatuses writes the given code-to-status changes for a draft in
// one transaction and bumps the draft's updated_at. Codes are grouped by
// status so each status is one UPDATE.
func (db *DB) SetCodeStatuses(draftID string, changes map[string]string) error {
	if len(changes) == 0 {
		return nil
	}

	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	statusToCodes := make(map[string][]string)
	for code, symbol := range changes {
		statusToCodes[symbol] = append(statusToCodes[symbol], code)
	}

	for symbol, codes := range statusToCodes {
		placeholders := make([]string, len(codes))
		args := make([]interface{}, 0, len(codes)+2)
		args = append(args, symbol, draftID)
		for i, code := range codes {
			placeholders[i] = "?"
			args = append(args, code)
		}
		query := fmt.Sprintf(
			`UPDATE draft_codes SET status = ? WHERE draft_id = ? AND code IN (%s)`,
			strings.Join(placeholders, ","),
		)
		if _, err := tx.Exec(query, args...); err != nil {
			return fmt.Errorf("updating statuses to %q: %w", symbol, err)
		}
	}

	_, err = tx.Exec(
		`UPDATE drafts SET updated_at = ? WHERE id = ?`,
		fingerprint.NowMs(), draftID,
	)
	if err != nil {
		return fmt.Errorf("touching draft: %w", err)
	}

	return tx.Commit()
}

// ----- Versions -----

// Version is an immutable saved snapshot of a draft's status table.
type Version struct {
	ID          int64
	DraftID     string
	Fingerprint string
	Tag         string
	CreatedAt   int64
}

// SaveVersion stores the code-to-status mapping as a new version. The blob
// is canonical JSON compressed with zstd; the fingerprint is computed over
// the mapping, so saving an unchanged draft is idempotent.
func (db *DB) SaveVersion(draftID, tag string, statuses map[string]string) (*Version, error) {
	fp, err := fingerprint.VersionIDHex("CodelistVersion", statuses)
	if err != nil {
		return nil, fmt.Errorf("computing fingerprint: %w", err)
	}

	canonical, err := fingerprint.CanonicalJSON(statuses)
	if err != nil {
		return nil, fmt.Errorf("serializing statuses: %w", err)
	}

	encoder, err := zstd.NewWriter(nil)
	if err != nil {
		return nil, fmt.Errorf("creating encoder: %w", err)
	}
	blob := encoder.EncodeAll(canonical, nil)
	encoder.Close()

	ts := fingerprint.NowMs()

	// Re-saving the same table returns the existing version.
	if existing, err := db.getVersionByFingerprint(draftID, fp); err == nil {
		return existing, nil
	} else if err != ErrVersionNotFound {
		return nil, err
	}

	var tagValue interface{}
	if tag != "" {
		tagValue = tag
	}
	result, err := db.conn.Exec(
		`INSERT INTO versions (draft_id, fingerprint, tag, created_at, blob)
		 VALUES (?, ?, ?, ?, ?)`,
		draftID, fp, tagValue, ts, blob,
	)
	if err != nil {
		return nil, fmt.Errorf("inserting version: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, err
	}

	return &Version{ID: id, DraftID: draftID, Fingerprint: fp, Tag: tag, CreatedAt: ts}, nil
}

// GetVersion retrieves a version by tag or fingerprint and returns its
// decompressed code-to-status mapping.
func (db *DB) GetVersion(draftID, tagOrFingerprint string) (*Version, map[string]string, error) {
	var v Version
	var tag sql.NullString
	var blob []byte
	err := db.conn.QueryRow(
		`SELECT id, draft_id, fingerprint, tag, created_at, blob FROM versions
		 WHERE draft_id = ? AND (tag = ? OR fingerprint = ?)`,
		draftID, tagOrFingerprint, tagOrFingerprint,
	).Scan(&v.ID, &v.DraftID, &v.Fingerprint, &tag, &v.CreatedAt, &blob)
	if err == sql.ErrNoRows {
		return nil, nil, ErrVersionNotFound
	}
	if err != nil {
		return nil, nil, fmt.Errorf("querying version: %w", err)
	}
	v.Tag = tag.String

	decoder, err := zstd.NewReader(nil)
	if err != nil {
		return nil, nil, fmt.Errorf("creating decoder: %w", err)
	}
	defer decoder.Close()
	canonical, err := decoder.DecodeAll(blob, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("decompressing version blob: %w", err)
	}

	var statuses map[string]string
	if err := json.Unmarshal(canonical, &statuses); err != nil {
		return nil, nil, fmt.Errorf("parsing version blob: %w", err)
	}

	return &v, statuses, nil
}

func (db *DB) getVersionByFingerprint(draftID, fp string) (*Version, error) {
	var v Version
	var tag sql.NullString
	err := db.conn.QueryRow(
		`SELECT id, draft_id, fingerprint, tag, created_at FROM versions
		 WHERE draft_id = ? AND fingerprint = ?`,
		draftID, fp,
	).Scan(&v.ID, &v.DraftID, &v.Fingerprint, &tag, &v.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrVersionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying version: %w", err)
	}
	v.Tag = tag.String
	return &v, nil
}
