// Package store persists uploaded files and created companies in SQLite. It
// provides the upload and create collaborators used by the submission
// coordinator, plus the listing and detail reads behind the company views.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gosimple/slug"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/goliatone/go-formwizard/pkg/model"
	"github.com/goliatone/go-formwizard/pkg/submit"
	"github.com/goliatone/go-formwizard/pkg/upload"
)

// ErrNotFound is returned when a company or upload does not exist.
var ErrNotFound = errors.New("store: not found")

// timestampLayout is fixed width so created_at sorts chronologically as text.
const timestampLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Company is a created company as listed by the read views.
type Company struct {
	ID        string       `json:"id"`
	Slug      string       `json:"slug"`
	Name      string       `json:"name"`
	LogoKey   string       `json:"logoKey,omitempty"`
	Fields    model.Record `json:"fields"`
	CreatedAt time.Time    `json:"createdAt"`
}

// Page selects a window of a listing.
type Page struct {
	Limit  int
	Offset int
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the store logger.
func WithLogger(logger *zap.Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithNameField changes the record field holding the company name.
func WithNameField(name string) Option {
	return func(s *Store) {
		if name != "" {
			s.nameField = name
		}
	}
}

// WithLogoField changes the record field holding the logo storage key.
func WithLogoField(name string) Option {
	return func(s *Store) {
		if name != "" {
			s.logoField = name
		}
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// Store is a SQLite backed collaborator.
type Store struct {
	db        *sql.DB
	logger    *zap.Logger
	nameField string
	logoField string
	now       func() time.Time
}

// Open opens dsn with the modernc SQLite driver and migrates the schema.
func Open(ctx context.Context, dsn string, opts ...Option) (*Store, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", dsn, err)
	}
	db.SetMaxOpenConns(1)

	s := New(db, opts...)
	if err := s.Migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// New wraps an existing database handle. Call Migrate before use.
func New(db *sql.DB, opts ...Option) *Store {
	s := &Store{
		db:        db,
		logger:    zap.NewNop(),
		nameField: "legalName",
		logoField: submit.DefaultStorageKeyField,
		now:       time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// Migrate creates the tables when missing.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, "PRAGMA foreign_keys = ON"); err != nil {
		return fmt.Errorf("store: enable foreign keys: %w", err)
	}
	_, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS uploads (
			storage_key TEXT PRIMARY KEY,
			file_name   TEXT NOT NULL,
			mime_type   TEXT NOT NULL,
			size_bytes  INTEGER NOT NULL,
			content     BLOB NOT NULL,
			created_at  TEXT NOT NULL
		);

		CREATE TABLE IF NOT EXISTS companies (
			id         TEXT PRIMARY KEY,
			slug       TEXT NOT NULL UNIQUE,
			name       TEXT NOT NULL,
			logo_key   TEXT REFERENCES uploads(storage_key),
			payload    TEXT NOT NULL,
			created_at TEXT NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_companies_created ON companies (created_at DESC);
	`)
	if err != nil {
		return fmt.Errorf("store: migrate: %w", err)
	}
	return nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Collaborators returns the store as the coordinator's upload and create
// collaborators.
func (s *Store) Collaborators() submit.Collaborators {
	return submit.Collaborators{Upload: s, Create: s}
}

// Upload stores file and returns a fresh storage key.
func (s *Store) Upload(ctx context.Context, file upload.File) (submit.UploadResult, error) {
	key := uuid.NewString()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO uploads (storage_key, file_name, mime_type, size_bytes, content, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		key, file.Name, file.MimeType, file.Size(), file.Content, s.now().UTC().Format(timestampLayout),
	)
	if err != nil {
		return submit.UploadResult{}, fmt.Errorf("store: insert upload: %w", err)
	}
	s.logger.Debug("upload stored", zap.String("key", key), zap.Int64("bytes", file.Size()))
	return submit.UploadResult{StorageKey: key}, nil
}

// File returns the upload stored under key.
func (s *Store) File(ctx context.Context, key string) (upload.File, error) {
	var file upload.File
	err := s.db.QueryRowContext(ctx,
		`SELECT file_name, mime_type, content FROM uploads WHERE storage_key = ?`, key,
	).Scan(&file.Name, &file.MimeType, &file.Content)
	if errors.Is(err, sql.ErrNoRows) {
		return upload.File{}, ErrNotFound
	}
	if err != nil {
		return upload.File{}, fmt.Errorf("store: read upload: %w", err)
	}
	return file, nil
}

// Create inserts a company from the flattened wizard record. A missing name,
// a name whose slug is taken, or an unknown logo key is reported as
// *submit.FieldError so presentation can point at the field.
func (s *Store) Create(ctx context.Context, record model.Record) (submit.Entity, error) {
	name := strings.TrimSpace(fmt.Sprint(valueOr(record[s.nameField], "")))
	if name == "" {
		return submit.Entity{}, fieldError(s.nameField, "is required")
	}
	id := uuid.NewString()
	companySlug := slug.Make(name)
	if companySlug == "" {
		companySlug = "company-" + id[:8]
	}
	logoKey, _ := record[s.logoField].(string)

	payload, err := json.Marshal(record)
	if err != nil {
		return submit.Entity{}, fmt.Errorf("store: encode record: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return submit.Entity{}, fmt.Errorf("store: begin: %w", err)
	}
	defer tx.Rollback()

	var exists int
	err = tx.QueryRowContext(ctx, `SELECT COUNT(1) FROM companies WHERE slug = ?`, companySlug).Scan(&exists)
	if err != nil {
		return submit.Entity{}, fmt.Errorf("store: check slug: %w", err)
	}
	if exists > 0 {
		return submit.Entity{}, fieldError(s.nameField, "a company with this name already exists")
	}

	var logo any
	if logoKey != "" {
		var found int
		err = tx.QueryRowContext(ctx, `SELECT COUNT(1) FROM uploads WHERE storage_key = ?`, logoKey).Scan(&found)
		if err != nil {
			return submit.Entity{}, fmt.Errorf("store: check upload: %w", err)
		}
		if found == 0 {
			return submit.Entity{}, fieldError(s.logoField, "refers to an unknown upload")
		}
		logo = logoKey
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO companies (id, slug, name, logo_key, payload, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		id, companySlug, name, logo, string(payload), s.now().UTC().Format(timestampLayout),
	)
	if err != nil {
		return submit.Entity{}, fmt.Errorf("store: insert company: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return submit.Entity{}, fmt.Errorf("store: commit: %w", err)
	}

	s.logger.Info("company created", zap.String("id", id), zap.String("slug", companySlug))
	fields := record.Clone()
	fields["slug"] = companySlug
	return submit.Entity{ID: id, Fields: fields}, nil
}

// List returns companies newest first and the total count.
func (s *Store) List(ctx context.Context, page Page) ([]Company, int, error) {
	if page.Limit <= 0 || page.Limit > 100 {
		page.Limit = 20
	}
	if page.Offset < 0 {
		page.Offset = 0
	}

	var total int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM companies`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("store: count companies: %w", err)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, slug, name, logo_key, payload, created_at FROM companies ORDER BY created_at DESC, id LIMIT ? OFFSET ?`,
		page.Limit, page.Offset,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("store: list companies: %w", err)
	}
	defer rows.Close()

	companies := make([]Company, 0, page.Limit)
	for rows.Next() {
		company, err := scanCompany(rows)
		if err != nil {
			return nil, 0, err
		}
		companies = append(companies, company)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("store: list companies: %w", err)
	}
	return companies, total, nil
}

// Get returns the company with id, or ErrNotFound.
func (s *Store) Get(ctx context.Context, id string) (Company, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, slug, name, logo_key, payload, created_at FROM companies WHERE id = ?`, id,
	)
	company, err := scanCompany(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Company{}, ErrNotFound
	}
	return company, err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanCompany(row scanner) (Company, error) {
	var (
		company   Company
		logo      sql.NullString
		payload   string
		createdAt string
	)
	if err := row.Scan(&company.ID, &company.Slug, &company.Name, &logo, &payload, &createdAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Company{}, err
		}
		return Company{}, fmt.Errorf("store: scan company: %w", err)
	}
	company.LogoKey = logo.String
	if err := json.Unmarshal([]byte(payload), &company.Fields); err != nil {
		return Company{}, fmt.Errorf("store: decode company %s: %w", company.ID, err)
	}
	ts, err := time.Parse(time.RFC3339Nano, createdAt)
	if err != nil {
		return Company{}, fmt.Errorf("store: parse created_at for %s: %w", company.ID, err)
	}
	company.CreatedAt = ts
	return company, nil
}

func fieldError(field, message string) error {
	return &submit.FieldError{
		Message: fmt.Sprintf("%s %s", field, message),
		Fields:  map[string][]string{field: {message}},
	}
}

func valueOr(value, fallback any) any {
	if value == nil {
		return fallback
	}
	return value
}
