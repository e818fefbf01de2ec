// Package ledger is the commitment ledger: the SQLite record of
// projects, knowledge areas, output commitments, and routed items. It
// is the durable side of routing: sessions are volatile, the ledger is
// not.
package ledger

import (
	"database/sql"
	"embed"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Store wraps a SQLite database holding the routing ledger.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the ledger database in dataDir and runs
// pending migrations. Pass ":memory:" for an in-memory database (tests).
func Open(dataDir string) (*Store, error) {
	var dsn string
	if dataDir == ":memory:" {
		dsn = ":memory:"
	} else {
		if err := os.MkdirAll(dataDir, 0o755); err != nil {
			return nil, fmt.Errorf("creating data directory: %w", err)
		}
		dsn = filepath.Join(dataDir, "engram.db")
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	// Limit to single connection to avoid "database is locked" errors.
	db.SetMaxOpenConns(1)

	// Set busy timeout so concurrent access waits briefly instead of failing immediately.
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}

	// Enable WAL mode for better concurrent read performance.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting journal mode: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	if _, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS schema_version (
		version INTEGER PRIMARY KEY,
		applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
	)`); err != nil {
		return fmt.Errorf("creating schema_version table: %w", err)
	}

	entries, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("reading migrations directory: %w", err)
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name() < entries[j].Name()
	})

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".sql") {
			continue
		}

		version, err := parseMigrationVersion(entry.Name())
		if err != nil {
			return err
		}

		var exists int
		if err := s.db.QueryRow("SELECT COUNT(*) FROM schema_version WHERE version = ?", version).Scan(&exists); err != nil {
			return fmt.Errorf("checking migration %d: %w", version, err)
		}
		if exists > 0 {
			continue
		}

		sqlBytes, err := migrationsFS.ReadFile("migrations/" + entry.Name())
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", entry.Name(), err)
		}

		tx, err := s.db.Begin()
		if err != nil {
			return fmt.Errorf("beginning transaction for migration %d: %w", version, err)
		}
		if _, err := tx.Exec(string(sqlBytes)); err != nil {
			tx.Rollback()
			return fmt.Errorf("applying migration %d: %w", version, err)
		}
		if _, err := tx.Exec("INSERT INTO schema_version (version) VALUES (?)", version); err != nil {
			tx.Rollback()
			return fmt.Errorf("recording migration %d: %w", version, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("committing migration %d: %w", version, err)
		}
	}

	return nil
}

func parseMigrationVersion(filename string) (int, error) {
	var version int
	if _, err := fmt.Sscanf(filename, "%d_", &version); err != nil {
		return 0, fmt.Errorf("parsing migration version from %q: %w", filename, err)
	}
	return version, nil
}

// AppliedMigrations returns the applied migration versions in ascending order.
func (s *Store) AppliedMigrations() ([]int, error) {
	rows, err := s.db.Query("SELECT version FROM schema_version ORDER BY version ASC")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var versions []int
	for rows.Next() {
		var v int
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		versions = append(versions, v)
	}
	return versions, rows.Err()
}

func fmtTime(t time.Time) string { return t.UTC().Format(time.RFC3339) }

func parseTime(s string) (time.Time, error) { return time.Parse(time.RFC3339, s) }

func fmtNullableTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return fmtTime(*t)
}

func parseNullableTime(ns sql.NullString) (*time.Time, error) {
	if !ns.Valid || ns.String == "" {
		return nil, nil
	}
	t, err := parseTime(ns.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// --- Projects ---

func (s *Store) CreateProject(p Project) error {
	status := p.Status
	if status == "" {
		status = "active"
	}
	_, err := s.db.Exec(`
		INSERT INTO projects (id, title, status, created_at, last_used_at)
		VALUES (?, ?, ?, ?, ?)`,
		p.ID, p.Title, status, fmtTime(p.CreatedAt), fmtTime(p.LastUsedAt),
	)
	return err
}

func (s *Store) GetProjectByTitle(title string) (Project, error) {
	var p Project
	var createdAt, lastUsedAt string
	err := s.db.QueryRow(`
		SELECT id, title, status, created_at, last_used_at
		FROM projects WHERE title = ?`, title,
	).Scan(&p.ID, &p.Title, &p.Status, &createdAt, &lastUsedAt)
	if err == sql.ErrNoRows {
		return Project{}, ErrNotFound
	}
	if err != nil {
		return Project{}, err
	}
	if p.CreatedAt, err = parseTime(createdAt); err != nil {
		return Project{}, fmt.Errorf("parsing created_at: %w", err)
	}
	if p.LastUsedAt, err = parseTime(lastUsedAt); err != nil {
		return Project{}, fmt.Errorf("parsing last_used_at: %w", err)
	}
	return p, nil
}

func (s *Store) ListProjects(status string) ([]Project, error) {
	rows, err := s.db.Query(`
		SELECT id, title, status, created_at, last_used_at
		FROM projects WHERE (? = '' OR status = ?) ORDER BY last_used_at DESC`,
		status, status,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []Project
	for rows.Next() {
		var p Project
		var createdAt, lastUsedAt string
		if err := rows.Scan(&p.ID, &p.Title, &p.Status, &createdAt, &lastUsedAt); err != nil {
			return nil, err
		}
		if p.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, fmt.Errorf("parsing created_at: %w", err)
		}
		if p.LastUsedAt, err = parseTime(lastUsedAt); err != nil {
			return nil, fmt.Errorf("parsing last_used_at: %w", err)
		}
		results = append(results, p)
	}
	return results, rows.Err()
}

// TouchProject bumps the project's last_used_at after a successful save.
func (s *Store) TouchProject(id string, at time.Time) error {
	res, err := s.db.Exec(`UPDATE projects SET last_used_at = ? WHERE id = ?`, fmtTime(at), id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// --- Areas ---

func (s *Store) CreateArea(a Area) error {
	status := a.Status
	if status == "" {
		status = "active"
	}
	_, err := s.db.Exec(`
		INSERT INTO areas (id, title, status, created_at)
		VALUES (?, ?, ?, ?)`,
		a.ID, a.Title, status, fmtTime(a.CreatedAt),
	)
	return err
}

func (s *Store) GetAreaByTitle(title string) (Area, error) {
	var a Area
	var createdAt string
	err := s.db.QueryRow(`
		SELECT id, title, status, created_at FROM areas WHERE title = ?`, title,
	).Scan(&a.ID, &a.Title, &a.Status, &createdAt)
	if err == sql.ErrNoRows {
		return Area{}, ErrNotFound
	}
	if err != nil {
		return Area{}, err
	}
	if a.CreatedAt, err = parseTime(createdAt); err != nil {
		return Area{}, fmt.Errorf("parsing created_at: %w", err)
	}
	return a, nil
}

func (s *Store) ListAreas() ([]Area, error) {
	rows, err := s.db.Query(`SELECT id, title, status, created_at FROM areas ORDER BY title ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []Area
	for rows.Next() {
		var a Area
		var createdAt string
		if err := rows.Scan(&a.ID, &a.Title, &a.Status, &createdAt); err != nil {
			return nil, err
		}
		if a.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, fmt.Errorf("parsing created_at: %w", err)
		}
		results = append(results, a)
	}
	return results, rows.Err()
}

// --- Commitments ---

func (s *Store) CreateCommitment(c Commitment) error {
	_, err := s.db.Exec(`
		INSERT INTO commitments (id, area_id, description, fulfilled, created_at, fulfilled_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		c.ID, c.AreaID, c.Description, boolToInt(c.Fulfilled), fmtTime(c.CreatedAt), fmtNullableTime(c.FulfilledAt),
	)
	return err
}

func (s *Store) ListCommitments(areaID string) ([]Commitment, error) {
	rows, err := s.db.Query(`
		SELECT id, area_id, description, fulfilled, created_at, fulfilled_at
		FROM commitments WHERE area_id = ? ORDER BY created_at ASC`, areaID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []Commitment
	for rows.Next() {
		c, err := scanCommitment(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, c)
	}
	return results, rows.Err()
}

// UnfulfilledCommitment returns the oldest open commitment for the
// area, or ErrNotFound when every commitment is fulfilled.
func (s *Store) UnfulfilledCommitment(areaID string) (Commitment, error) {
	row := s.db.QueryRow(`
		SELECT id, area_id, description, fulfilled, created_at, fulfilled_at
		FROM commitments WHERE area_id = ? AND fulfilled = 0
		ORDER BY created_at ASC LIMIT 1`, areaID,
	)
	c, err := scanCommitment(row)
	if err == sql.ErrNoRows {
		return Commitment{}, ErrNotFound
	}
	if err != nil {
		return Commitment{}, err
	}
	return c, nil
}

// FulfillCommitment marks the commitment delivered. Explicit user
// action only; a save never calls this.
func (s *Store) FulfillCommitment(id string, at time.Time) error {
	res, err := s.db.Exec(`
		UPDATE commitments SET fulfilled = 1, fulfilled_at = ? WHERE id = ? AND fulfilled = 0`,
		fmtTime(at), id,
	)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCommitment(row rowScanner) (Commitment, error) {
	var c Commitment
	var fulfilled int
	var createdAt string
	var fulfilledAt sql.NullString
	if err := row.Scan(&c.ID, &c.AreaID, &c.Description, &fulfilled, &createdAt, &fulfilledAt); err != nil {
		return Commitment{}, err
	}
	c.Fulfilled = fulfilled != 0
	var err error
	if c.CreatedAt, err = parseTime(createdAt); err != nil {
		return Commitment{}, fmt.Errorf("parsing created_at: %w", err)
	}
	if c.FulfilledAt, err = parseNullableTime(fulfilledAt); err != nil {
		return Commitment{}, fmt.Errorf("parsing fulfilled_at: %w", err)
	}
	return c, nil
}

// --- Items ---

func (s *Store) SaveItem(i Item) error {
	_, err := s.db.Exec(`
		INSERT INTO items (id, title, category, project_id, area_id, commitment_id, body, path, created_at, expires_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		i.ID, i.Title, string(i.Category), i.ProjectID, i.AreaID, i.CommitmentID,
		i.Body, i.Path, fmtTime(i.CreatedAt), fmtNullableTime(i.ExpiresAt),
	)
	return err
}

func (s *Store) GetItem(id string) (Item, error) {
	row := s.db.QueryRow(`
		SELECT id, title, category, project_id, area_id, commitment_id, body, path, created_at, expires_at
		FROM items WHERE id = ?`, id,
	)
	i, err := scanItem(row)
	if err == sql.ErrNoRows {
		return Item{}, ErrNotFound
	}
	if err != nil {
		return Item{}, err
	}
	return i, nil
}

// ListExpired returns every item whose expiry deadline has passed.
func (s *Store) ListExpired(now time.Time) ([]Item, error) {
	return s.queryItems(`
		SELECT id, title, category, project_id, area_id, commitment_id, body, path, created_at, expires_at
		FROM items WHERE expires_at IS NOT NULL AND expires_at <= ?
		ORDER BY expires_at ASC`, fmtTime(now))
}

// ListProvisional returns the inbox: uncategorized items still waiting
// for a destination.
func (s *Store) ListProvisional() ([]Item, error) {
	return s.queryItems(`
		SELECT id, title, category, project_id, area_id, commitment_id, body, path, created_at, expires_at
		FROM items WHERE expires_at IS NOT NULL
		ORDER BY expires_at ASC`)
}

func (s *Store) queryItems(query string, args ...any) ([]Item, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []Item
	for rows.Next() {
		i, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, i)
	}
	return results, rows.Err()
}

func scanItem(row rowScanner) (Item, error) {
	var i Item
	var category string
	var projectID, areaID, commitmentID sql.NullString
	var createdAt string
	var expiresAt sql.NullString
	if err := row.Scan(&i.ID, &i.Title, &category, &projectID, &areaID, &commitmentID,
		&i.Body, &i.Path, &createdAt, &expiresAt); err != nil {
		return Item{}, err
	}
	i.Category = Category(category)
	i.ProjectID = projectID.String
	i.AreaID = areaID.String
	i.CommitmentID = commitmentID.String
	var err error
	if i.CreatedAt, err = parseTime(createdAt); err != nil {
		return Item{}, fmt.Errorf("parsing created_at: %w", err)
	}
	if i.ExpiresAt, err = parseNullableTime(expiresAt); err != nil {
		return Item{}, fmt.Errorf("parsing expires_at: %w", err)
	}
	return i, nil
}

func (s *Store) DeleteItem(id string) error {
	res, err := s.db.Exec(`DELETE FROM items WHERE id = ?`, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// --- Settings ---

func (s *Store) SetSetting(key, value string) error {
	_, err := s.db.Exec(`
		INSERT INTO settings (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, value, fmtTime(time.Now()),
	)
	return err
}

func (s *Store) GetSetting(key string) (string, error) {
	var value string
	err := s.db.QueryRow("SELECT value FROM settings WHERE key = ?", key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", ErrNotFound
	}
	return value, err
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
