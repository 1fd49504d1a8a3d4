package datasource

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/vanderheijden86/refnet/pkg/debug"
	"github.com/vanderheijden86/refnet/pkg/model"
)

// ErrUserNotFound is returned by GetUser for an unknown id. It carries a
// 404 status so the fetcher classifies it like the HTTP source does.
var ErrUserNotFound = &StatusError{Code: 404, Body: "user not found"}

const schema = `
CREATE TABLE IF NOT EXISTS users (
	id          INTEGER PRIMARY KEY,
	parent_id   INTEGER REFERENCES users(id),
	full_name   TEXT NOT NULL DEFAULT '',
	email       TEXT NOT NULL DEFAULT '',
	created_at  TEXT NOT NULL DEFAULT '',
	volume      REAL,
	commissions REAL
);
CREATE INDEX IF NOT EXISTS idx_users_parent ON users(parent_id);
CREATE TABLE IF NOT EXISTS viewer (
	id      INTEGER PRIMARY KEY CHECK (id = 1),
	user_id INTEGER NOT NULL,
	model   TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS claims (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	claimed_at TEXT NOT NULL
);
`

// descendantsQuery walks the subtree below a parent up to a depth limit,
// in preorder. The ancestors CTE yields every (ancestor, descendant) pair
// so each row can report its own subtree size.
const descendantsQuery = `
WITH RECURSIVE
sub(id, depth, path) AS (
	SELECT id, 1, printf('%020d', id) FROM users WHERE parent_id = ?1
	UNION ALL
	SELECT u.id, s.depth + 1, s.path || '/' || printf('%020d', u.id)
	FROM users u JOIN sub s ON u.parent_id = s.id
	WHERE s.depth < ?2
),
anc(ancestor, id) AS (
	SELECT id, id FROM users
	UNION ALL
	SELECT a.ancestor, u.id FROM users u JOIN anc a ON u.parent_id = a.id
)
SELECT u.id, u.full_name, u.email, u.created_at, u.volume, u.commissions,
	s.depth,
	(SELECT COUNT(*) - 1 FROM anc WHERE anc.ancestor = u.id),
	p.full_name, p.email
FROM sub s
JOIN users u ON u.id = s.id
LEFT JOIN users p ON p.id = u.parent_id
ORDER BY s.path
LIMIT ?3 OFFSET ?4
`

const countQuery = `
WITH RECURSIVE sub(id, depth) AS (
	SELECT id, 1 FROM users WHERE parent_id = ?1
	UNION ALL
	SELECT u.id, s.depth + 1 FROM users u JOIN sub s ON u.parent_id = s.id
	WHERE s.depth < ?2
)
SELECT COUNT(*) FROM sub
`

const summaryQuery = `
WITH RECURSIVE sub(id) AS (
	SELECT id FROM users WHERE parent_id = ?1
	UNION ALL
	SELECT u.id FROM users u JOIN sub s ON u.parent_id = s.id
)
SELECT
	(SELECT COUNT(*) FROM users WHERE parent_id = ?1),
	COALESCE(SUM(u.commissions), 0),
	COALESCE(SUM(u.volume), 0)
FROM sub JOIN users u ON u.id = sub.id
`

const distanceQuery = `
WITH RECURSIVE up(id, parent_id, dist) AS (
	SELECT id, parent_id, 0 FROM users WHERE id = ?1
	UNION ALL
	SELECT u.id, u.parent_id, up.dist + 1 FROM users u JOIN up ON u.id = up.parent_id
)
SELECT dist FROM up WHERE id = ?2
`

// SQLiteSource serves the collaborator API from a local fixture database.
type SQLiteSource struct {
	mu   sync.RWMutex
	db   *sql.DB
	path string

	// Multiplex, when above 1, makes every listing include that many levels
	// whatever maxDepth the caller asked for, like the production endpoint
	// does for some viewers.
	Multiplex int
}

// OpenSQLite opens the fixture at path. The file must already exist.
func OpenSQLite(path string) (*SQLiteSource, error) {
	db, err := openDB(path)
	if err != nil {
		return nil, err
	}
	return &SQLiteSource{db: db, path: path}, nil
}

func openDB(path string) (*sql.DB, error) {
	dsn := fmt.Sprintf("file:%s?mode=rw&_pragma=busy_timeout(5000)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("cannot open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("cannot open database %s: %w", path, err)
	}
	return db, nil
}

// Reopen swaps in a fresh connection to the same path. A fixture that was
// rewritten in place (rn demo replaces the file) is only visible after a
// reopen.
func (s *SQLiteSource) Reopen() error {
	db, err := openDB(s.path)
	if err != nil {
		return err
	}
	s.mu.Lock()
	old := s.db
	s.db = db
	s.mu.Unlock()
	debug.Log("sqlite: reopened %s", s.path)
	if old != nil {
		return old.Close()
	}
	return nil
}

func (s *SQLiteSource) conn() *sql.DB {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.db
}

// Close closes the database connection.
func (s *SQLiteSource) Close() error {
	if db := s.conn(); db != nil {
		return db.Close()
	}
	return nil
}

// Path returns the fixture file path.
func (s *SQLiteSource) Path() string { return s.path }

// GetDirectDescendants lists up to limit records of the subtree below
// parentID, depth-first, down to maxDepth levels.
func (s *SQLiteSource) GetDirectDescendants(ctx context.Context, parentID int64, maxDepth, limit, offset int) (model.RawPage, error) {
	maxDepth = max(maxDepth, s.Multiplex, 1)
	rows, err := s.conn().QueryContext(ctx, descendantsQuery, parentID, maxDepth, limit, offset)
	if err != nil {
		return model.RawPage{}, fmt.Errorf("query descendants of %d: %w", parentID, err)
	}
	defer rows.Close()

	page := model.RawPage{Users: []model.RawUserRecord{}}
	for rows.Next() {
		var (
			rec                     model.RawUserRecord
			volume, commissions     sql.NullFloat64
			parentName, parentEmail sql.NullString
		)
		if err := rows.Scan(&rec.UserID, &rec.FullName, &rec.Email, &rec.CreatedAt,
			&volume, &commissions, &rec.LevelInSubtree, &rec.TotalDescendants,
			&parentName, &parentEmail); err != nil {
			return model.RawPage{}, fmt.Errorf("scan descendant: %w", err)
		}
		if volume.Valid {
			v := volume.Float64
			rec.Volumen = &v
		}
		if commissions.Valid {
			c := commissions.Float64
			rec.ComisionesGeneradas = &c
		}
		if parentName.Valid {
			rec.DirectParentFullName = &parentName.String
		}
		if parentEmail.Valid {
			rec.DirectParentEmail = &parentEmail.String
		}
		page.Users = append(page.Users, rec)
	}
	if err := rows.Err(); err != nil {
		return model.RawPage{}, fmt.Errorf("error iterating descendants: %w", err)
	}

	var total int
	if err := s.conn().QueryRowContext(ctx, countQuery, parentID, maxDepth).Scan(&total); err != nil {
		return model.RawPage{}, fmt.Errorf("count descendants of %d: %w", parentID, err)
	}
	more := offset+len(page.Users) < total
	page.HasMore = &more
	page.TotalDescendants = &total

	var sum model.Summary
	if err := s.conn().QueryRowContext(ctx, summaryQuery, parentID).Scan(
		&sum.ActiveReferrals, &sum.TrailingCommissions, &sum.TotalVolume); err != nil {
		return model.RawPage{}, fmt.Errorf("summary of %d: %w", parentID, err)
	}
	page.Summary = &sum

	if lvl, ok := s.viewerDistance(ctx, parentID); ok {
		lvl++
		page.RequesterLevelToDescendant = &lvl
	}
	debug.Log("sqlite: %d records below %d (depth<=%d, offset %d, total %d)",
		len(page.Users), parentID, maxDepth, offset, total)
	return page, nil
}

// viewerDistance returns how many levels below the viewer id sits.
func (s *SQLiteSource) viewerDistance(ctx context.Context, id int64) (int, bool) {
	viewerID, ok := s.ViewerID(ctx)
	if !ok {
		return 0, false
	}
	var dist int
	if err := s.conn().QueryRowContext(ctx, distanceQuery, id, viewerID).Scan(&dist); err != nil {
		return 0, false
	}
	return dist, true
}

// GetViewerModel reads the viewer row. A fixture without one is b2c.
func (s *SQLiteSource) GetViewerModel(ctx context.Context) (model.ViewerModel, error) {
	var m string
	err := s.conn().QueryRowContext(ctx, `SELECT model FROM viewer WHERE id = 1`).Scan(&m)
	if errors.Is(err, sql.ErrNoRows) {
		return model.ViewerB2C, nil
	}
	if err != nil {
		return "", fmt.Errorf("read viewer: %w", err)
	}
	return model.ParseViewerModel(m), nil
}

// ViewerID returns the fixture's signed-in user, if one is recorded.
func (s *SQLiteSource) ViewerID(ctx context.Context) (int64, bool) {
	var id int64
	if err := s.conn().QueryRowContext(ctx, `SELECT user_id FROM viewer WHERE id = 1`).Scan(&id); err != nil {
		return 0, false
	}
	return id, true
}

// GetUser returns one user record with its subtree size.
func (s *SQLiteSource) GetUser(ctx context.Context, id int64) (model.RawUserRecord, error) {
	const q = `
WITH RECURSIVE sub(id) AS (
	SELECT id FROM users WHERE parent_id = ?1
	UNION ALL
	SELECT u.id FROM users u JOIN sub s ON u.parent_id = s.id
)
SELECT u.id, u.full_name, u.email, u.created_at, u.volume, (SELECT COUNT(*) FROM sub)
FROM users u WHERE u.id = ?1`

	var (
		rec    model.RawUserRecord
		volume sql.NullFloat64
	)
	err := s.conn().QueryRowContext(ctx, q, id).Scan(&rec.UserID, &rec.FullName, &rec.Email,
		&rec.CreatedAt, &volume, &rec.TotalDescendants)
	if errors.Is(err, sql.ErrNoRows) {
		return model.RawUserRecord{}, ErrUserNotFound
	}
	if err != nil {
		return model.RawUserRecord{}, fmt.Errorf("read user %d: %w", id, err)
	}
	if volume.Valid {
		rec.Volumen = &volume.Float64
	}
	return rec, nil
}

// ClaimedCount counts the claims recorded so far.
func (s *SQLiteSource) ClaimedCount(ctx context.Context) (int, error) {
	var n int
	if err := s.conn().QueryRowContext(ctx, `SELECT COUNT(*) FROM claims`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count claims: %w", err)
	}
	return n, nil
}

// ClaimAll records a claim immediately.
func (s *SQLiteSource) ClaimAll(ctx context.Context) error {
	_, err := s.conn().ExecContext(ctx, `INSERT INTO claims (claimed_at) VALUES (?)`,
		time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("record claim: %w", err)
	}
	return nil
}
