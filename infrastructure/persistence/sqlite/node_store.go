// Package sqlite stores sitemap pages in a local SQLite database
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/goccy/go-json"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"sitemap-backend/domain/core/entities"
	"sitemap-backend/domain/core/valueobjects"
	pkgerrors "sitemap-backend/pkg/errors"
)

const schema = `
CREATE TABLE IF NOT EXISTS pages (
  sitemap_id INTEGER NOT NULL,
  id         INTEGER NOT NULL,
  parent_id  INTEGER,
  is_root    INTEGER NOT NULL DEFAULT 0,
  title      TEXT NOT NULL DEFAULT '',
  path       TEXT NOT NULL DEFAULT '',
  x          REAL,
  y          REAL,
  status     TEXT NOT NULL DEFAULT 'planned',
  attributes TEXT NOT NULL DEFAULT '{}',
  version    INTEGER NOT NULL DEFAULT 1,
  updated_at TEXT NOT NULL,
  PRIMARY KEY (sitemap_id, id)
);
CREATE INDEX IF NOT EXISTS idx_pages_parent ON pages(sitemap_id, parent_id);
`

// NodeStore is a ports.NodeStore over SQLite. Pages are listed in the order
// they were first inserted.
type NodeStore struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewNodeStore opens (creating if needed) the database at dbPath
func NewNodeStore(dbPath string, logger *zap.Logger) (*NodeStore, error) {
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
			return nil, fmt.Errorf("create db dir: %w", err)
		}
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// one writer keeps SQLite from returning SQLITE_BUSY
	db.SetMaxOpenConns(1)

	s := &NodeStore{db: db, logger: logger}
	if err := s.ensureSchema(context.Background()); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *NodeStore) ensureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("create pages table: %w", err)
	}
	return nil
}

// Close releases the database
func (s *NodeStore) Close() error {
	return s.db.Close()
}

// Ping checks the database connection
func (s *NodeStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// ListBySitemap returns every page of a sitemap in insertion order
func (s *NodeStore) ListBySitemap(ctx context.Context, sitemapID valueobjects.SitemapID) ([]*entities.Node, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT id, parent_id, is_root, title, path, x, y, status, attributes, version, updated_at
FROM pages
WHERE sitemap_id = ?
ORDER BY rowid;
`, sitemapID.Int64())
	if err != nil {
		return nil, pkgerrors.NewDatabaseError("list_pages", err)
	}
	defer rows.Close()

	var out []*entities.Node
	for rows.Next() {
		var (
			id         int64
			parentID   sql.NullInt64
			isRoot     bool
			snap       entities.NodeSnapshot
			x, y       sql.NullFloat64
			status     string
			attributes string
			updatedAt  string
		)
		if err := rows.Scan(&id, &parentID, &isRoot, &snap.Title, &snap.Path, &x, &y, &status, &attributes, &snap.Version, &updatedAt); err != nil {
			return nil, pkgerrors.NewDatabaseError("scan_page", err)
		}

		if snap.ID, err = valueobjects.NewNodeID(id); err != nil {
			return nil, unreadable(id, err)
		}
		snap.SitemapID = sitemapID
		snap.IsRoot = isRoot
		snap.Status = entities.NodeStatus(status)
		if parentID.Valid {
			p, err := valueobjects.NewNodeID(parentID.Int64)
			if err != nil {
				return nil, unreadable(id, err)
			}
			snap.ParentID = &p
		}
		if x.Valid && y.Valid {
			pos, err := valueobjects.NewPosition(x.Float64, y.Float64)
			if err != nil {
				return nil, unreadable(id, err)
			}
			snap.Position = &pos
		}
		if attributes != "" && attributes != "{}" {
			if err := json.Unmarshal([]byte(attributes), &snap.Attributes); err != nil {
				s.logger.Warn("Ignoring unreadable page attributes",
					zap.Int64("sitemap_id", sitemapID.Int64()),
					zap.Int64("node_id", id),
					zap.Error(err),
				)
			}
		}
		if t, err := time.Parse(time.RFC3339Nano, updatedAt); err == nil {
			snap.UpdatedAt = t
		}

		node, err := entities.ReconstructNode(snap)
		if err != nil {
			return nil, unreadable(id, err)
		}
		out = append(out, node)
	}
	if err := rows.Err(); err != nil {
		return nil, pkgerrors.NewDatabaseError("list_pages", err)
	}
	return out, nil
}

// UpdatePosition writes a single page's coordinates
func (s *NodeStore) UpdatePosition(ctx context.Context, sitemapID valueobjects.SitemapID, nodeID valueobjects.NodeID, pos valueobjects.Position) error {
	res, err := s.db.ExecContext(ctx, `
UPDATE pages SET x = ?, y = ?, updated_at = ?
WHERE sitemap_id = ? AND id = ?;
`, pos.X(), pos.Y(), now(), sitemapID.Int64(), nodeID.Int64())
	if err != nil {
		return pkgerrors.NewDatabaseError("update_position", err)
	}
	return expectOne(res, nodeID)
}

// UpdateParent moves a page under a new parent in the same sitemap
func (s *NodeStore) UpdateParent(ctx context.Context, sitemapID valueobjects.SitemapID, nodeID, parentID valueobjects.NodeID) error {
	var exists int
	err := s.db.QueryRowContext(ctx, `SELECT 1 FROM pages WHERE sitemap_id = ? AND id = ?;`,
		sitemapID.Int64(), parentID.Int64()).Scan(&exists)
	if err == sql.ErrNoRows {
		return pkgerrors.NewNotFoundError(fmt.Sprintf("node %s", parentID))
	}
	if err != nil {
		return pkgerrors.NewDatabaseError("update_parent", err)
	}

	res, err := s.db.ExecContext(ctx, `
UPDATE pages SET parent_id = ?, version = version + 1, updated_at = ?
WHERE sitemap_id = ? AND id = ?;
`, parentID.Int64(), now(), sitemapID.Int64(), nodeID.Int64())
	if err != nil {
		return pkgerrors.NewDatabaseError("update_parent", err)
	}
	return expectOne(res, nodeID)
}

// Delete removes a page
func (s *NodeStore) Delete(ctx context.Context, sitemapID valueobjects.SitemapID, nodeID valueobjects.NodeID) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM pages WHERE sitemap_id = ? AND id = ?;`,
		sitemapID.Int64(), nodeID.Int64())
	if err != nil {
		return pkgerrors.NewDatabaseError("delete_page", err)
	}
	return expectOne(res, nodeID)
}

// Upsert writes a whole page. An existing page keeps its list position.
func (s *NodeStore) Upsert(ctx context.Context, node *entities.Node) error {
	snap := node.Snapshot()

	var parentID sql.NullInt64
	if snap.ParentID != nil {
		parentID = sql.NullInt64{Int64: snap.ParentID.Int64(), Valid: true}
	}
	var x, y sql.NullFloat64
	if snap.Position != nil {
		x = sql.NullFloat64{Float64: snap.Position.X(), Valid: true}
		y = sql.NullFloat64{Float64: snap.Position.Y(), Valid: true}
	}
	attributes := "{}"
	if len(snap.Attributes) > 0 {
		raw, err := json.Marshal(snap.Attributes)
		if err != nil {
			return fmt.Errorf("encode attributes: %w", err)
		}
		attributes = string(raw)
	}
	updatedAt := snap.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = time.Now()
	}

	_, err := s.db.ExecContext(ctx, `
INSERT INTO pages (sitemap_id, id, parent_id, is_root, title, path, x, y, status, attributes, version, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(sitemap_id, id) DO UPDATE SET
  parent_id = excluded.parent_id,
  is_root = excluded.is_root,
  title = excluded.title,
  path = excluded.path,
  x = excluded.x,
  y = excluded.y,
  status = excluded.status,
  attributes = excluded.attributes,
  version = excluded.version,
  updated_at = excluded.updated_at;
`, snap.SitemapID.Int64(), snap.ID.Int64(), parentID, snap.IsRoot, snap.Title, snap.Path, x, y,
		string(snap.Status), attributes, snap.Version, updatedAt.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return pkgerrors.NewDatabaseError("upsert_page", err)
	}
	return nil
}

func expectOne(res sql.Result, nodeID valueobjects.NodeID) error {
	n, err := res.RowsAffected()
	if err != nil {
		return pkgerrors.NewDatabaseError("rows_affected", err)
	}
	if n == 0 {
		return pkgerrors.NewNotFoundError(fmt.Sprintf("node %s", nodeID))
	}
	return nil
}

func now() string {
	return time.Now().UTC().Format(time.RFC3339Nano)
}

// unreadable reports a stored page that no longer forms a valid node
func unreadable(id int64, err error) error {
	return pkgerrors.NewDatabaseError("read_page", err).
		WithDetails(map[string]interface{}{"node_id": id})
}
