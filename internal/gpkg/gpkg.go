// Package gpkg inspects GeoPackage tile containers through a read-only
// SQLite handle.
package gpkg

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "modernc.org/sqlite"

	"github.com/trobanga/rastergate/internal/lib"
)

// ApplicationID is the PRAGMA application_id of a GeoPackage ("GPKG")
const ApplicationID int32 = 0x47504B47

// Container is an open, read-only GeoPackage
type Container struct {
	path string
	db   *sql.DB
}

// Open opens a GeoPackage read-only. The file must exist; nothing is ever
// created or written.
func Open(ctx context.Context, path string) (*Container, error) {
	db, err := sql.Open("sqlite", "file:"+path+"?mode=ro")
	if err != nil {
		return nil, err
	}
	// One connection keeps the handle count at exactly one per container
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Container{path: path, db: db}, nil
}

// Close releases the handle
func (c *Container) Close() error {
	return c.db.Close()
}

// Path returns the file the container was opened from
func (c *Container) Path() string {
	return c.path
}

// ApplicationID reads PRAGMA application_id
func (c *Container) ApplicationID(ctx context.Context) (int32, error) {
	var id int32
	if err := c.db.QueryRowContext(ctx, "PRAGMA application_id").Scan(&id); err != nil {
		return 0, err
	}
	return id, nil
}

// TilesTable returns the single tiles table registered in gpkg_contents
func (c *Container) TilesTable(ctx context.Context) (string, error) {
	rows, err := c.db.QueryContext(ctx, `SELECT table_name FROM gpkg_contents WHERE data_type = 'tiles'`)
	if err != nil {
		return "", err
	}
	defer func() { _ = rows.Close() }()

	var tables []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return "", err
		}
		tables = append(tables, name)
	}
	if err := rows.Err(); err != nil {
		return "", err
	}

	switch len(tables) {
	case 0:
		return "", lib.ErrUnsupportedEntity(lib.ReasonMissingContentTable, c.path, "no tiles table registered in gpkg_contents")
	case 1:
		return tables[0], nil
	default:
		return "", lib.ErrUnsupportedEntity(lib.ReasonMissingContentTable, c.path,
			fmt.Sprintf("expected exactly one tiles table, found %d", len(tables)))
	}
}

// Index describes one index of a table
type Index struct {
	Name    string
	Unique  bool
	Columns []string
}

// Indices lists the indices of a table with their columns
func (c *Container) Indices(ctx context.Context, table string) ([]Index, error) {
	rows, err := c.db.QueryContext(ctx, `SELECT name, "unique" FROM pragma_index_list(?)`, table)
	if err != nil {
		return nil, err
	}

	var indices []Index
	for rows.Next() {
		var idx Index
		if err := rows.Scan(&idx.Name, &idx.Unique); err != nil {
			_ = rows.Close()
			return nil, err
		}
		indices = append(indices, idx)
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return nil, err
	}
	_ = rows.Close()

	for i := range indices {
		columns, err := c.indexColumns(ctx, indices[i].Name)
		if err != nil {
			return nil, err
		}
		indices[i].Columns = columns
	}
	return indices, nil
}

func (c *Container) indexColumns(ctx context.Context, index string) ([]string, error) {
	rows, err := c.db.QueryContext(ctx, `SELECT name FROM pragma_index_info(?) ORDER BY seqno`, index)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var columns []string
	for rows.Next() {
		var name sql.NullString
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		if name.Valid {
			columns = append(columns, name.String)
		}
	}
	return columns, rows.Err()
}

// IndexDefinitions returns the CREATE INDEX statements recorded for a table
func (c *Container) IndexDefinitions(ctx context.Context, table string) ([]string, error) {
	rows, err := c.db.QueryContext(ctx,
		`SELECT sql FROM sqlite_master WHERE type = 'index' AND tbl_name = ? AND sql IS NOT NULL`, table)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var statements []string
	for rows.Next() {
		var stmt string
		if err := rows.Scan(&stmt); err != nil {
			return nil, err
		}
		statements = append(statements, stmt)
	}
	return statements, rows.Err()
}

// MatrixExtent returns the largest matrix width and height over all zoom levels
func (c *Container) MatrixExtent(ctx context.Context, table string) (int, int, error) {
	var width, height sql.NullInt64
	err := c.db.QueryRowContext(ctx,
		`SELECT MAX(matrix_width), MAX(matrix_height) FROM gpkg_tile_matrix WHERE table_name = ?`, table).
		Scan(&width, &height)
	if err != nil {
		return 0, 0, err
	}
	if !width.Valid || !height.Valid {
		return 0, 0, errNoTileMatrix
	}
	return int(width.Int64), int(height.Int64), nil
}

// TileSize is one distinct tile size of a table
type TileSize struct {
	Width  int
	Height int
}

// TileSizes returns the distinct tile sizes declared for a table
func (c *Container) TileSizes(ctx context.Context, table string) ([]TileSize, error) {
	rows, err := c.db.QueryContext(ctx,
		`SELECT tile_width, tile_height FROM gpkg_tile_matrix WHERE table_name = ? GROUP BY tile_width, tile_height`, table)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var sizes []TileSize
	for rows.Next() {
		var s TileSize
		if err := rows.Scan(&s.Width, &s.Height); err != nil {
			return nil, err
		}
		sizes = append(sizes, s)
	}
	return sizes, rows.Err()
}

// SpatialRef is a row of gpkg_spatial_ref_sys
type SpatialRef struct {
	SRSID          int
	Organization   string
	OrganizationID int
}

// SpatialRef returns the spatial reference system of a table
func (c *Container) SpatialRef(ctx context.Context, table string) (SpatialRef, error) {
	var ref SpatialRef
	err := c.db.QueryRowContext(ctx, `
		SELECT s.srs_id, s.organization, s.organization_coordsys_id
		FROM gpkg_tile_matrix_set t
		JOIN gpkg_spatial_ref_sys s ON s.srs_id = t.srs_id
		WHERE t.table_name = ?`, table).
		Scan(&ref.SRSID, &ref.Organization, &ref.OrganizationID)
	return ref, err
}

// FinestPixelSize returns pixel_x_size at the highest zoom level
func (c *Container) FinestPixelSize(ctx context.Context, table string) (float64, error) {
	var size float64
	err := c.db.QueryRowContext(ctx,
		`SELECT pixel_x_size FROM gpkg_tile_matrix WHERE table_name = ? ORDER BY zoom_level DESC LIMIT 1`, table).
		Scan(&size)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, errNoTileMatrix
	}
	return size, err
}

// Bounds is a bounding box in the table's CRS
type Bounds struct {
	MinX, MinY, MaxX, MaxY float64
}

// ContentBounds returns the bounds declared in gpkg_contents, falling back to
// gpkg_tile_matrix_set when the optional contents bounds are NULL
func (c *Container) ContentBounds(ctx context.Context, table string) (Bounds, error) {
	var minX, minY, maxX, maxY sql.NullFloat64
	err := c.db.QueryRowContext(ctx,
		`SELECT min_x, min_y, max_x, max_y FROM gpkg_contents WHERE table_name = ?`, table).
		Scan(&minX, &minY, &maxX, &maxY)
	if err != nil {
		return Bounds{}, err
	}
	if minX.Valid && minY.Valid && maxX.Valid && maxY.Valid {
		return Bounds{MinX: minX.Float64, MinY: minY.Float64, MaxX: maxX.Float64, MaxY: maxY.Float64}, nil
	}

	var b Bounds
	err = c.db.QueryRowContext(ctx,
		`SELECT min_x, min_y, max_x, max_y FROM gpkg_tile_matrix_set WHERE table_name = ?`, table).
		Scan(&b.MinX, &b.MinY, &b.MaxX, &b.MaxY)
	return b, err
}

var errNoTileMatrix = errors.New("no tile matrix rows")
