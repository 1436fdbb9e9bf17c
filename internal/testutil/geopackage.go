// Package testutil builds on-disk fixtures of raster sources for tests.
package testutil

import (
	"database/sql"
	"fmt"
	"math"
	"path/filepath"
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/trobanga/rastergate/internal/models"
)

// GeoPackageApplicationID is "GPKG" as a big-endian int32
const GeoPackageApplicationID int32 = 0x47504B47

// TileIndex selects how the tiles table is indexed
type TileIndex int

const (
	IndexUnique TileIndex = iota // UNIQUE (zoom_level, tile_column, tile_row) in the table definition
	IndexManual                  // CREATE INDEX over the column triple
	IndexNone
	IndexPartial // manual index over the column triple with a WHERE clause
)

// TileMatrix is one row of gpkg_tile_matrix
type TileMatrix struct {
	Zoom         int
	MatrixWidth  int
	MatrixHeight int
	TileWidth    int
	TileHeight   int
	PixelXSize   float64
	PixelYSize   float64
}

// GeoPackageOptions describes a fixture container
type GeoPackageOptions struct {
	TableName              string
	SRSID                  int
	Organization           string
	OrganizationCoordsysID int
	ApplicationID          int32
	Bounds                 orb.Bound
	OmitContentsBounds     bool // leave gpkg_contents bounds NULL
	Matrices               []TileMatrix
	Index                  TileIndex
	ExtraTilesTables       int // additional tiles tables registered in gpkg_contents
	SkipContents           bool
}

// DefaultGeoPackage is a valid 2:1 EPSG:4326 container with 256px tiles
func DefaultGeoPackage() GeoPackageOptions {
	return GeoPackageOptions{
		TableName:              "tiles",
		SRSID:                  4326,
		Organization:           "EPSG",
		OrganizationCoordsysID: 4326,
		ApplicationID:          GeoPackageApplicationID,
		Bounds:                 orb.Bound{Min: orb.Point{34, 31}, Max: orb.Point{35, 32}},
		Matrices:               GeographicMatrices(0, 10, 256),
		Index:                  IndexUnique,
	}
}

// GeographicMatrices builds the tile matrices of the 2:1 geographic grid
// for zoom levels minZoom..maxZoom
func GeographicMatrices(minZoom, maxZoom, tileSize int) []TileMatrix {
	matrices := make([]TileMatrix, 0, maxZoom-minZoom+1)
	for z := minZoom; z <= maxZoom; z++ {
		rows := int(math.Pow(2, float64(z)))
		res := models.ResolutionForZoom(z)
		matrices = append(matrices, TileMatrix{
			Zoom:         z,
			MatrixWidth:  rows * 2,
			MatrixHeight: rows,
			TileWidth:    tileSize,
			TileHeight:   tileSize,
			PixelXSize:   res,
			PixelYSize:   res,
		})
	}
	return matrices
}

// WriteGeoPackage creates the container at dir/name and returns its path
func WriteGeoPackage(t testing.TB, dir, name string, opts GeoPackageOptions) string {
	t.Helper()

	path := filepath.Join(dir, name)
	db, err := sql.Open("sqlite", "file:"+path)
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	exec := func(query string, args ...any) {
		t.Helper()
		_, err := db.Exec(query, args...)
		require.NoError(t, err, query)
	}

	exec(fmt.Sprintf("PRAGMA application_id = %d", opts.ApplicationID))

	exec(`CREATE TABLE gpkg_spatial_ref_sys (
		srs_name TEXT NOT NULL,
		srs_id INTEGER NOT NULL PRIMARY KEY,
		organization TEXT NOT NULL,
		organization_coordsys_id INTEGER NOT NULL,
		definition TEXT NOT NULL,
		description TEXT)`)
	exec(`CREATE TABLE gpkg_contents (
		table_name TEXT NOT NULL PRIMARY KEY,
		data_type TEXT NOT NULL,
		identifier TEXT UNIQUE,
		description TEXT DEFAULT '',
		last_change DATETIME NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%fZ','now')),
		min_x DOUBLE, min_y DOUBLE, max_x DOUBLE, max_y DOUBLE,
		srs_id INTEGER)`)
	exec(`CREATE TABLE gpkg_tile_matrix_set (
		table_name TEXT NOT NULL PRIMARY KEY,
		srs_id INTEGER NOT NULL,
		min_x DOUBLE NOT NULL, min_y DOUBLE NOT NULL,
		max_x DOUBLE NOT NULL, max_y DOUBLE NOT NULL)`)
	exec(`CREATE TABLE gpkg_tile_matrix (
		table_name TEXT NOT NULL,
		zoom_level INTEGER NOT NULL,
		matrix_width INTEGER NOT NULL,
		matrix_height INTEGER NOT NULL,
		tile_width INTEGER NOT NULL,
		tile_height INTEGER NOT NULL,
		pixel_x_size DOUBLE NOT NULL,
		pixel_y_size DOUBLE NOT NULL,
		CONSTRAINT pk_ttm PRIMARY KEY (table_name, zoom_level))`)

	exec(`INSERT INTO gpkg_spatial_ref_sys VALUES (?, ?, ?, ?, ?, ?)`,
		fmt.Sprintf("%s:%d", opts.Organization, opts.OrganizationCoordsysID),
		opts.SRSID, opts.Organization, opts.OrganizationCoordsysID, "undefined", nil)

	tables := []string{opts.TableName}
	for i := 0; i < opts.ExtraTilesTables; i++ {
		tables = append(tables, fmt.Sprintf("%s_%d", opts.TableName, i+1))
	}

	for _, table := range tables {
		writeTilesTable(t, exec, table, opts)
	}

	return path
}

func writeTilesTable(t testing.TB, exec func(string, ...any), table string, opts GeoPackageOptions) {
	t.Helper()

	b := opts.Bounds
	if !opts.SkipContents {
		if opts.OmitContentsBounds {
			exec(`INSERT INTO gpkg_contents (table_name, data_type, identifier, srs_id) VALUES (?, 'tiles', ?, ?)`,
				table, table, opts.SRSID)
		} else {
			exec(`INSERT INTO gpkg_contents (table_name, data_type, identifier, min_x, min_y, max_x, max_y, srs_id)
				VALUES (?, 'tiles', ?, ?, ?, ?, ?, ?)`,
				table, table, b.Min[0], b.Min[1], b.Max[0], b.Max[1], opts.SRSID)
		}
	}

	exec(`INSERT INTO gpkg_tile_matrix_set VALUES (?, ?, ?, ?, ?, ?)`,
		table, opts.SRSID, b.Min[0], b.Min[1], b.Max[0], b.Max[1])

	for _, m := range opts.Matrices {
		exec(`INSERT INTO gpkg_tile_matrix VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			table, m.Zoom, m.MatrixWidth, m.MatrixHeight, m.TileWidth, m.TileHeight, m.PixelXSize, m.PixelYSize)
	}

	unique := ""
	if opts.Index == IndexUnique {
		unique = ", UNIQUE (zoom_level, tile_column, tile_row)"
	}
	exec(fmt.Sprintf(`CREATE TABLE "%s" (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		zoom_level INTEGER NOT NULL,
		tile_column INTEGER NOT NULL,
		tile_row INTEGER NOT NULL,
		tile_data BLOB NOT NULL%s)`, table, unique))

	if opts.Index == IndexManual {
		exec(fmt.Sprintf(`CREATE INDEX "%s_tile_idx" ON "%s" (tile_column, tile_row, zoom_level)`, table, table))
	}
	if opts.Index == IndexPartial {
		exec(fmt.Sprintf(`CREATE INDEX "%s_tile_idx" ON "%s" (zoom_level, tile_column, tile_row) WHERE (zoom_level >= 0)`, table, table))
	}

	exec(fmt.Sprintf(`INSERT INTO "%s" (zoom_level, tile_column, tile_row, tile_data) VALUES (0, 0, 0, x'89504E47')`, table))
}
