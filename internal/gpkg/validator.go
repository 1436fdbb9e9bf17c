package gpkg

import (
	"context"
	"errors"
	"fmt"
	"math"
	"slices"
	"strings"

	"github.com/trobanga/rastergate/internal/lib"
	"github.com/trobanga/rastergate/internal/models"
)

// tileIndexColumns is the column set a tiles table must be indexed on
var tileIndexColumns = []string{"tile_column", "tile_row", "zoom_level"}

// StructureValidator checks that containers are tiled the way the
// ingestion pipeline expects
type StructureValidator struct {
	tileSize int
	logger   *lib.Logger
}

// NewStructureValidator creates a validator for the configured tile size
func NewStructureValidator(tileSize int, logger *lib.Logger) *StructureValidator {
	return &StructureValidator{
		tileSize: tileSize,
		logger:   logger,
	}
}

// Validate checks every container in order and stops at the first failure.
// Only one container is open at any time.
func (v *StructureValidator) Validate(ctx context.Context, paths []string) error {
	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := v.validateOne(ctx, path); err != nil {
			return err
		}
	}
	return nil
}

func (v *StructureValidator) validateOne(ctx context.Context, path string) error {
	container, err := Open(ctx, path)
	if err != nil {
		return v.engineError(path, "opening the container", err)
	}
	defer func() { _ = container.Close() }()

	table, err := container.TilesTable(ctx)
	if err != nil {
		return v.engineError(path, "locating the tiles table", err)
	}

	if err := v.checkIndex(ctx, container, table); err != nil {
		return err
	}
	if err := v.checkGrid(ctx, container, table); err != nil {
		return err
	}
	if err := v.checkTileSize(ctx, container, table); err != nil {
		return err
	}

	v.logger.Debug("Container structure valid", "file", path, "table", table)
	return nil
}

func (v *StructureValidator) checkIndex(ctx context.Context, c *Container, table string) error {
	indices, err := c.Indices(ctx, table)
	if err != nil {
		return v.engineError(c.Path(), "listing indices", err)
	}
	for _, idx := range indices {
		if idx.Unique && sameColumns(idx.Columns, tileIndexColumns) {
			return nil
		}
	}

	definitions, err := c.IndexDefinitions(ctx, table)
	if err != nil {
		return v.engineError(c.Path(), "reading index definitions", err)
	}
	for _, stmt := range definitions {
		if sameColumns(IndexedColumns(stmt), tileIndexColumns) {
			return nil
		}
	}

	return lib.ErrMissingIndex(c.Path(), table)
}

func (v *StructureValidator) checkGrid(ctx context.Context, c *Container, table string) error {
	width, height, err := c.MatrixExtent(ctx, table)
	if err != nil {
		return v.engineError(c.Path(), "reading the tile matrix", err)
	}

	ratio := GridRatio(width, height)
	if models.GridFromRatio(ratio) != models.GridTwoOnOne {
		return lib.ErrUnsupportedGrid(c.Path(), ratio)
	}
	return nil
}

func (v *StructureValidator) checkTileSize(ctx context.Context, c *Container, table string) error {
	sizes, err := c.TileSizes(ctx, table)
	if err != nil {
		return v.engineError(c.Path(), "reading tile sizes", err)
	}

	if len(sizes) != 1 {
		found := make([]string, len(sizes))
		for i, s := range sizes {
			found[i] = fmt.Sprintf("%dx%d", s.Width, s.Height)
		}
		return lib.ErrUnsupportedTileSize(c.Path(),
			fmt.Sprintf("expected a single tile size %dx%d, found [%s]", v.tileSize, v.tileSize, strings.Join(found, ", ")))
	}
	if sizes[0].Width != v.tileSize || sizes[0].Height != v.tileSize {
		return lib.ErrUnsupportedTileSize(c.Path(),
			fmt.Sprintf("tiles are %dx%d, expected %dx%d", sizes[0].Width, sizes[0].Height, v.tileSize, v.tileSize))
	}
	return nil
}

// engineError keeps domain errors and replaces storage engine errors with
// one that does not leak engine internals. The raw error is logged.
func (v *StructureValidator) engineError(path string, operation string, err error) error {
	var gwErr *lib.GatewayError
	if errors.As(err, &gwErr) {
		return err
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	v.logger.Warn("Container read failed", "file", path, "operation", operation, "error", err)
	return lib.ErrContainerUnreadable(path, operation)
}

// GridRatio is round(width / height). A zero height yields 0, which
// classifies as unsupported.
func GridRatio(width, height int) int {
	if height <= 0 {
		return 0
	}
	return int(math.Round(float64(width) / float64(height)))
}

// IndexedColumns extracts the lowercased column names of a CREATE INDEX
// statement, without quoting, ordering or collation. Only the column list
// after ON <table> is read; a trailing WHERE clause is ignored.
func IndexedColumns(stmt string) []string {
	open := strings.Index(stmt, "(")
	if open < 0 {
		return nil
	}

	var columns []string
	depth, start := 0, open+1
	for i := open; i < len(stmt); i++ {
		switch stmt[i] {
		case '(':
			depth++
		case ')':
			depth--
			if depth == 0 {
				return appendColumn(columns, stmt[start:i])
			}
		case ',':
			if depth == 1 {
				columns = appendColumn(columns, stmt[start:i])
				start = i + 1
			}
		}
	}
	return nil
}

func appendColumn(columns []string, part string) []string {
	fields := strings.Fields(strings.ToLower(part))
	if len(fields) == 0 {
		return columns
	}
	return append(columns, strings.Trim(fields[0], "\"'`[]"))
}

func sameColumns(got, want []string) bool {
	if len(got) != len(want) {
		return false
	}
	a := slices.Clone(got)
	b := slices.Clone(want)
	for i := range a {
		a[i] = strings.ToLower(a[i])
	}
	slices.Sort(a)
	slices.Sort(b)
	return slices.Equal(a, b)
}
