package geo

import "math"

// Index is a grid-bucket spatial index over keyed points.  Cells are square
// in degrees of latitude; queries scan the cell neighborhood covering the
// radius and confirm each candidate with a Haversine check.  For the
// hundreds-to-thousands of points a city deployment sees, this stays well
// under the quadratic scan it replaces.
type Index struct {
	cellDegrees float64
	cells       map[cellKey][]indexEntry
	size        int
}

type cellKey struct {
	row int
	col int
}

type indexEntry struct {
	key   string
	point Point
}

// NewIndex creates an index with cells sized to the given query radius.
func NewIndex(cellMeters float64) *Index {
	if cellMeters <= 0 {
		cellMeters = 100
	}
	return &Index{
		cellDegrees: cellMeters / metersPerDegree,
		cells:       make(map[cellKey][]indexEntry),
	}
}

// Insert adds a keyed point.  Points with invalid coordinates are skipped and
// reported false; duplicates (same key or same coordinates) are allowed.
func (ix *Index) Insert(key string, p Point) bool {
	if !Valid(p) {
		return false
	}
	ck := ix.cell(p)
	ix.cells[ck] = append(ix.cells[ck], indexEntry{key: key, point: p})
	ix.size++
	return true
}

// Len returns the number of indexed points.
func (ix *Index) Len() int {
	return ix.size
}

// Query returns the keys of all points within radiusMeters of center.  An
// invalid center yields no results.
func (ix *Index) Query(center Point, radiusMeters float64) []string {
	if !Valid(center) || radiusMeters <= 0 {
		return nil
	}

	latSpan := int(math.Ceil(radiusMeters/metersPerDegree/ix.cellDegrees)) + 1

	// Longitude degrees shrink with latitude, so the column span widens.
	cosLat := math.Cos(center.Latitude * math.Pi / 180)
	if cosLat < 0.01 {
		cosLat = 0.01
	}
	lonSpan := int(math.Ceil(radiusMeters/(metersPerDegree*cosLat)/ix.cellDegrees)) + 1

	centerCell := ix.cell(center)

	var keys []string
	for row := centerCell.row - latSpan; row <= centerCell.row+latSpan; row++ {
		for col := centerCell.col - lonSpan; col <= centerCell.col+lonSpan; col++ {
			for _, e := range ix.cells[cellKey{row: row, col: col}] {
				if Distance(center, e.point) <= radiusMeters {
					keys = append(keys, e.key)
				}
			}
		}
	}
	return keys
}

func (ix *Index) cell(p Point) cellKey {
	return cellKey{
		row: int(math.Floor(p.Latitude / ix.cellDegrees)),
		col: int(math.Floor(p.Longitude / ix.cellDegrees)),
	}
}
