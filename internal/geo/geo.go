// Package geo converts game positions into the point geometry the journal stores.
package geo

import (
	"errors"
	"strconv"
	"strings"

	"github.com/OCAP2/cctv/pkg/core"
	geom "github.com/peterstace/simplefeatures/geom"
	"github.com/wroge/wgs84"
)

// Camera positions are stored in world metres as XYZ points. World locations are
// projected from 4326 to 3857 so SQLite, which has no spatial awareness, can still
// read them back through the WKB Scan.

// ErrInvalidCoordinates is returned when the coordinates are invalid
var ErrInvalidCoordinates = errors.New("invalid coordinates provided")

// Position3DFromString parses "x,y" or "x,y,z" into a position. A missing z is 0.
func Position3DFromString(coords string) (core.Position3D, error) {
	parts := strings.Split(strings.Trim(strings.TrimSpace(coords), "[]"), ",")
	if len(parts) < 2 || len(parts) > 3 {
		return core.Position3D{}, ErrInvalidCoordinates
	}
	var vals [3]float64
	for i, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return core.Position3D{}, ErrInvalidCoordinates
		}
		vals[i] = v
	}
	return core.Position3D{X: vals[0], Y: vals[1], Z: vals[2]}, nil
}

// PointFromPosition returns an XYZ point. A nil position yields an empty point.
func PointFromPosition(p *core.Position3D) geom.Point {
	if p == nil {
		return geom.NewEmptyPoint(geom.DimXYZ)
	}
	return geom.NewPoint(geom.Coordinates{
		XY:   geom.XY{X: p.X, Y: p.Y},
		Z:    p.Z,
		Type: geom.DimXYZ,
	})
}

// PositionFromPoint is the inverse of PointFromPosition. Empty points give nil.
func PositionFromPoint(pt geom.Point) *core.Position3D {
	c, ok := pt.Coordinates()
	if !ok {
		return nil
	}
	return &core.Position3D{X: c.XY.X, Y: c.XY.Y, Z: c.Z}
}

// Coords3857From4326 projects a longitude/latitude pair to web mercator.
func Coords3857From4326(longitude, latitude float64) (geom.Point, error) {
	if latitude < -90 || latitude > 90 || longitude < -180 || longitude > 180 {
		return geom.NewEmptyPoint(geom.DimXY), ErrInvalidCoordinates
	}
	f := wgs84.EPSG().Transform(4326, 3857)
	x, y, _ := f(longitude, latitude, 0)
	return geom.NewPoint(geom.Coordinates{XY: geom.XY{X: x, Y: y}}), nil
}
