// Package geometry computes axis-aligned bounding boxes for shapes and
// enumerates the grid cells a moving AABB overlaps over a time interval,
// together with the per-cell sub-interval of overlap.
package geometry

import "math"

// Point is an (x, y) offset relative to a shape's origin.
type Point struct {
	X, Y float64
}

// AABB is an axis-aligned bounding box.
type AABB struct {
	MinX, MinY, MaxX, MaxY float64
}

// BoundingBox reduces a shape (a list of offset points) to its AABB. An
// empty shape yields a zero-area box at the origin.
func BoundingBox(points []Point) AABB {
	if len(points) == 0 {
		return AABB{}
	}
	box := AABB{MinX: points[0].X, MaxX: points[0].X, MinY: points[0].Y, MaxY: points[0].Y}
	for _, p := range points[1:] {
		if p.X < box.MinX {
			box.MinX = p.X
		}
		if p.X > box.MaxX {
			box.MaxX = p.X
		}
		if p.Y < box.MinY {
			box.MinY = p.Y
		}
		if p.Y > box.MaxY {
			box.MaxY = p.Y
		}
	}
	return box
}

// Interval is the closed sub-interval [TEnter, TExit] during which a moving
// AABB overlaps one grid cell.
type Interval struct {
	TEnter, TExit float64
}

// CellKey identifies a grid cell by integer coordinates.
type CellKey struct {
	X, Y int
}

// Sweep computes, for a shape's AABB positioned at (x, y) at tStart and
// shifted by (dxTotal, dyTotal) linearly over [tStart, tEnd], the set of
// unit grid cells within [0, xSize) x [0, ySize) it overlaps, mapped to the
// sub-interval of [tStart, tEnd] during which the overlap holds.
//
// dt == tEnd - tStart must be positive; callers reject non-positive segment
// durations before calling Sweep (spec: InvalidSegment).
func Sweep(box AABB, x, y, dxTotal, dyTotal, tStart, tEnd float64, xSize, ySize int) map[CellKey]Interval {
	dt := tEnd - tStart
	vx := dxTotal / dt
	vy := dyTotal / dt

	result := make(map[CellKey]Interval)

	xLo, xHi := axisRange(x+box.MinX, x+box.MaxX, vx, dt)
	yLo, yHi := axisRange(y+box.MinY, y+box.MaxY, vy, dt)

	cxFrom, cxTo := clampCellRange(xLo, xHi, xSize)
	cyFrom, cyTo := clampCellRange(yLo, yHi, ySize)

	for cx := cxFrom; cx < cxTo; cx++ {
		xEnter, xExit, ok := axisCellInterval(x+box.MinX, x+box.MaxX, vx, tStart, tEnd, float64(cx))
		if !ok {
			continue
		}
		for cy := cyFrom; cy < cyTo; cy++ {
			yEnter, yExit, ok := axisCellInterval(y+box.MinY, y+box.MaxY, vy, tStart, tEnd, float64(cy))
			if !ok {
				continue
			}
			enter := math.Max(xEnter, yEnter)
			exit := math.Min(xExit, yExit)
			if enter > exit {
				continue
			}
			result[CellKey{X: cx, Y: cy}] = Interval{TEnter: enter, TExit: exit}
		}
	}
	return result
}

// axisRange returns the overall [lo, hi] span an axis projection occupies
// over [tStart, tEnd]; since motion is linear the extremes fall at the
// endpoints of the segment.
func axisRange(minAtStart, maxAtStart, v, dt float64) (lo, hi float64) {
	minAtEnd := minAtStart + v*dt
	maxAtEnd := maxAtStart + v*dt
	lo = math.Min(minAtStart, minAtEnd)
	hi = math.Max(maxAtStart, maxAtEnd)
	return lo, hi
}

// clampCellRange converts a continuous [lo, hi] span into a half-open
// integer cell range [from, to), clamped to [0, size).
func clampCellRange(lo, hi float64, size int) (from, to int) {
	from = int(math.Floor(lo))
	to = int(math.Ceil(hi))
	if from < 0 {
		from = 0
	}
	if to > size {
		to = size
	}
	if to < from {
		to = from
	}
	return from, to
}

// axisCellInterval computes, for one axis, the sub-interval of [tStart, tEnd]
// during which the moving span [minAtStart, maxAtStart] shifted at velocity
// v overlaps the unit stripe [cell, cell+1). Returns ok=false if there is no
// overlap.
func axisCellInterval(minAtStart, maxAtStart, v, tStart, tEnd, cell float64) (enter, exit float64, ok bool) {
	enter, exit = tStart, tEnd

	if v == 0 {
		if maxAtStart > cell && minAtStart < cell+1 {
			return tStart, tEnd, true
		}
		return 0, 0, false
	}

	// max(t) > cell
	tHi := tStart + (cell-maxAtStart)/v
	if v > 0 {
		if tHi > enter {
			enter = tHi
		}
	} else {
		if tHi < exit {
			exit = tHi
		}
	}

	// min(t) < cell+1
	tLo := tStart + (cell+1-minAtStart)/v
	if v > 0 {
		if tLo < exit {
			exit = tLo
		}
	} else {
		if tLo > enter {
			enter = tLo
		}
	}

	if enter > exit {
		return 0, 0, false
	}
	return enter, exit, true
}
