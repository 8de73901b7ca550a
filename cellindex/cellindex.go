// Package cellindex holds the grid's reservation table: for each unit cell,
// a set of time-bounded ownership intervals. It performs no collision logic
// itself — entity.Entity scans reservations and decides what collides.
package cellindex

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// ErrOutOfBounds is returned when a reservation is requested for a cell
// outside the grid's extent.
var ErrOutOfBounds = errors.New("cellindex: cell out of bounds")

// Reservation records that owner occupies a cell during [TStart, TEnd].
// Owner is the id of the entity holding the reservation.
type Reservation struct {
	ID     uuid.UUID
	TStart float64
	TEnd   float64
	Owner  uuid.UUID
}

// CellIndex is a 2D array of cells, each a reservation set.
type CellIndex struct {
	xSize, ySize int
	cells        [][]map[uuid.UUID]Reservation
}

// New builds an xSize x ySize cell index with all cells empty.
func New(xSize, ySize int) *CellIndex {
	cells := make([][]map[uuid.UUID]Reservation, ySize)
	for y := range cells {
		row := make([]map[uuid.UUID]Reservation, xSize)
		for x := range row {
			row[x] = make(map[uuid.UUID]Reservation)
		}
		cells[y] = row
	}
	return &CellIndex{xSize: xSize, ySize: ySize, cells: cells}
}

// XSize and YSize report the index's fixed extent.
func (c *CellIndex) XSize() int { return c.xSize }
func (c *CellIndex) YSize() int { return c.ySize }

func (c *CellIndex) inBounds(cx, cy int) bool {
	return cx >= 0 && cx < c.xSize && cy >= 0 && cy < c.ySize
}

// Reserve records that owner occupies cell (cx, cy) during [tStart, tEnd]
// and returns the new reservation's id.
func (c *CellIndex) Reserve(cx, cy int, tStart, tEnd float64, owner uuid.UUID) (uuid.UUID, error) {
	if !c.inBounds(cx, cy) {
		return uuid.UUID{}, fmt.Errorf("%w: (%d,%d)", ErrOutOfBounds, cx, cy)
	}
	id := uuid.New()
	c.cells[cy][cx][id] = Reservation{ID: id, TStart: tStart, TEnd: tEnd, Owner: owner}
	return id, nil
}

// Release removes a reservation from a cell. Releasing an id that is not
// present (already released, or never existed) is a no-op.
func (c *CellIndex) Release(cx, cy int, id uuid.UUID) {
	if !c.inBounds(cx, cy) {
		return
	}
	delete(c.cells[cy][cx], id)
}

// Iterate returns the reservations currently held in cell (cx, cy), for
// collision scanning. The returned slice is a snapshot, safe to range over
// while the caller mutates the index.
func (c *CellIndex) Iterate(cx, cy int) []Reservation {
	if !c.inBounds(cx, cy) {
		return nil
	}
	cell := c.cells[cy][cx]
	out := make([]Reservation, 0, len(cell))
	for _, r := range cell {
		out = append(out, r)
	}
	return out
}
