// Package entity implements the route-planning and route-realization
// lifecycle shared by every moving or static occupant of a Grid. An Entity
// never holds a pointer back to its Grid: every method that needs grid
// state takes a GridHandle argument, supplied by the caller (normally the
// grid package itself, dispatching a queued event).
package entity

import (
	"errors"
	"fmt"
	"sort"

	"github.com/google/uuid"

	"fizgrid/cellindex"
	"fizgrid/geometry"
	"fizgrid/timequeue"
)

// ErrAlreadyRouted is returned by PlanRoute/AddRoute when the entity is
// still mid-route.
var ErrAlreadyRouted = errors.New("entity: already in route")

// ErrInvalidSegment is returned when a route delta's time shift is not
// strictly positive.
var ErrInvalidSegment = errors.New("entity: route delta time_shift must be positive")

// ErrForbiddenCollision is returned by PlanRoute when
// raiseOnFutureCollision is set and the proposed route collides.
var ErrForbiddenCollision = errors.New("entity: route collides with another entity")

// ErrHorizonExceeded is returned by PlanRoute when a non-empty route is
// started at or after the simulation horizon: there is no time left for it
// to run. It does not apply to the empty "hold position" route RealizeRoute
// re-plans internally, which legitimately starts exactly at the horizon
// once an entity's last real leg finishes there.
var ErrHorizonExceeded = errors.New("entity: route start time is at or past the simulation horizon")

// RouteDelta is one straight-line leg of a route: move (XShift, YShift)
// over TimeShift seconds, starting from wherever the previous leg ended.
type RouteDelta struct {
	XShift    float64
	YShift    float64
	TimeShift float64
}

// HistoryEntry records one realized (possibly partial) leg of motion.
type HistoryEntry struct {
	XShift    float64
	YShift    float64
	TimeShift float64
}

// GridHandle is the subset of grid.Grid's behavior an Entity needs in order
// to plan and realize routes. grid.Grid implements it; passing it
// explicitly (rather than an entity holding a back-pointer) keeps this
// package import-free of the grid package.
type GridHandle interface {
	Now() float64
	MaxTime() float64
	XSize() int
	YSize() int
	ScheduleEvent(time float64, payload timequeue.Payload) (uint64, error)
	CancelEvent(id uint64) (timequeue.Payload, bool)
	ReserveCell(cx, cy int, tStart, tEnd float64, ownerID uuid.UUID) (uuid.UUID, error)
	ReleaseCell(cx, cy int, reservationID uuid.UUID)
	CellReservations(cx, cy int) []cellindex.Reservation
	EntityByID(id uuid.UUID) (*Entity, bool)
}

type blockedCell struct {
	cx, cy        int
	reservationID uuid.UUID
}

// PlanRoutePayload schedules Entity.PlanRoute to run with RouteDeltas. It is
// what AddRoute enqueues; RealizeRoute's own empty-route re-plan calls
// PlanRoute directly rather than through the queue.
type PlanRoutePayload struct {
	Entity                 *Entity
	RouteDeltas            []RouteDelta
	RaiseOnFutureCollision bool
}

func (PlanRoutePayload) isTimeQueuePayload() {}

// RealizeRoutePayload schedules Entity.RealizeRoute. IsResultOfCollision
// marks the two paired events of a predicted collision; a StaticEntity
// ignores those and keeps its reservation intact.
type RealizeRoutePayload struct {
	Entity                 *Entity
	IsResultOfCollision    bool
	RaiseOnFutureCollision bool
}

func (RealizeRoutePayload) isTimeQueuePayload() {}

// Entity is a shaped occupant of a grid, routed in piecewise-linear legs.
// Static is true for entities that never move on their own (walls, parked
// obstacles) — their RealizeRoute ignores collision-triggered callbacks.
type Entity struct {
	ID     uuid.UUID
	Name   string
	Shape  []geometry.Point
	X, Y   float64
	Static bool
	box    geometry.AABB
	History []HistoryEntry

	routeStartTime float64
	routeEndTime   float64
	blockedCells   []blockedCell
	routeDeltas    []RouteDelta
	// futureEvents maps a scheduled event id to its paired counterpart's
	// id, or nil if the event has no pair (a plain route-end event).
	futureEvents map[uint64]*uint64
}

// New builds a moving entity at the given starting coordinates.
func New(name string, shape []geometry.Point, x, y float64) *Entity {
	return newEntity(name, shape, x, y, false)
}

// NewStatic builds an entity that never initiates its own route; when a
// collision-triggered RealizeRoute would have moved it, it holds its
// position instead.
func NewStatic(name string, shape []geometry.Point, x, y float64) *Entity {
	return newEntity(name, shape, x, y, true)
}

func newEntity(name string, shape []geometry.Point, x, y float64, static bool) *Entity {
	return &Entity{
		ID:           uuid.New(),
		Name:         name,
		Shape:        shape,
		X:            x,
		Y:            y,
		Static:       static,
		box:          geometry.BoundingBox(shape),
		futureEvents: make(map[uint64]*uint64),
	}
}

func (e *Entity) String() string {
	return fmt.Sprintf("Entity(%s)", e.Name)
}

// InRoute reports whether the entity's committed route extends past the
// grid's current time.
func (e *Entity) InRoute(g GridHandle) bool {
	return e.routeEndTime > g.Now()
}

func (e *Entity) clearBlockedCells(g GridHandle) {
	for _, b := range e.blockedCells {
		g.ReleaseCell(b.cx, b.cy, b.reservationID)
	}
	e.blockedCells = nil
}

func (e *Entity) clearFutureEvents(g GridHandle) {
	for eventID, related := range e.futureEvents {
		if related == nil {
			g.CancelEvent(eventID)
			continue
		}
		if _, ok := g.CancelEvent(eventID); ok {
			g.CancelEvent(*related)
		}
	}
	e.futureEvents = make(map[uint64]*uint64)
}

// PlanRoute reserves grid cells for each leg of routeDeltas starting at the
// grid's current time, schedules the earliest predicted collision with
// every other occupant whose reservations overlap, and schedules a plain
// route-end event at the route's end time. It returns whether any future
// collision was predicted.
func (e *Entity) PlanRoute(g GridHandle, routeDeltas []RouteDelta, raiseOnFutureCollision bool) (bool, error) {
	if e.InRoute(g) {
		return false, ErrAlreadyRouted
	}
	if len(routeDeltas) > 0 && g.Now() >= g.MaxTime() {
		return false, ErrHorizonExceeded
	}

	e.clearBlockedCells(g)
	e.clearFutureEvents(g)

	xTmp, yTmp, tTmp := e.X, e.Y, g.Now()

	var totalShift float64
	for _, d := range routeDeltas {
		if d.TimeShift <= 0 {
			return false, ErrInvalidSegment
		}
		totalShift += d.TimeShift
	}

	deltas := make([]RouteDelta, len(routeDeltas), len(routeDeltas)+1)
	copy(deltas, routeDeltas)
	if terminal := g.MaxTime() - tTmp - totalShift; terminal > 0 {
		deltas = append(deltas, RouteDelta{XShift: 0, YShift: 0, TimeShift: terminal})
	}

	e.routeDeltas = deltas
	e.routeStartTime = tTmp
	e.routeEndTime = tTmp + totalShift
	if e.routeEndTime > g.MaxTime() {
		e.routeEndTime = g.MaxTime()
	}

	collisions := make(map[uuid.UUID]float64)

	for _, delta := range deltas {
		cells := geometry.Sweep(e.box, xTmp, yTmp, delta.XShift, delta.YShift, tTmp, tTmp+delta.TimeShift, g.XSize(), g.YSize())
		xTmp += delta.XShift
		yTmp += delta.YShift
		tTmp += delta.TimeShift

		for cell, interval := range cells {
			for _, other := range g.CellReservations(cell.X, cell.Y) {
				if other.Owner == e.ID {
					continue
				}
				if interval.TEnter < other.TEnd && interval.TExit > other.TStart {
					collisionTime := interval.TEnter
					if other.TStart > collisionTime {
						collisionTime = other.TStart
					}
					if prev, ok := collisions[other.Owner]; !ok || collisionTime < prev {
						collisions[other.Owner] = collisionTime
					}
				}
			}
			reservationID, err := g.ReserveCell(cell.X, cell.Y, interval.TEnter, interval.TExit, e.ID)
			if err != nil {
				return false, err
			}
			e.blockedCells = append(e.blockedCells, blockedCell{cx: cell.X, cy: cell.Y, reservationID: reservationID})
		}
	}

	if raiseOnFutureCollision && len(collisions) > 0 {
		return true, ErrForbiddenCollision
	}

	// Scheduling order must be deterministic across runs: Go's map iteration
	// order is randomized, but two collisions tying on time still need a
	// fixed relative insertion (and therefore timequeue tie-break) order, so
	// sort by (time, owner id) before scheduling.
	orderedOthers := make([]uuid.UUID, 0, len(collisions))
	for otherID := range collisions {
		orderedOthers = append(orderedOthers, otherID)
	}
	sort.Slice(orderedOthers, func(i, j int) bool {
		ti, tj := collisions[orderedOthers[i]], collisions[orderedOthers[j]]
		if ti != tj {
			return ti < tj
		}
		return orderedOthers[i].String() < orderedOthers[j].String()
	})

	for _, otherID := range orderedOthers {
		collisionTime := collisions[otherID]
		otherEntity, ok := g.EntityByID(otherID)
		if !ok {
			continue
		}
		selfEventID, err := g.ScheduleEvent(collisionTime, RealizeRoutePayload{Entity: e, IsResultOfCollision: true})
		if err != nil {
			return false, err
		}
		otherEventID, err := g.ScheduleEvent(collisionTime, RealizeRoutePayload{Entity: otherEntity, IsResultOfCollision: true})
		if err != nil {
			return false, err
		}
		selfCopy, otherCopy := otherEventID, selfEventID
		e.futureEvents[selfEventID] = &selfCopy
		otherEntity.futureEvents[otherEventID] = &otherCopy
	}

	if e.routeEndTime > g.Now() {
		eventID, err := g.ScheduleEvent(e.routeEndTime, RealizeRoutePayload{Entity: e, IsResultOfCollision: false})
		if err != nil {
			return false, err
		}
		e.futureEvents[eventID] = nil
	}

	return len(collisions) > 0, nil
}

// RealizeRoute commits the entity's route up to the grid's current time,
// updates its position and history, and re-plans an empty route from that
// point so the entity's new resting position stays reserved until the
// horizon. A static entity ignores collision-triggered calls and keeps
// whatever reservation it already holds.
func (e *Entity) RealizeRoute(g GridHandle, isResultOfCollision, raiseOnFutureCollision bool) (bool, error) {
	if e.Static && isResultOfCollision {
		return false, nil
	}

	xTmp, yTmp, tTmp := e.X, e.Y, e.routeStartTime
	currentTime := g.Now()

	for _, delta := range e.routeDeltas {
		if tTmp >= currentTime {
			break
		}
		var xShift, yShift, timeShift float64
		if tTmp+delta.TimeShift > currentTime {
			frac := (currentTime - tTmp) / delta.TimeShift
			xShift = delta.XShift * frac
			yShift = delta.YShift * frac
			timeShift = currentTime - tTmp
		} else {
			xShift = delta.XShift
			yShift = delta.YShift
			timeShift = delta.TimeShift
		}

		xTmp += xShift
		yTmp += yShift
		tTmp += timeShift

		e.History = append(e.History, HistoryEntry{XShift: xShift, YShift: yShift, TimeShift: timeShift})
	}

	e.X = xTmp
	e.Y = yTmp
	e.routeEndTime = currentTime

	return e.PlanRoute(g, nil, raiseOnFutureCollision)
}

// Waypoint is an absolute (X, Y) destination reached TimeShift seconds
// after the previous waypoint (or after the route's start, for the first
// one).
type Waypoint struct {
	X, Y      float64
	TimeShift float64
}

// AddRouteFromWaypoints is AddRoute's sibling for callers that think in
// absolute destinations rather than relative shifts: each waypoint is
// converted to a RouteDelta by subtracting the position of the waypoint
// (or starting coordinate) before it.
func (e *Entity) AddRouteFromWaypoints(g GridHandle, waypoints []Waypoint, at *float64, raiseOnFutureCollision bool) error {
	deltas := make([]RouteDelta, len(waypoints))
	prevX, prevY := e.X, e.Y
	for i, w := range waypoints {
		deltas[i] = RouteDelta{XShift: w.X - prevX, YShift: w.Y - prevY, TimeShift: w.TimeShift}
		prevX, prevY = w.X, w.Y
	}
	return e.AddRoute(g, deltas, at, raiseOnFutureCollision)
}

// AddRoute schedules a PlanRoute call for this entity at the given time (or
// the grid's current time, if nil).
func (e *Entity) AddRoute(g GridHandle, routeDeltas []RouteDelta, at *float64, raiseOnFutureCollision bool) error {
	for _, d := range routeDeltas {
		if d.TimeShift <= 0 {
			return ErrInvalidSegment
		}
	}
	time := g.Now()
	if at != nil {
		time = *at
	}
	_, err := g.ScheduleEvent(time, PlanRoutePayload{
		Entity:                 e,
		RouteDeltas:            routeDeltas,
		RaiseOnFutureCollision: raiseOnFutureCollision,
	})
	return err
}
