// Package grid is the driver that owns a simulation: its cell reservation
// table, its time queue, and the set of entities occupying it. Advancing
// the simulation means repeatedly draining the next batch of same-time
// events off the queue and dispatching each to the entity method it names.
package grid

import (
	"errors"
	"fmt"
	"log"

	"github.com/google/uuid"

	"fizgrid/cellindex"
	"fizgrid/entity"
	"fizgrid/geometry"
	"fizgrid/timequeue"
)

// ErrUnknownEntity is returned when an operation names an entity id the
// grid has never seen.
var ErrUnknownEntity = errors.New("grid: unknown entity id")

// FiredEvent describes one event dispatched during a call to
// ResolveNextState, for callers that stream or log activity (package
// server, package report).
type FiredEvent struct {
	Time      float64
	EntityID  uuid.UUID
	Kind      string
	Collision bool
	Err       error
}

// Grid is a fixed-size xSize x ySize cell space driven forward in time by
// a cancellable event queue. It implements entity.GridHandle so entities
// can plan and realize routes against it without holding a reference back.
type Grid struct {
	Name    string
	xSize   int
	ySize   int
	maxTime float64

	cells    *cellindex.CellIndex
	queue    *timequeue.TimeQueue
	entities map[uuid.UUID]*entity.Entity
}

// New builds an empty grid of the given extent, with simulation horizon
// maxTime.
func New(name string, xSize, ySize int, maxTime float64) *Grid {
	return &Grid{
		Name:     name,
		xSize:    xSize,
		ySize:    ySize,
		maxTime:  maxTime,
		cells:    cellindex.New(xSize, ySize),
		queue:    timequeue.New(),
		entities: make(map[uuid.UUID]*entity.Entity),
	}
}

func (g *Grid) String() string {
	return fmt.Sprintf("Grid(%s %dx%d)", g.Name, g.xSize, g.ySize)
}

// Now returns the grid's current simulated time.
func (g *Grid) Now() float64 { return g.queue.Time() }

// MaxTime returns the grid's simulation horizon.
func (g *Grid) MaxTime() float64 { return g.maxTime }

// XSize and YSize report the grid's fixed extent.
func (g *Grid) XSize() int { return g.xSize }
func (g *Grid) YSize() int { return g.ySize }

// ScheduleEvent queues payload to fire at the given time.
func (g *Grid) ScheduleEvent(time float64, payload timequeue.Payload) (uint64, error) {
	return g.queue.Add(time, payload)
}

// CancelEvent cancels a previously scheduled event.
func (g *Grid) CancelEvent(id uint64) (timequeue.Payload, bool) {
	return g.queue.Cancel(id)
}

// ReserveCell reserves a cell on behalf of ownerID.
func (g *Grid) ReserveCell(cx, cy int, tStart, tEnd float64, ownerID uuid.UUID) (uuid.UUID, error) {
	return g.cells.Reserve(cx, cy, tStart, tEnd, ownerID)
}

// ReleaseCell releases a previously held reservation.
func (g *Grid) ReleaseCell(cx, cy int, reservationID uuid.UUID) {
	g.cells.Release(cx, cy, reservationID)
}

// CellReservations returns the reservations currently held in a cell.
func (g *Grid) CellReservations(cx, cy int) []cellindex.Reservation {
	return g.cells.Iterate(cx, cy)
}

// EntityByID looks up a previously added entity.
func (g *Grid) EntityByID(id uuid.UUID) (*entity.Entity, bool) {
	e, ok := g.entities[id]
	return e, ok
}

// Entities returns every entity currently registered on the grid. The
// returned slice is a snapshot.
func (g *Grid) Entities() []*entity.Entity {
	out := make([]*entity.Entity, 0, len(g.entities))
	for _, e := range g.entities {
		out = append(out, e)
	}
	return out
}

// AddEntity registers e with the grid and locks in its starting position as
// of at (nil defaults to the grid's current time): an entity that has never
// moved still needs a reservation blocking its footprint until the horizon
// (or its first scheduled route), so it can be collided into. A future at
// defers the entity's entry — its footprint is not reserved, and it cannot
// be collided into, until that instant, matching the deferred-entry use in
// original_source/fizgrid's test_09.py (grid.add_entity(entity, time=5)
// paired with a route also scheduled at time=5).
func (g *Grid) AddEntity(e *entity.Entity, at *float64) error {
	entryTime := g.Now()
	if at != nil {
		entryTime = *at
	}
	if entryTime < g.Now() {
		return timequeue.ErrPastTime
	}

	g.entities[e.ID] = e
	if entryTime > g.Now() {
		_, err := g.ScheduleEvent(entryTime, entity.RealizeRoutePayload{Entity: e, RaiseOnFutureCollision: true})
		return err
	}
	_, err := e.RealizeRoute(g, false, true)
	return err
}

// AddExteriorWalls adds four static entities around the grid's perimeter so
// no route can sweep an entity off the edge without a predicted collision
// stopping it first.
func (g *Grid) AddExteriorWalls() error {
	xf, yf := float64(g.xSize), float64(g.ySize)

	walls := []*entity.Entity{
		entity.NewStatic("left wall", []geometry.Point{
			{X: 0, Y: 0}, {X: 0, Y: yf}, {X: 1, Y: yf}, {X: 1, Y: 0},
		}, 0, 0),
		entity.NewStatic("right wall", []geometry.Point{
			{X: 0, Y: 0}, {X: 0, Y: yf}, {X: -1, Y: yf}, {X: -1, Y: 0},
		}, xf, 0),
		entity.NewStatic("top wall", []geometry.Point{
			{X: 0, Y: 0}, {X: xf - 2, Y: 0}, {X: xf - 2, Y: -1}, {X: 0, Y: -1},
		}, 1, yf),
		entity.NewStatic("bottom wall", []geometry.Point{
			{X: 0, Y: 0}, {X: xf - 2, Y: 0}, {X: xf - 2, Y: 1}, {X: 0, Y: 1},
		}, 1, 0),
	}
	for _, w := range walls {
		if err := g.AddEntity(w, nil); err != nil {
			return err
		}
	}
	return nil
}

// AddRoute schedules routeDeltas for an already-registered entity.
func (g *Grid) AddRoute(entityID uuid.UUID, routeDeltas []entity.RouteDelta, at *float64, raiseOnFutureCollision bool) error {
	e, ok := g.entities[entityID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownEntity, entityID)
	}
	return e.AddRoute(g, routeDeltas, at, raiseOnFutureCollision)
}

// ResolveNextState dispatches every event scheduled at the queue's next
// fire time and returns a record of what ran.
func (g *Grid) ResolveNextState() []FiredEvent {
	batch := g.queue.DrainSameTime()
	fired := make([]FiredEvent, 0, len(batch))
	for _, entry := range batch {
		fired = append(fired, g.dispatch(entry))
	}
	return fired
}

func (g *Grid) dispatch(entry timequeue.Entry) FiredEvent {
	switch payload := entry.Payload.(type) {
	case entity.PlanRoutePayload:
		_, err := payload.Entity.PlanRoute(g, payload.RouteDeltas, payload.RaiseOnFutureCollision)
		return FiredEvent{Time: entry.Time, EntityID: payload.Entity.ID, Kind: "plan_route", Err: err}
	case entity.RealizeRoutePayload:
		_, err := payload.Entity.RealizeRoute(g, payload.IsResultOfCollision, payload.RaiseOnFutureCollision)
		return FiredEvent{Time: entry.Time, EntityID: payload.Entity.ID, Kind: "realize_route", Collision: payload.IsResultOfCollision, Err: err}
	default:
		return FiredEvent{Time: entry.Time, Kind: "unknown"}
	}
}

// Simulate drives the grid forward until either the queue empties or the
// horizon is reached, logging any per-event error it encounters (an
// already-routed entity or a rejected forbidden collision is expected
// behavior, not a fatal one, so Simulate does not stop for it).
func (g *Grid) Simulate() []FiredEvent {
	var all []FiredEvent
	for {
		next, ok := g.queue.PeekNext()
		if !ok || next.Time > g.maxTime {
			return all
		}
		batch := g.ResolveNextState()
		for _, fe := range batch {
			if fe.Err != nil {
				log.Printf("grid %s: %s at t=%.3f: %v", g.Name, fe.Kind, fe.Time, fe.Err)
			}
		}
		all = append(all, batch...)
	}
}
