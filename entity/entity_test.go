package entity

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"fizgrid/cellindex"
	"fizgrid/geometry"
	"fizgrid/timequeue"
)

// fakeGrid is a minimal, in-memory GridHandle used to exercise Entity's
// route lifecycle without depending on the grid package.
type fakeGrid struct {
	now      float64
	maxTime  float64
	xSize    int
	ySize    int
	cells    *cellindex.CellIndex
	queue    *timequeue.TimeQueue
	entities map[uuid.UUID]*Entity
}

func newFakeGrid(xSize, ySize int, maxTime float64) *fakeGrid {
	return &fakeGrid{
		maxTime:  maxTime,
		xSize:    xSize,
		ySize:    ySize,
		cells:    cellindex.New(xSize, ySize),
		queue:    timequeue.New(),
		entities: make(map[uuid.UUID]*Entity),
	}
}

func (g *fakeGrid) Now() float64     { return g.now }
func (g *fakeGrid) MaxTime() float64 { return g.maxTime }
func (g *fakeGrid) XSize() int       { return g.xSize }
func (g *fakeGrid) YSize() int       { return g.ySize }

func (g *fakeGrid) ScheduleEvent(time float64, payload timequeue.Payload) (uint64, error) {
	return g.queue.Add(time, payload)
}

func (g *fakeGrid) CancelEvent(id uint64) (timequeue.Payload, bool) {
	return g.queue.Cancel(id)
}

func (g *fakeGrid) ReserveCell(cx, cy int, tStart, tEnd float64, ownerID uuid.UUID) (uuid.UUID, error) {
	return g.cells.Reserve(cx, cy, tStart, tEnd, ownerID)
}

func (g *fakeGrid) ReleaseCell(cx, cy int, reservationID uuid.UUID) {
	g.cells.Release(cx, cy, reservationID)
}

func (g *fakeGrid) CellReservations(cx, cy int) []cellindex.Reservation {
	return g.cells.Iterate(cx, cy)
}

func (g *fakeGrid) EntityByID(id uuid.UUID) (*Entity, bool) {
	e, ok := g.entities[id]
	return e, ok
}

func (g *fakeGrid) add(e *Entity) {
	g.entities[e.ID] = e
}

func unitSquare() []geometry.Point {
	return []geometry.Point{{X: -0.5, Y: -0.5}, {X: 0.5, Y: -0.5}, {X: 0.5, Y: 0.5}, {X: -0.5, Y: 0.5}}
}

func TestNewEntityHasUniqueID(t *testing.T) {
	a := New("a", unitSquare(), 0, 0)
	b := New("b", unitSquare(), 0, 0)
	require.NotEqual(t, a.ID, b.ID)
}

func TestPlanRouteReservesCellsAndSchedulesRouteEnd(t *testing.T) {
	g := newFakeGrid(10, 10, 100)
	e := New("mover", unitSquare(), 2, 2)
	g.add(e)

	hasCollision, err := e.PlanRoute(g, []RouteDelta{{XShift: 2, YShift: 0, TimeShift: 2}}, false)
	require.NoError(t, err)
	require.False(t, hasCollision)
	require.Equal(t, 2.0, e.routeEndTime)
	require.NotEmpty(t, e.blockedCells)
	require.Len(t, e.futureEvents, 1, "exactly one plain route-end event should be scheduled")
}

func TestPlanRouteRejectsWhileAlreadyRouted(t *testing.T) {
	g := newFakeGrid(10, 10, 100)
	e := New("mover", unitSquare(), 2, 2)
	g.add(e)

	_, err := e.PlanRoute(g, []RouteDelta{{XShift: 1, YShift: 0, TimeShift: 5}}, false)
	require.NoError(t, err)

	_, err = e.PlanRoute(g, []RouteDelta{{XShift: 1, YShift: 0, TimeShift: 5}}, false)
	require.ErrorIs(t, err, ErrAlreadyRouted)
}

func TestPlanRouteRejectsWhenStartingAtOrPastHorizon(t *testing.T) {
	g := newFakeGrid(10, 10, 100)
	g.now = 100
	e := New("mover", unitSquare(), 2, 2)
	g.add(e)

	_, err := e.PlanRoute(g, []RouteDelta{{XShift: 1, YShift: 0, TimeShift: 5}}, false)
	require.ErrorIs(t, err, ErrHorizonExceeded)
}

func TestPlanRouteAllowsEmptyRouteExactlyAtHorizon(t *testing.T) {
	g := newFakeGrid(10, 10, 100)
	g.now = 100
	e := New("mover", unitSquare(), 2, 2)
	g.add(e)

	_, err := e.PlanRoute(g, nil, false)
	require.NoError(t, err)
}

func TestPlanRouteDetectsCollisionBetweenTwoEntities(t *testing.T) {
	g := newFakeGrid(10, 10, 100)
	a := New("a", unitSquare(), 1, 2)
	b := New("b", unitSquare(), 8, 2)
	g.add(a)
	g.add(b)

	_, err := a.PlanRoute(g, []RouteDelta{{XShift: 8, YShift: 0, TimeShift: 8}}, false)
	require.NoError(t, err)

	hasCollision, err := b.PlanRoute(g, []RouteDelta{{XShift: -8, YShift: 0, TimeShift: 8}}, false)
	require.NoError(t, err)
	require.True(t, hasCollision)
	require.Len(t, a.futureEvents, 2, "a keeps its route-end event plus a new collision event")
}

func TestPlanRouteRaisesOnFutureCollisionWhenRequested(t *testing.T) {
	g := newFakeGrid(10, 10, 100)
	a := New("a", unitSquare(), 1, 2)
	b := New("b", unitSquare(), 8, 2)
	g.add(a)
	g.add(b)

	_, err := a.PlanRoute(g, []RouteDelta{{XShift: 8, YShift: 0, TimeShift: 8}}, false)
	require.NoError(t, err)

	_, err = b.PlanRoute(g, []RouteDelta{{XShift: -8, YShift: 0, TimeShift: 8}}, true)
	require.ErrorIs(t, err, ErrForbiddenCollision)
}

func TestRealizeRouteProratesPartialSegmentAndRecordsHistory(t *testing.T) {
	g := newFakeGrid(10, 10, 100)
	e := New("mover", unitSquare(), 0, 0)
	g.add(e)

	_, err := e.PlanRoute(g, []RouteDelta{{XShift: 4, YShift: 0, TimeShift: 4}}, false)
	require.NoError(t, err)

	g.now = 2
	_, err = e.RealizeRoute(g, false, false)
	require.NoError(t, err)

	require.InDelta(t, 2.0, e.X, 1e-9)
	require.InDelta(t, 0.0, e.Y, 1e-9)
	require.Len(t, e.History, 1)
	require.InDelta(t, 2.0, e.History[0].XShift, 1e-9)
	require.InDelta(t, 2.0, e.History[0].TimeShift, 1e-9)
}

func TestStaticEntityIgnoresCollisionRealize(t *testing.T) {
	g := newFakeGrid(10, 10, 100)
	wall := NewStatic("wall", unitSquare(), 5, 5)
	g.add(wall)

	_, err := wall.PlanRoute(g, nil, false)
	require.NoError(t, err)
	before := wall.X

	moved, err := wall.RealizeRoute(g, true, false)
	require.NoError(t, err)
	require.False(t, moved)
	require.Equal(t, before, wall.X, "a static entity must not move when realize is collision-triggered")
}

func TestAddRouteRejectsNonPositiveTimeShift(t *testing.T) {
	g := newFakeGrid(10, 10, 100)
	e := New("mover", unitSquare(), 0, 0)
	g.add(e)

	err := e.AddRoute(g, []RouteDelta{{XShift: 1, YShift: 0, TimeShift: 0}}, nil, false)
	require.ErrorIs(t, err, ErrInvalidSegment)
}

func TestAddRouteFromWaypointsConvertsAbsoluteCoordinates(t *testing.T) {
	g := newFakeGrid(10, 10, 100)
	e := New("mover", unitSquare(), 1, 1)
	g.add(e)

	err := e.AddRouteFromWaypoints(g, []Waypoint{{X: 4, Y: 1, TimeShift: 3}, {X: 4, Y: 5, TimeShift: 4}}, nil, false)
	require.NoError(t, err)

	entry, ok := g.queue.PeekNext()
	require.True(t, ok)
	payload, isPlanRoute := entry.Payload.(PlanRoutePayload)
	require.True(t, isPlanRoute)
	require.Equal(t, []RouteDelta{
		{XShift: 3, YShift: 0, TimeShift: 3},
		{XShift: 0, YShift: 4, TimeShift: 4},
	}, payload.RouteDeltas)
}

func TestAddRouteSchedulesAPlanRouteEvent(t *testing.T) {
	g := newFakeGrid(10, 10, 100)
	e := New("mover", unitSquare(), 0, 0)
	g.add(e)

	err := e.AddRoute(g, []RouteDelta{{XShift: 1, YShift: 0, TimeShift: 1}}, nil, false)
	require.NoError(t, err)

	entry, ok := g.queue.PeekNext()
	require.True(t, ok)
	_, isPlanRoute := entry.Payload.(PlanRoutePayload)
	require.True(t, isPlanRoute)
}
