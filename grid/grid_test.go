package grid

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"fizgrid/entity"
	"fizgrid/geometry"
	"fizgrid/timequeue"
)

func unitSquare() []geometry.Point {
	return []geometry.Point{{X: -0.5, Y: -0.5}, {X: 0.5, Y: -0.5}, {X: 0.5, Y: 0.5}, {X: -0.5, Y: 0.5}}
}

func TestAddEntityReservesStartingCell(t *testing.T) {
	g := New("test", 10, 10, 100)
	e := entity.New("mover", unitSquare(), 2, 2)
	require.NoError(t, g.AddEntity(e, nil))

	res := g.CellReservations(2, 2)
	require.Len(t, res, 1)
	require.Equal(t, e.ID, res[0].Owner)
}

func TestAddExteriorWallsBlocksPerimeter(t *testing.T) {
	g := New("test", 5, 5, 100)
	require.NoError(t, g.AddExteriorWalls())
	require.Len(t, g.Entities(), 4)

	// left wall occupies column 0
	require.NotEmpty(t, g.CellReservations(0, 2))
}

func TestSimulateRunsSingleEntityRouteToCompletion(t *testing.T) {
	g := New("test", 10, 10, 20)
	e := entity.New("mover", unitSquare(), 1, 1)
	require.NoError(t, g.AddEntity(e, nil))
	require.NoError(t, g.AddRoute(e.ID, []entity.RouteDelta{{XShift: 5, YShift: 0, TimeShift: 5}}, nil, false))

	fired := g.Simulate()
	require.NotEmpty(t, fired)
	require.InDelta(t, 6.0, e.X, 1e-9)
	require.InDelta(t, 1.0, e.Y, 1e-9)
}

func TestSimulateStopsTwoEntitiesAtPredictedCollision(t *testing.T) {
	g := New("test", 20, 5, 50)
	a := entity.New("a", unitSquare(), 1, 2)
	b := entity.New("b", unitSquare(), 18, 2)
	require.NoError(t, g.AddEntity(a, nil))
	require.NoError(t, g.AddEntity(b, nil))

	require.NoError(t, g.AddRoute(a.ID, []entity.RouteDelta{{XShift: 16, YShift: 0, TimeShift: 16}}, nil, false))
	require.NoError(t, g.AddRoute(b.ID, []entity.RouteDelta{{XShift: -16, YShift: 0, TimeShift: 16}}, nil, false))

	fired := g.Simulate()
	require.NotEmpty(t, fired)

	var sawCollisionRealize bool
	for _, fe := range fired {
		if fe.Kind == "realize_route" && fe.Collision {
			sawCollisionRealize = true
		}
	}
	require.True(t, sawCollisionRealize)
	// the two entities must not have passed through each other: a's final x
	// stays left of where b's final x ends up.
	require.Less(t, a.X, b.X)
}

func TestAddRouteOnUnknownEntityErrors(t *testing.T) {
	g := New("test", 10, 10, 10)
	err := g.AddRoute(uuid.New(), nil, nil, false)
	require.ErrorIs(t, err, ErrUnknownEntity)
}

func TestAddEntityDefersEntryUntilGivenTime(t *testing.T) {
	g := New("test", 10, 10, 20)
	e := entity.New("latecomer", unitSquare(), 4, 4)
	at := 5.0
	require.NoError(t, g.AddEntity(e, &at))

	// the entry event hasn't fired yet, so nothing is reserved.
	require.Empty(t, g.CellReservations(4, 4))

	fired := g.Simulate()
	require.NotEmpty(t, fired)
	require.NotEmpty(t, g.CellReservations(4, 4))
}

func TestAddEntityRejectsEntryTimeBeforeNow(t *testing.T) {
	g := New("test", 10, 10, 20)
	mover := entity.New("mover", unitSquare(), 1, 1)
	require.NoError(t, g.AddEntity(mover, nil))
	require.NoError(t, g.AddRoute(mover.ID, []entity.RouteDelta{{XShift: 1, YShift: 0, TimeShift: 5}}, nil, false))
	g.Simulate()
	require.Greater(t, g.Now(), 0.0)

	late := entity.New("latecomer", unitSquare(), 8, 8)
	past := 0.0
	err := g.AddEntity(late, &past)
	require.ErrorIs(t, err, timequeue.ErrPastTime)
}
