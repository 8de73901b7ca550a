package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeScenario(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "scenario.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadValidScenario(t *testing.T) {
	path := writeScenario(t, `
name: test-grid
x_size: 10
y_size: 10
max_time: 100
add_exterior_walls: true
entities:
  - name: mover
    x: 1
    y: 1
    shape:
      rectangle:
        x_len: 1
        y_len: 1
        round_to: 2
    route:
      - x_shift: 2
        y_shift: 0
        time_shift: 2
`)

	scenario, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "test-grid", scenario.Name)
	require.Equal(t, 10, scenario.XSize)
	require.True(t, scenario.AddExteriorWalls)
	require.Len(t, scenario.Entities, 1)
	require.Len(t, scenario.Entities[0].Route, 1)
}

func TestLoadRejectsNonPositiveExtent(t *testing.T) {
	path := writeScenario(t, `
name: bad-grid
x_size: 0
y_size: 10
max_time: 100
`)
	_, err := Load(path)
	require.Error(t, err)
}

func TestLoadRejectsRouteAndWaypointsTogether(t *testing.T) {
	path := writeScenario(t, `
name: conflicting
x_size: 10
y_size: 10
max_time: 100
entities:
  - name: confused
    x: 0
    y: 0
    route:
      - x_shift: 1
        y_shift: 0
        time_shift: 1
    waypoints:
      - x: 1
        y: 0
        time_shift: 1
`)
	_, err := Load(path)
	require.Error(t, err)
}

func TestBuildConstructsGridAndRoutes(t *testing.T) {
	path := writeScenario(t, `
name: built
x_size: 10
y_size: 10
max_time: 100
add_exterior_walls: true
entities:
  - name: mover
    x: 2
    y: 2
    shape:
      rectangle:
        x_len: 1
        y_len: 1
        round_to: 2
    route:
      - x_shift: 2
        y_shift: 0
        time_shift: 2
`)
	scenario, err := Load(path)
	require.NoError(t, err)

	g, byName, err := scenario.Build()
	require.NoError(t, err)
	require.NotNil(t, g)

	mover, ok := byName["mover"]
	require.True(t, ok)
	require.Equal(t, 2.0, mover.X)
	require.Equal(t, 2.0, mover.Y)

	// Four exterior walls plus the one configured entity.
	require.Len(t, g.Entities(), 5)
}

func TestBuildHandlesDeferredEntryTime(t *testing.T) {
	path := writeScenario(t, `
name: deferred
x_size: 10
y_size: 10
max_time: 100
entities:
  - name: latecomer
    x: 4
    y: 4
    entry_time: 5
    shape:
      rectangle:
        x_len: 1
        y_len: 1
        round_to: 2
    route:
      - x_shift: 1
        y_shift: 0
        time_shift: 1
`)
	scenario, err := Load(path)
	require.NoError(t, err)
	require.NotNil(t, scenario.Entities[0].EntryTime)
	require.Equal(t, 5.0, *scenario.Entities[0].EntryTime)

	g, byName, err := scenario.Build()
	require.NoError(t, err)
	require.Contains(t, byName, "latecomer")
	// the entity's entry event hasn't fired yet, so its footprint is not
	// reserved until the grid is advanced to t=5.
	require.Empty(t, g.CellReservations(4, 4))
}

func TestLoadRejectsNegativeEntryTime(t *testing.T) {
	path := writeScenario(t, `
name: bad-entry
x_size: 10
y_size: 10
max_time: 100
entities:
  - name: mover
    x: 0
    y: 0
    entry_time: -1
`)
	_, err := Load(path)
	require.Error(t, err)
}

func TestBuildHandlesWaypointRoute(t *testing.T) {
	path := writeScenario(t, `
name: waypointed
x_size: 10
y_size: 10
max_time: 100
entities:
  - name: mover
    x: 0
    y: 0
    shape:
      circle:
        radius: 0.5
        points: 6
        round_to: 2
    waypoints:
      - x: 2
        y: 0
        time_shift: 2
      - x: 2
        y: 2
        time_shift: 2
`)
	scenario, err := Load(path)
	require.NoError(t, err)

	_, byName, err := scenario.Build()
	require.NoError(t, err)
	require.Contains(t, byName, "mover")
}
