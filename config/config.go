// Package config loads a scenario definition — grid extent, horizon, and
// the entities and routes to populate it with — from a YAML file, the way
// the teacher loads route and fleet definitions off disk in model/route_loader.go,
// generalized from hand-rolled encoding/json structs to spf13/viper so a
// scenario can equally be supplied as JSON or TOML without touching this
// package.
package config

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/viper"

	"fizgrid/entity"
	"fizgrid/geometry"
	"fizgrid/grid"
	"fizgrid/shapes"
)

// ShapeConfig describes one of the two out-of-core shape helpers an entity
// may be built from. Exactly one of Rectangle or Circle should be set; if
// neither is, the entity gets a single-point (zero-area) shape.
type ShapeConfig struct {
	Rectangle *RectangleConfig `mapstructure:"rectangle"`
	Circle    *CircleConfig    `mapstructure:"circle"`
}

// RectangleConfig mirrors shapes.Rectangle's parameters.
type RectangleConfig struct {
	XLen   float64 `mapstructure:"x_len"`
	YLen   float64 `mapstructure:"y_len"`
	RoundTo int    `mapstructure:"round_to"`
}

// CircleConfig mirrors shapes.Circle's parameters.
type CircleConfig struct {
	Radius  float64 `mapstructure:"radius"`
	Points  int     `mapstructure:"points"`
	RoundTo int     `mapstructure:"round_to"`
}

// RouteDeltaConfig is one leg of a scenario entity's initial route, in the
// relative-shift form entity.RouteDelta accepts.
type RouteDeltaConfig struct {
	XShift    float64 `mapstructure:"x_shift"`
	YShift    float64 `mapstructure:"y_shift"`
	TimeShift float64 `mapstructure:"time_shift"`
}

// WaypointConfig is one leg of a scenario entity's initial route, in the
// absolute-destination form entity.Waypoint accepts.
type WaypointConfig struct {
	X         float64 `mapstructure:"x"`
	Y         float64 `mapstructure:"y"`
	TimeShift float64 `mapstructure:"time_shift"`
}

// EntityConfig describes one occupant to add to the grid at load time.
type EntityConfig struct {
	Name      string             `mapstructure:"name"`
	Shape     ShapeConfig        `mapstructure:"shape"`
	X         float64            `mapstructure:"x"`
	Y         float64            `mapstructure:"y"`
	Static    bool               `mapstructure:"static"`
	Route     []RouteDeltaConfig `mapstructure:"route"`
	Waypoints []WaypointConfig   `mapstructure:"waypoints"`
	// RaiseOnFutureCollision, if true, rejects the scenario's own initial
	// route rather than letting it schedule a collision event.
	RaiseOnFutureCollision bool `mapstructure:"raise_on_future_collision"`
	// EntryTime defers the entity's entry to that simulated instant instead
	// of the grid's start (nil means "now"): its footprint is not reserved,
	// and it cannot be collided into, until then.
	EntryTime *float64 `mapstructure:"entry_time"`
}

// Scenario is the top-level shape of a scenario file.
type Scenario struct {
	Name             string         `mapstructure:"name"`
	XSize            int            `mapstructure:"x_size"`
	YSize            int            `mapstructure:"y_size"`
	MaxTime          float64        `mapstructure:"max_time"`
	AddExteriorWalls bool           `mapstructure:"add_exterior_walls"`
	Entities         []EntityConfig `mapstructure:"entities"`
}

// Load reads and validates a scenario definition from path. The file's
// extension (or an explicit SetConfigType, left at viper's default
// extension-sniffing) selects the decoder; .yaml/.yml/.json/.toml all work.
func Load(path string) (*Scenario, error) {
	vp := viper.New()
	vp.SetConfigFile(path)
	vp.AddConfigPath(filepath.Dir(path))
	if err := vp.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	var scenario Scenario
	if err := vp.Unmarshal(&scenario); err != nil {
		return nil, fmt.Errorf("config: decode %s: %w", path, err)
	}

	if err := scenario.validate(); err != nil {
		return nil, fmt.Errorf("config: %s: %w", path, err)
	}
	return &scenario, nil
}

// shapePoints converts a ShapeConfig into the offset-point list
// entity.New/NewStatic expect, via the shapes package helpers.
func shapePoints(sc ShapeConfig) []geometry.Point {
	var corners [][2]float64
	switch {
	case sc.Rectangle != nil:
		corners = shapes.Rectangle(sc.Rectangle.XLen, sc.Rectangle.YLen, sc.Rectangle.RoundTo)
	case sc.Circle != nil:
		corners = shapes.Circle(sc.Circle.Radius, sc.Circle.Points, sc.Circle.RoundTo)
	default:
		return []geometry.Point{{X: 0, Y: 0}}
	}
	points := make([]geometry.Point, len(corners))
	for i, c := range corners {
		points[i] = geometry.Point{X: c[0], Y: c[1]}
	}
	return points
}

// Build constructs a grid.Grid from the scenario and registers every
// configured entity and its initial route. It returns the grid and a
// name-indexed lookup of the entities it created, for callers (cmd/fizgrid,
// package server) that need to refer back to a named entity after loading.
func (s *Scenario) Build() (*grid.Grid, map[string]*entity.Entity, error) {
	g := grid.New(s.Name, s.XSize, s.YSize, s.MaxTime)
	if s.AddExteriorWalls {
		if err := g.AddExteriorWalls(); err != nil {
			return nil, nil, fmt.Errorf("config: add exterior walls: %w", err)
		}
	}

	byName := make(map[string]*entity.Entity, len(s.Entities))
	for _, ec := range s.Entities {
		points := shapePoints(ec.Shape)
		var e *entity.Entity
		if ec.Static {
			e = entity.NewStatic(ec.Name, points, ec.X, ec.Y)
		} else {
			e = entity.New(ec.Name, points, ec.X, ec.Y)
		}
		if err := g.AddEntity(e, ec.EntryTime); err != nil {
			return nil, nil, fmt.Errorf("config: add entity %q: %w", ec.Name, err)
		}
		byName[ec.Name] = e

		// A deferred entity's own initial route must not be scheduled
		// before its entry event fires, so it rides the same EntryTime.
		switch {
		case len(ec.Waypoints) > 0:
			waypoints := make([]entity.Waypoint, len(ec.Waypoints))
			for i, w := range ec.Waypoints {
				waypoints[i] = entity.Waypoint{X: w.X, Y: w.Y, TimeShift: w.TimeShift}
			}
			if err := e.AddRouteFromWaypoints(g, waypoints, ec.EntryTime, ec.RaiseOnFutureCollision); err != nil {
				return nil, nil, fmt.Errorf("config: route entity %q: %w", ec.Name, err)
			}
		case len(ec.Route) > 0:
			deltas := make([]entity.RouteDelta, len(ec.Route))
			for i, d := range ec.Route {
				deltas[i] = entity.RouteDelta{XShift: d.XShift, YShift: d.YShift, TimeShift: d.TimeShift}
			}
			if err := g.AddRoute(e.ID, deltas, ec.EntryTime, ec.RaiseOnFutureCollision); err != nil {
				return nil, nil, fmt.Errorf("config: route entity %q: %w", ec.Name, err)
			}
		}
	}

	return g, byName, nil
}

func (s *Scenario) validate() error {
	if s.XSize <= 0 || s.YSize <= 0 {
		return fmt.Errorf("x_size and y_size must be positive (got %d x %d)", s.XSize, s.YSize)
	}
	if s.MaxTime <= 0 {
		return fmt.Errorf("max_time must be positive (got %v)", s.MaxTime)
	}
	for i, e := range s.Entities {
		if e.Name == "" {
			return fmt.Errorf("entities[%d]: name is required", i)
		}
		if len(e.Route) > 0 && len(e.Waypoints) > 0 {
			return fmt.Errorf("entities[%d] %q: route and waypoints are mutually exclusive", i, e.Name)
		}
		if e.EntryTime != nil && *e.EntryTime < 0 {
			return fmt.Errorf("entities[%d] %q: entry_time must not be negative (got %v)", i, e.Name, *e.EntryTime)
		}
	}
	return nil
}
