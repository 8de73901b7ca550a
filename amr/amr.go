// Package amr implements a goal-seeking mobile robot policy on top of a
// plain entity.Entity: given a goal coordinate, it repeatedly issues short,
// randomly-angled routes biased toward the goal until it arrives within
// tolerance, backing off and re-routing around anything it predicts it
// would collide with.
package amr

import (
	"math"
	"math/rand"

	"fizgrid/entity"
	"fizgrid/geometry"
	"fizgrid/grid"
)

// GoalSeeker wraps an Entity with a destination and a cruising speed. It
// has no behavior of its own until SetGoal is called.
type GoalSeeker struct {
	*entity.Entity
	GoalX, GoalY float64
	Tolerance    float64
	Speed        float64
}

// NewGoalSeeker builds a moving entity with goal-seeking behavior, not yet
// given a goal.
func NewGoalSeeker(name string, shape []geometry.Point, x, y float64) *GoalSeeker {
	return &GoalSeeker{Entity: entity.New(name, shape, x, y)}
}

// SetGoal assigns a destination, tolerance radius, and cruising speed, and
// immediately issues the first leg toward it.
func (s *GoalSeeker) SetGoal(g entity.GridHandle, goalX, goalY, tolerance, speed float64) error {
	s.GoalX, s.GoalY, s.Tolerance, s.Speed = goalX, goalY, tolerance, speed
	return s.AddNextRoute(g)
}

// AddNextRoute issues one more short leg biased toward the goal, unless the
// seeker is already mid-route or has arrived within tolerance. The leg's
// heading is drawn from a normal distribution centered on the bearing to
// the goal (so it wanders, but trends toward it) and its length is drawn
// uniformly between 0 and the lesser of 5 units or the remaining distance.
func (s *GoalSeeker) AddNextRoute(g entity.GridHandle) error {
	if s.InRoute(g) {
		return nil
	}
	dx, dy := s.GoalX-s.X, s.GoalY-s.Y
	distanceFromGoal := math.Hypot(dx, dy)
	if distanceFromGoal < s.Tolerance {
		return nil
	}

	goalAngle := math.Atan2(dy, dx)
	randomAngle := rand.NormFloat64()*(math.Pi/2) + goalAngle
	legDistance := rand.Float64() * math.Min(distanceFromGoal, 5)

	return s.AddRoute(g, []entity.RouteDelta{{
		XShift:    legDistance * math.Cos(randomAngle),
		YShift:    legDistance * math.Sin(randomAngle),
		TimeShift: legDistance / s.Speed,
	}}, nil, false)
}

// Drive runs g to completion, giving every seeker a chance to queue its
// next leg each time one of its events fires and leaves it out of route.
// It mirrors test_05.py's simulation loop: resolve one batch of events at a
// time rather than calling Grid.Simulate, because seekers need to react
// between batches.
func Drive(g *grid.Grid, seekers []*GoalSeeker) []grid.FiredEvent {
	byID := make(map[string]*GoalSeeker, len(seekers))
	for _, s := range seekers {
		byID[s.ID.String()] = s
	}

	var all []grid.FiredEvent
	for {
		fired := g.ResolveNextState()
		if len(fired) == 0 {
			return all
		}
		all = append(all, fired...)
		for _, fe := range fired {
			seeker, ok := byID[fe.EntityID.String()]
			if !ok || seeker.InRoute(g) {
				continue
			}
			_ = seeker.AddNextRoute(g)
		}
	}
}
