// Package report summarizes a finished Grid.Simulate() run: per-entity
// distance traveled and collision count, written as CSV or printed to the
// console. Grounded on the teacher's sim/report.go, with bus/passenger
// fields replaced by the distance-traveled/collision-count fields this
// domain actually produces.
package report

import (
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"fizgrid/entity"
	"fizgrid/grid"
)

// EntitySummary is one entity's end-of-run statistics.
type EntitySummary struct {
	ID         uuid.UUID
	Name       string
	Distance   float64
	Legs       int
	Collisions int
}

// Summarize walks every entity's History and the fired-event log from a
// completed Grid.Simulate() call into one EntitySummary per entity.
func Summarize(entities []*entity.Entity, fired []grid.FiredEvent) []EntitySummary {
	collisionCounts := make(map[uuid.UUID]int, len(entities))
	for _, fe := range fired {
		if fe.Collision {
			collisionCounts[fe.EntityID]++
		}
	}

	out := make([]EntitySummary, 0, len(entities))
	for _, e := range entities {
		var dist float64
		for _, h := range e.History {
			dist += math.Hypot(h.XShift, h.YShift)
		}
		out = append(out, EntitySummary{
			ID:         e.ID,
			Name:       e.Name,
			Distance:   round2(dist),
			Legs:       len(e.History),
			Collisions: collisionCounts[e.ID],
		})
	}
	return out
}

func round2(x float64) float64 { return math.Round(x*100) / 100 }

// WriteCSV writes a per-entity CSV report to reportPath. If reportPath names
// an existing directory, a timestamped file is created inside it; if it
// names a file, a timestamp is suffixed before the extension. An empty
// reportPath is a no-op, returning "".
func WriteCSV(reportPath string, summaries []EntitySummary) (string, error) {
	if reportPath == "" {
		return "", nil
	}
	ts := time.Now().Format("20060102-150405")
	outPath := reportPath
	if fi, err := os.Stat(outPath); err == nil && fi.IsDir() {
		outPath = filepath.Join(outPath, fmt.Sprintf("report-%s.csv", ts))
	} else {
		ext := filepath.Ext(outPath)
		base := outPath[:len(outPath)-len(ext)]
		outPath = fmt.Sprintf("%s-%s%s", base, ts, ext)
	}
	f, err := os.Create(outPath)
	if err != nil {
		return "", err
	}
	defer f.Close()
	if err := writeCSV(f, summaries); err != nil {
		return "", err
	}
	return outPath, nil
}

func writeCSV(w io.Writer, summaries []EntitySummary) error {
	fmt.Fprintln(w, "entity_id,name,distance,legs,collisions")
	for _, s := range summaries {
		if _, err := fmt.Fprintf(w, "%s,%s,%.2f,%d,%d\n", s.ID, s.Name, s.Distance, s.Legs, s.Collisions); err != nil {
			return err
		}
	}
	return nil
}

// PrintConsole prints a human-readable summary to stdout.
func PrintConsole(summaries []EntitySummary) {
	fmt.Println("=== Simulation Report ===")
	fmt.Printf("Entities: %d\n", len(summaries))
	var totalDist float64
	for _, s := range summaries {
		totalDist += s.Distance
		fmt.Printf("%-20s distance=%8.2f legs=%3d collisions=%d\n", s.Name, s.Distance, s.Legs, s.Collisions)
	}
	fmt.Printf("Total distance traveled: %.2f\n", totalDist)
}
