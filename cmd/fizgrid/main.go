// Command fizgrid is the CLI entrypoint: load a scenario file, run it
// headlessly (optionally as N concurrent independent trials) or serve it
// live over HTTP/WebSocket. Built with spf13/cobra in place of the
// teacher's flag-driven main.go, matching the pack's cobra usage in
// o9nn-echo.go/cmd.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"fizgrid/config"
	"fizgrid/report"
	"fizgrid/server"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "fizgrid",
		Short: "Continuous-time 2D spatial collision simulator",
		Long:  "fizgrid loads a scenario (grid extent, horizon, entities, routes) and simulates it, predicting the earliest pairwise collision between moving entities as they occur.",
	}
	root.AddCommand(runCmd(), serveCmd(), validateCmd())
	return root
}

func runCmd() *cobra.Command {
	var reportPath string
	var trials int

	cmd := &cobra.Command{
		Use:   "run SCENARIO",
		Short: "Run a scenario to completion and print a report",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			scenario, err := config.Load(args[0])
			if err != nil {
				return err
			}
			if trials <= 1 {
				return runOnce(scenario, reportPath)
			}
			return runTrials(scenario, trials, reportPath)
		},
	}
	cmd.Flags().StringVar(&reportPath, "report", "", "write a CSV report to this file or directory (timestamp appended)")
	cmd.Flags().IntVar(&trials, "trials", 1, "number of independent concurrent trials to run")
	return cmd
}

func runOnce(scenario *config.Scenario, reportPath string) error {
	g, _, err := scenario.Build()
	if err != nil {
		return err
	}
	fired := g.Simulate()
	summaries := report.Summarize(g.Entities(), fired)
	report.PrintConsole(summaries)
	if reportPath != "" {
		path, err := report.WriteCSV(reportPath, summaries)
		if err != nil {
			return fmt.Errorf("write report: %w", err)
		}
		fmt.Printf("report written to %s\n", path)
	}
	return nil
}

// runTrials runs n independent simulations of the same scenario concurrently
// via errgroup, each building its own Grid so trials never share state —
// spec.md's Non-goals exclude parallelism *within* one Grid, not running
// several Grids side by side. Grounded on the teacher's driver/batch.go
// headless batch runner, generalized to concurrent goroutines the way
// o9nn-echo.go's go.mod pulls in golang.org/x/sync/errgroup for the same
// "fan out independent units of work" need.
func runTrials(scenario *config.Scenario, n int, reportPath string) error {
	allSummaries := make([][]report.EntitySummary, n)
	var g errgroup.Group
	for i := 0; i < n; i++ {
		i := i
		g.Go(func() error {
			built, _, err := scenario.Build()
			if err != nil {
				return fmt.Errorf("trial %d: %w", i, err)
			}
			fired := built.Simulate()
			allSummaries[i] = report.Summarize(built.Entities(), fired)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	for i, summaries := range allSummaries {
		fmt.Printf("--- trial %d ---\n", i)
		report.PrintConsole(summaries)
		if reportPath != "" {
			path, err := report.WriteCSV(reportPath, summaries)
			if err != nil {
				return fmt.Errorf("trial %d: write report: %w", i, err)
			}
			fmt.Printf("report written to %s\n", path)
		}
	}
	return nil
}

func serveCmd() *cobra.Command {
	var addr string
	var speed float64

	cmd := &cobra.Command{
		Use:   "serve SCENARIO",
		Short: "Load a scenario and serve it live over HTTP/WebSocket",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			scenario, err := config.Load(args[0])
			if err != nil {
				return err
			}
			g, _, err := scenario.Build()
			if err != nil {
				return err
			}
			srv := server.New(scenario.Name, g, server.Options{DefaultSpeed: speed})
			return srv.ListenAndServe(addr)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", ":8080", "address to listen on")
	cmd.Flags().Float64Var(&speed, "speed", 1.0, "default simulated-units-per-real-second playback pacing")
	return cmd
}

func validateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate SCENARIO",
		Short: "Load and validate a scenario without running it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			scenario, err := config.Load(args[0])
			if err != nil {
				return err
			}
			if _, _, err := scenario.Build(); err != nil {
				return fmt.Errorf("scenario builds with an error: %w", err)
			}
			fmt.Printf("%q: %d x %d grid, horizon %.1f, %d entities — OK\n", scenario.Name, scenario.XSize, scenario.YSize, scenario.MaxTime, len(scenario.Entities))
			return nil
		},
	}
}
