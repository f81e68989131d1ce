package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/dispatch-sim/dispatch-sim/dispatch"
	"github.com/dispatch-sim/dispatch-sim/dispatch/solver"
	"github.com/dispatch-sim/dispatch-sim/server"
)

var (
	// CLI flags shared by serve and run
	seed     int64  // Seed for solver metaheuristics
	logLevel string // Log verbosity level

	// serve flags
	listenAddr string // HTTP listen address

	// run flags
	scenarioPath string // Scenario YAML file
	scenarioName string // Named scenario inside the file
	instancePath string // CVRP instance fixture (JSON)
)

// rootCmd is the base command for the CLI
var rootCmd = &cobra.Command{
	Use:   "dispatch-sim",
	Short: "Dynamic last-mile dispatcher and simulation driver",
}

// serveCmd exposes the dispatch core over HTTP and WebSocket
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the dispatch HTTP server",
	Run: func(cmd *cobra.Command, args []string) {
		setupLogging()
		srv := server.New(seed)
		logrus.Infof("listening on %s (seed=%d)", listenAddr, seed)
		if err := srv.Router().Run(listenAddr); err != nil {
			logrus.Fatalf("server stopped: %v", err)
		}
	},
}

// runCmd replays a scenario against a historic instance without the HTTP layer
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Replay a delivery scenario and report the monitor totals",
	Run: func(cmd *cobra.Command, args []string) {
		setupLogging()

		sc, err := GetScenario(scenarioPath, scenarioName)
		if err != nil {
			logrus.Fatalf("unable to read scenario config: %v", err)
		}

		inst, err := dispatch.LoadInstance(instancePath)
		if err != nil {
			logrus.Fatalf("unable to read instance: %v", err)
		}

		monitor, err := replay(sc, inst)
		if err != nil {
			logrus.Fatalf("replay failed: %v", err)
		}
		fmt.Printf("created=%d completed=%d late=%d penalty=%d route_time=%.1fmin\n",
			monitor.DeliveriesCreated, monitor.DeliveriesCompleted,
			monitor.DeliveriesLate, monitor.PenaltyIncurred, monitor.RouteTimeMinutes)
	},
}

// replay wires a scenario into a system and drives it over the horizon.
func replay(sc *Scenario, inst *dispatch.CVRPInstance) (*dispatch.Monitor, error) {
	cfg := sc.SimulationConfig()
	sol, err := solver.New(cfg, dispatch.NewPartitionedRNG(seed))
	if err != nil {
		return nil, err
	}

	vehicles := make([]*dispatch.Vehicle, 0, len(sc.Fleet))
	for _, f := range sc.Fleet {
		capacity := f.Capacity
		if capacity == 0 {
			capacity = inst.VehicleCapacity
		}
		vehicles = append(vehicles, dispatch.NewVehicle(f.ID, capacity))
	}

	depot := inst.Origin
	if sc.Depot != nil {
		depot = *sc.Depot
	}

	start := sc.Start.UTC()
	sys, err := dispatch.NewSystem(cfg, sol, vehicles, depot, start)
	if err != nil {
		return nil, err
	}

	deliveries, err := inst.Rebase(start)
	if err != nil {
		return nil, err
	}

	end := start.Add(time.Duration(sc.HorizonMinutes) * time.Minute)
	return dispatch.NewRunner(sys, end, deliveries).Run(), nil
}

func setupLogging() {
	level, err := logrus.ParseLevel(logLevel)
	if err != nil {
		logrus.Fatalf("Invalid log level: %s", logLevel)
	}
	logrus.SetLevel(level)
}

// Execute runs the CLI root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// init sets up CLI flags and subcommands
func init() {
	rootCmd.PersistentFlags().Int64Var(&seed, "seed", 42, "Seed for solver randomness")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log", "info", "Log level (trace, debug, info, warn, error, fatal, panic)")

	serveCmd.Flags().StringVar(&listenAddr, "addr", ":8000", "HTTP listen address")

	runCmd.Flags().StringVar(&scenarioPath, "scenario-file", "scenarios.yaml", "Scenario YAML file")
	runCmd.Flags().StringVar(&scenarioName, "scenario", "default", "Scenario name inside the file")
	runCmd.Flags().StringVar(&instancePath, "instance", "", "CVRP instance fixture (JSON)")
	_ = runCmd.MarkFlagRequired("instance")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(runCmd)
}
