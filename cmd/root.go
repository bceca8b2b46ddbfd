package cmd

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	sim "github.com/wolfatthegate/HybridCloudSim-SC2025/sim"
)

var (
	// CLI flags for the simulation run
	seed        int64   // RNG master seed
	until       float64 // simulation horizon in sim-minutes (0 = run to empty)
	logLevel    string  // log verbosity level
	broker      string  // broker strategy: capacity or serial
	feed        string  // job feed method: generator or dispatcher
	feedFile    string  // CSV or JSON job file for the dispatcher
	allocation  string  // bulk allocation policy: fast or smart
	devices     []string
	catalogPath string // optional YAML device catalog
	maintenance bool   // enable device maintenance processes
	dumpRecords bool   // dump the full job record ledger at end
)

// rootCmd is the base command for the CLI
var rootCmd = &cobra.Command{
	Use:   "hybridcloudsim",
	Short: "Discrete-event simulator for hybrid quantum/classical compute clouds",
}

// runCmd executes the simulation using parameters from CLI flags
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the cloud simulation",
	Run: func(cmd *cobra.Command, args []string) {
		level, err := logrus.ParseLevel(logLevel)
		if err != nil {
			logrus.Fatalf("Invalid log level: %s", logLevel)
		}
		logrus.SetLevel(level)

		env, err := sim.NewEnvironment(sim.Config{
			Seed:        seed,
			Broker:      broker,
			Feed:        feed,
			FeedFile:    feedFile,
			Allocation:  allocation,
			Devices:     devices,
			CatalogPath: catalogPath,
			Maintenance: maintenance,
		})
		if err != nil {
			logrus.Fatalf("Invalid configuration: %v", err)
		}

		if feed == sim.FeedGenerator && until <= 0 {
			logrus.Fatalf("The generator feed produces jobs forever; provide --until")
		}

		logrus.Infof("Starting simulation with seed=%d, broker=%s, feed=%s, until=%.1f",
			seed, broker, feed, until)

		env.Run(until)
		sim.Summarize(env.Ledger).Print()

		if dumpRecords {
			fmt.Print(env.Ledger.Snapshot())
		}
		logrus.Info("Simulation complete.")
	},
}

// Execute runs the CLI root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// init sets up CLI flags and subcommands
func init() {
	runCmd.Flags().Int64Var(&seed, "seed", 42, "Seed for random job generation")
	runCmd.Flags().Float64Var(&until, "until", 0, "Simulation horizon in sim-minutes (0 = run until the event queue drains)")
	runCmd.Flags().StringVar(&logLevel, "log", "error", "Log level (trace, debug, info, warn, error, fatal, panic)")

	runCmd.Flags().StringVar(&broker, "broker", sim.BrokerCapacity, "Broker strategy (capacity, serial)")
	runCmd.Flags().StringVar(&feed, "feed", sim.FeedGenerator, "Job feed method (generator, dispatcher)")
	runCmd.Flags().StringVar(&feedFile, "feed-file", "", "CSV or JSON job file (required for the dispatcher feed)")
	runCmd.Flags().StringVar(&allocation, "allocation", sim.AllocationFast, "Bulk allocation policy (fast, smart)")
	runCmd.Flags().StringSliceVar(&devices, "devices", nil, "Device presets to instantiate (default ibm_guadalupe,ibm_tokyo,cpu)")
	runCmd.Flags().StringVar(&catalogPath, "catalog", "", "Optional YAML device catalog")
	runCmd.Flags().BoolVar(&maintenance, "maintenance", false, "Enable periodic device maintenance")
	runCmd.Flags().BoolVar(&dumpRecords, "records", false, "Dump the full job record ledger at end of run")

	rootCmd.AddCommand(runCmd)
}
