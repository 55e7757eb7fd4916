package main

import (
	"encoding/json"
	"fmt"
	"os"

	"firstorder-bp/internal/config"

	"github.com/spf13/cobra"
)

// flagSet holds the CLI flags as cobra binds them, before they're
// merged onto a loaded config.Config.
type flagSet struct {
	configPath         string
	scenarioName       string
	entitiesPerDomain  int
	maxRounds          int
	testExample        int
	testScenario       string
	printTrainingLoss  bool
	fanOutUpdates      bool
	persistWeights     bool
	marginalOutputFile string
	storeBackend       string
	seed               int64
}

var flags flagSet

var rootCmd = &cobra.Command{
	Use:   "inferctl",
	Short: "Ground, train, and run belief propagation over a registered scenario",
	Long: `inferctl grounds a scenario's target proposition into a factor graph,
trains the log-linear factor model against the scenario's training
examples, runs loopy belief propagation for a fixed round budget, and
reports the target's marginal probability.

Examples:
  inferctl --scenario_name chain
  inferctl --scenario_name triangle --entities_per_domain 4 --print_training_loss
  inferctl --scenario_name role_map --test_scenario and_convergence_true`,
	RunE: runRoot,
}

func init() {
	rootCmd.Flags().StringVar(&flags.configPath, "config", "", "path to a JSON or YAML config file (env and flags still take precedence)")
	rootCmd.Flags().StringVar(&flags.scenarioName, "scenario_name", "", "registered scenario to ground and run (required)")
	rootCmd.Flags().IntVar(&flags.entitiesPerDomain, "entities_per_domain", 0, "entities seeded per domain (default 1024)")
	rootCmd.Flags().IntVar(&flags.maxRounds, "rounds", 0, "full belief propagation rounds to run (default 50)")
	rootCmd.Flags().IntVar(&flags.testExample, "test_example", -1, "report the pre-training prediction for the scenario's Nth training example")
	rootCmd.Flags().StringVar(&flags.testScenario, "test_scenario", "", "also ground, train, and run a second named scenario, reported alongside the primary one")
	rootCmd.Flags().BoolVar(&flags.printTrainingLoss, "print_training_loss", false, "log each SGD update's gold/expected/loss to stderr")
	rootCmd.Flags().BoolVar(&flags.fanOutUpdates, "fan_out_updates", false, "propagate from each observed node with the incremental fan-out scheduler instead of full rounds")
	rootCmd.Flags().BoolVar(&flags.persistWeights, "persist_weights", false, "load and save trained factor-model weights through the store instead of reinitializing from the seed")
	rootCmd.Flags().StringVar(&flags.marginalOutputFile, "marginal_output_file", "", "file to append the NDJSON marginal log to (default stdout)")
	rootCmd.Flags().StringVar(&flags.storeBackend, "store_backend", "", "predicate store backend: memory, sqlite, or neo4j (default memory)")
	rootCmd.Flags().Int64Var(&flags.seed, "seed", 0, "factor model weight-initialization seed (default 1)")

	_ = rootCmd.MarkFlagRequired("scenario_name")
}

// runRoot loads configuration, overlays the bound flags, runs the
// pipeline, and reports the result as JSON on stdout.
func runRoot(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	applyFlags(cfg)
	if err := cfg.Validate(); err != nil {
		return err
	}

	logWriter, closeLog, err := openMarginalLog(cfg.Engine.MarginalOutputFile)
	if err != nil {
		return err
	}
	defer closeLog()

	result, err := run(cfg, options{
		TestScenario: flags.testScenario,
		TestExample:  flags.testExample,
		LogWriter:    logWriter,
	})
	if err != nil {
		return err
	}

	encoded, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding result: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(encoded))
	return nil
}

// loadConfig reads --config if given, otherwise config.Load's env-over-
// defaults path.
func loadConfig() (*config.Config, error) {
	if flags.configPath != "" {
		return config.LoadFromFile(flags.configPath)
	}
	return config.Load()
}

// applyFlags overlays explicitly-set CLI flags onto cfg, so a flag always
// wins over both the config file and the environment: flags are the
// final word for a single invocation.
func applyFlags(cfg *config.Config) {
	cfg.Engine.ScenarioName = flags.scenarioName
	if flags.entitiesPerDomain > 0 {
		cfg.Engine.EntitiesPerDomain = flags.entitiesPerDomain
	}
	if flags.maxRounds > 0 {
		cfg.Engine.MaxRounds = flags.maxRounds
	}
	if flags.marginalOutputFile != "" {
		cfg.Engine.MarginalOutputFile = flags.marginalOutputFile
	}
	if flags.storeBackend != "" {
		cfg.Store.Backend = flags.storeBackend
	}
	if flags.seed != 0 {
		cfg.Training.Seed = flags.seed
	}
	if flags.printTrainingLoss {
		cfg.Features.PrintTrainingLoss = true
	}
	if flags.fanOutUpdates {
		cfg.Features.FanOutUpdates = true
	}
	if flags.persistWeights {
		cfg.Features.PersistWeights = true
	}
}

// openMarginalLog opens path for appending NDJSON marginal records, or
// returns os.Stdout when path is empty (--marginal_output_file).
func openMarginalLog(path string) (*os.File, func(), error) {
	if path == "" {
		return os.Stdout, func() {}, nil
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, func() {}, fmt.Errorf("opening marginal output file: %w", err)
	}
	return f, func() { _ = f.Close() }, nil
}
