package cmd

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/lugondev/go-amm/internal/config"
	cerrors "github.com/lugondev/go-amm/internal/errors"
	"github.com/lugondev/go-amm/internal/metrics"
	"github.com/lugondev/go-amm/internal/scenario"
)

var simulateCmd = &cobra.Command{
	Use:   "simulate <scenario.yaml>",
	Short: "Run a pool scenario against the simulated host",
	Long: `Run the steps of a YAML scenario against an in-memory host and report
each step's outcome and the final balances. The command fails when any step
misses its expectations.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		doc, err := scenario.LoadFile(args[0])
		if err != nil {
			return err
		}

		opts := []scenario.Option{
			scenario.WithSeed(cfg.Program.Seed),
			scenario.WithRent(cfg.Rent.Params()),
			scenario.WithLogger(logger),
		}
		sinks := metrics.NewCollection(metrics.NewNoopMetrics())
		var sink *metrics.LogMetrics
		if simulateMetrics {
			sink = metrics.NewLogMetrics(logger)
			sinks.Add(sink)
		}
		opts = append(opts, scenario.WithMetrics(sinks))
		id, err := cfg.Program.Key()
		switch {
		case err == nil:
			opts = append(opts, scenario.WithProgramID(id))
		case !errors.Is(err, config.ErrNoProgramID):
			return err
		}

		runner, err := scenario.NewRunner(doc, opts...)
		if err != nil {
			return err
		}
		report, err := runner.Run(cmd.Context())
		if err != nil {
			return err
		}

		printReport(cmd.OutOrStdout(), report)
		if sink != nil {
			printMetrics(cmd.OutOrStdout(), sink)
		}
		if n := report.Failed(); n > 0 {
			return fmt.Errorf("%d of %d steps failed", n, len(report.Steps))
		}
		return nil
	},
}

func printReport(out io.Writer, report *scenario.Report) {
	if report.Name != "" {
		fmt.Fprintf(out, "Scenario: %s\n", report.Name)
	}
	for _, step := range report.Steps {
		status := "ok"
		if !step.Passed() {
			status = "FAIL"
		}
		fmt.Fprintf(out, "  [%-4s] %s", status, step.Label)
		if step.Err != nil {
			fmt.Fprintf(out, " -> %s (%v)", cerrors.HostCode(step.Err), step.Err)
		}
		fmt.Fprintln(out)
		if !step.Passed() {
			fmt.Fprintf(out, "         %s\n", step.Failure)
		}
	}

	fmt.Fprintln(out, "Balances:")
	for _, name := range report.AccountNames() {
		if tokens, ok := report.Tokens[name]; ok {
			fmt.Fprintf(out, "  %-20s tokens=%d lamports=%d\n", name, tokens, report.Lamports[name])
			continue
		}
		fmt.Fprintf(out, "  %-20s lamports=%d\n", name, report.Lamports[name])
	}
}

var simulateMetrics bool

func printMetrics(out io.Writer, sink *metrics.LogMetrics) {
	fmt.Fprintln(out, "Metrics:")
	for _, name := range []string{
		metrics.MetricInstructionsProcessed,
		metrics.MetricInstructionsSucceeded,
		metrics.MetricInstructionsFailed,
		metrics.MetricInvocationsCommitted,
		metrics.MetricInvocationsRolledBack,
	} {
		fmt.Fprintf(out, "  %-24s %d\n", name, sink.Counter(name))
	}
	h := sink.Histogram(metrics.MetricInstructionProcessTimeNanoseconds)
	fmt.Fprintf(out, "  %-24s mean=%.0fns max=%.0fns\n", "process_time", h.Mean(), h.Max)
}

func init() {
	rootCmd.AddCommand(simulateCmd)

	simulateCmd.Flags().BoolVar(&simulateMetrics, "metrics", false, "print instruction and invocation counters")
}
