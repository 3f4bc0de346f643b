package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/guptarohit/asciigraph"
	"github.com/spf13/cobra"

	"github.com/san-kum/verletsim/internal/config"
	"github.com/san-kum/verletsim/internal/export"
	"github.com/san-kum/verletsim/internal/metrics"
	"github.com/san-kum/verletsim/internal/sim"
	"github.com/san-kum/verletsim/internal/storage"
	"github.com/san-kum/verletsim/internal/viz"
)

var (
	dataDir  string
	logJSON  bool
	logLevel string

	configFile string
	preset     string
	dt         float64
	frames     int
	seed       int64
	substeps   int
	iterations int
	damping    float64
	solver     string
	broadphase string
	maxCount   int
	overflow   string
	initial    int
	wallMode   string
	noEmitter  bool

	noSave   bool
	logEvery int

	series       []string
	exportFormat string
	exportOut    string
	svgScale     float64

	benchCounts []int
	benchFrames int
	seeds       int
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "verletsim",
		Short:         "2d verlet particle simulation",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			logger, err := newLogger(logJSON, logLevel)
			if err != nil {
				return err
			}
			slog.SetDefault(logger)
			return nil
		},
	}

	rootCmd.PersistentFlags().StringVar(&dataDir, "data", ".verletsim", "data directory")
	rootCmd.PersistentFlags().BoolVar(&logJSON, "log-json", false, "log as JSON")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "run a headless simulation and store the result",
		Args:  cobra.NoArgs,
		RunE:  runSimulation,
	}
	addSimFlags(runCmd)
	runCmd.Flags().BoolVar(&noSave, "no-save", false, "do not store the run")
	runCmd.Flags().IntVar(&logEvery, "log-every", 60, "log progress every n frames at debug level")

	liveCmd := &cobra.Command{
		Use:   "live",
		Short: "run simulation with live terminal visualization",
		Args:  cobra.NoArgs,
		RunE:  runLive,
	}
	addSimFlags(liveCmd)

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "list runs",
		Args:  cobra.NoArgs,
		RunE:  listRuns,
	}

	plotCmd := &cobra.Command{
		Use:   "plot [run_id]",
		Short: "plot per-frame series of a stored run",
		Args:  cobra.ExactArgs(1),
		RunE:  plotRun,
	}
	plotCmd.Flags().StringSliceVar(&series, "series", []string{"energy", "count"},
		"series to plot ("+strings.Join(sim.SeriesNames, ", ")+")")

	exportCmd := &cobra.Command{
		Use:   "export [run_id]",
		Short: "export a stored run as JSON, a CSV frame table or an SVG snapshot",
		Args:  cobra.ExactArgs(1),
		RunE:  exportRun,
	}
	exportCmd.Flags().StringVar(&exportFormat, "format", "json", "output format (json, csv, svg)")
	exportCmd.Flags().Float64Var(&svgScale, "scale", 1, "pixels per world unit for svg")
	exportCmd.Flags().StringVarP(&exportOut, "output", "o", "", "output file (default stdout)")

	presetsCmd := &cobra.Command{
		Use:   "presets",
		Short: "list available presets",
		Args:  cobra.NoArgs,
		RunE:  listPresets,
	}

	benchCmd := &cobra.Command{
		Use:   "bench",
		Short: "benchmark solver and broadphase combinations",
		Args:  cobra.NoArgs,
		RunE:  benchSolvers,
	}
	benchCmd.Flags().IntSliceVar(&benchCounts, "particles", []int{100, 250, 500, 1000}, "particle counts")
	benchCmd.Flags().IntVar(&benchFrames, "frames", 60, "frames per measurement")
	benchCmd.Flags().Int64Var(&seed, "seed", 1, "random seed")

	compareCmd := &cobra.Command{
		Use:   "compare [preset...]",
		Short: "run presets (or seeds of one configuration) concurrently and compare metrics",
		RunE:  comparePresets,
	}
	addSimFlags(compareCmd)
	compareCmd.Flags().IntVar(&seeds, "seeds", 0, "run this many seeds of the selected configuration instead of named presets")

	rootCmd.AddCommand(runCmd, liveCmd, listCmd, plotCmd, exportCmd, presetsCmd, benchCmd, compareCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func newLogger(asJSON bool, level string) (*slog.Logger, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}
	opts := &slog.HandlerOptions{Level: lvl}
	if asJSON {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts)), nil
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts)), nil
}

func runSimulation(cmd *cobra.Command, args []string) error {
	cfg, err := resolveConfig(cmd)
	if err != nil {
		return err
	}

	runner, err := sim.Build(cfg)
	if err != nil {
		return err
	}
	runner.AddMetric(metrics.Defaults()...)
	runner.SetLogger(slog.Default().With("run", cfg.Name), logEvery)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	fmt.Printf("running %s for %d frames...\n", cfg.Name, cfg.Frames)
	start := time.Now()
	result, runErr := runner.Run(ctx, sim.RunConfig{Frames: cfg.Frames, Dt: cfg.Dt})
	elapsed := time.Since(start)
	if result == nil {
		return runErr
	}

	if !noSave {
		st := storage.New(dataDir)
		runID, err := st.Save(cfg, result)
		if err != nil {
			return fmt.Errorf("saving run: %w", err)
		}
		fmt.Printf("run id: %s\n", runID)
	}

	fmt.Printf("completed %d frames in %v\n", result.StepsTaken, elapsed)
	fmt.Printf("particles: %d\n", len(result.Particles))
	printMetrics(result.Metrics)

	if len(result.Perf.PhasePct) > 0 {
		fmt.Println("\nphases:")
		for _, name := range sortedKeys(result.Perf.PhasePct) {
			fmt.Printf("  %-10s %8v  %5.1f%%\n", name, result.Perf.PhaseAvg[name], result.Perf.PhasePct[name])
		}
	}
	return runErr
}

func runLive(cmd *cobra.Command, args []string) error {
	cfg, err := resolveConfig(cmd)
	if err != nil {
		return err
	}
	runner, err := sim.Build(cfg)
	if err != nil {
		return err
	}
	// the TUI owns the terminal
	runner.SetLogger(slog.New(slog.DiscardHandler), 0)
	return viz.Run(runner, cfg)
}

func listRuns(cmd *cobra.Command, args []string) error {
	st := storage.New(dataDir)
	runs, err := st.List()
	if err != nil {
		return err
	}

	if len(runs) == 0 {
		fmt.Println("no runs found")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tTIME\tFRAMES\tPARTICLES\tSOLVER\tBROADPHASE\tFRAMES/S")

	for _, run := range runs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\t%s\t%s\t%.0f\n",
			run.ID,
			run.Name,
			run.Timestamp.Format("2006-01-02 15:04:05"),
			run.Frames,
			run.Particles,
			run.Solver,
			run.Broadphase,
			run.TicksPerSecond,
		)
	}

	return w.Flush()
}

func plotRun(cmd *cobra.Command, args []string) error {
	runID := args[0]

	st := storage.New(dataDir)
	meta, err := st.Load(runID)
	if err != nil {
		return err
	}
	history, err := st.LoadFrames(runID)
	if err != nil {
		return err
	}
	if len(history) == 0 {
		return fmt.Errorf("no data to plot")
	}

	fmt.Printf("run: %s\n", meta.ID)
	fmt.Printf("name: %s\n", meta.Name)
	fmt.Printf("frames: %d\n\n", len(history))

	for _, name := range series {
		data, err := sim.Series(history, name)
		if err != nil {
			return err
		}
		graph := asciigraph.Plot(data,
			asciigraph.Height(10),
			asciigraph.Width(80),
			asciigraph.Caption(name+" vs frame"),
		)
		fmt.Println(graph)
		fmt.Println()
	}
	return nil
}

func exportRun(cmd *cobra.Command, args []string) error {
	switch exportFormat {
	case "json", "csv", "svg":
	default:
		return fmt.Errorf("unknown format %q (want json, csv or svg)", exportFormat)
	}

	out := os.Stdout
	if exportOut != "" {
		f, err := os.Create(exportOut)
		if err != nil {
			return err
		}
		defer f.Close()
		out = f
	}

	st := storage.New(dataDir)
	if exportFormat != "svg" {
		return st.Export(out, args[0], exportFormat)
	}

	cfg, err := st.LoadConfig(args[0])
	if err != nil {
		return err
	}
	boundary, err := cfg.BuildBoundary()
	if err != nil {
		return err
	}
	ps, err := st.LoadParticles(args[0])
	if err != nil {
		return err
	}
	return export.ParticlesSVG(out, ps, boundary, svgScale)
}

func listPresets(cmd *cobra.Command, args []string) error {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tBOUNDARY\tMODE\tSUBSTEPS\tSOLVER\tBROADPHASE\tMAX\tEMITTER\tINITIAL")
	for _, name := range config.ListPresets() {
		p := config.GetPreset(name)
		emit := "off"
		if p.Emitter.Enabled {
			emit = fmt.Sprintf("every %d", p.Emitter.Interval)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\t%s\t%d (%s)\t%s\t%d\n",
			name,
			p.Boundary.Shape,
			p.Boundary.Mode,
			p.Physics.Substeps,
			p.Physics.Solver,
			p.Physics.Broadphase,
			p.Particles.Max,
			p.Particles.Overflow,
			emit,
			p.Particles.Initial,
		)
	}
	return w.Flush()
}

func benchSolvers(cmd *cobra.Command, args []string) error {
	type variant struct{ solver, broadphase string }
	variants := []variant{
		{"gauss-seidel", "naive"},
		{"gauss-seidel", "grid"},
		{"jacobi", "naive"},
		{"jacobi", "grid"},
	}

	quiet := slog.New(slog.DiscardHandler)
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "PARTICLES\tSOLVER\tBROADPHASE\tFRAMES\tTIME\tFRAMES/SEC\tMAX OVERLAP")

	for _, n := range benchCounts {
		for _, v := range variants {
			cfg := config.GetPreset("drop")
			cfg.Seed = seed
			cfg.Particles.Initial = n
			cfg.Particles.Max = n
			cfg.Physics.Solver = v.solver
			cfg.Physics.Broadphase = v.broadphase

			runner, err := sim.Build(cfg)
			if err != nil {
				return err
			}
			runner.SetLogger(quiet, 0)
			overlap := metrics.NewMaxOverlap()
			runner.AddMetric(overlap)

			start := time.Now()
			if _, err := runner.Run(cmd.Context(), sim.RunConfig{Frames: benchFrames, Dt: cfg.Dt}); err != nil {
				return err
			}
			elapsed := time.Since(start)

			fmt.Fprintf(w, "%d\t%s\t%s\t%d\t%v\t%.0f\t%.4f\n",
				runner.System().Len(), v.solver, v.broadphase, benchFrames,
				elapsed.Round(time.Microsecond), float64(benchFrames)/elapsed.Seconds(), overlap.Value())
		}
	}

	return w.Flush()
}

func comparePresets(cmd *cobra.Command, args []string) error {
	var jobs []sim.Job
	if seeds > 0 {
		cfg, err := resolveConfig(cmd)
		if err != nil {
			return err
		}
		jobs = sim.SeedJobs(cfg, seeds, cfg.Seed)
	} else {
		names := args
		if len(names) == 0 {
			names = config.ListPresets()
		}
		for _, name := range names {
			cfg, err := resolvePreset(cmd, name)
			if err != nil {
				return err
			}
			jobs = append(jobs, sim.Job{Name: name, Config: cfg})
		}
	}

	ens := sim.NewEnsemble(jobs)
	start := time.Now()
	outcomes, err := ens.Run(cmd.Context())
	elapsed := time.Since(start)

	names := []string{}
	for _, m := range metrics.Defaults() {
		names = append(names, m.Name())
	}

	fmt.Printf("compared %d configurations in %v\n\n", len(jobs), elapsed.Round(time.Millisecond))
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tFRAMES\t"+strings.ToUpper(strings.Join(names, "\t")))
	for _, o := range outcomes {
		if o.Result == nil {
			fmt.Fprintf(w, "%s\terror: %v\n", o.Name, o.Err)
			continue
		}
		row := []string{o.Name, fmt.Sprintf("%d", o.Result.StepsTaken)}
		for _, n := range names {
			row = append(row, fmt.Sprintf("%.4g", o.Result.Metrics[n]))
		}
		fmt.Fprintln(w, strings.Join(row, "\t"))
	}
	if ferr := w.Flush(); ferr != nil {
		return ferr
	}
	return err
}

func printMetrics(m map[string]float64) {
	fmt.Println("\nmetrics:")
	for _, name := range sortedKeys(m) {
		fmt.Printf("  %s: %.6f\n", name, m[name])
	}
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
