package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"strconv"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/gosuri/uilive"
	"github.com/guptarohit/asciigraph"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/san-kum/cstrsim/internal/analysis"
	"github.com/san-kum/cstrsim/internal/automation"
	"github.com/san-kum/cstrsim/internal/config"
	"github.com/san-kum/cstrsim/internal/control"
	"github.com/san-kum/cstrsim/internal/experiment"
	"github.com/san-kum/cstrsim/internal/export"
	"github.com/san-kum/cstrsim/internal/optim"
	"github.com/san-kum/cstrsim/internal/physics"
	"github.com/san-kum/cstrsim/internal/reactor"
	"github.com/san-kum/cstrsim/internal/server"
	"github.com/san-kum/cstrsim/internal/storage"
	"github.com/san-kum/cstrsim/internal/viz"
)

const (
	envBrainURL = "CSTR_BRAIN_URL"
	envDataDir  = "CSTR_DATA_DIR"
)

var (
	dataDir    string
	debug      bool
	configFile string
	preset     string
	// Run parameters
	controller     string
	integrator     string
	mode           string
	noise          float64
	interval       float64
	substeps       int
	iterations     int
	seed           int64
	initialCoolant float64
	processNoise   bool
	// Controller parameters
	kp      float64
	ki      float64
	kd      float64
	kc      float64
	kt      float64
	horizon int
	legacy  bool
	// External collaborators
	brainURL   string
	classifier string
	// Command specific
	frameRate  int
	addr       string
	runs       int
	grid       []string
	metricName string
	sweepParam string
	sweepMin   float64
	sweepMax   float64
	sweepSteps int
	outPath    string
	save       bool
	svgKind    string
	coolantMin float64
	coolantMax float64
	mapSteps   int
)

func main() {
	_ = godotenv.Load()

	rootCmd := &cobra.Command{
		Use:          "cstrsim",
		Short:        "CSTR reactor control simulation",
		SilenceUsage: true,
	}

	defaultData := os.Getenv(envDataDir)
	if defaultData == "" {
		defaultData = ".cstrsim"
	}
	rootCmd.PersistentFlags().StringVar(&dataDir, "data", defaultData, "data directory (env "+envDataDir+")")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "development logging")

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "run one episode and store it",
		Args:  cobra.NoArgs,
		RunE:  runEpisode,
	}
	addEpisodeFlags(runCmd)

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "list runs",
		RunE:  listRuns,
	}

	plotCmd := &cobra.Command{
		Use:   "plot [run_id]",
		Short: "plot run trajectories against the reference",
		Args:  cobra.ExactArgs(1),
		RunE:  plotRun,
	}

	phaseCmd := &cobra.Command{
		Use:   "phase [run_id]",
		Short: "concentration/temperature phase portrait",
		Args:  cobra.ExactArgs(1),
		RunE:  phasePlot,
	}

	exportCmd := &cobra.Command{
		Use:   "export [run_id]",
		Short: "export run data to JSON",
		Args:  cobra.ExactArgs(1),
		RunE:  exportJSON,
	}
	exportCmd.Flags().StringVarP(&outPath, "out", "o", "", "output file (default stdout)")

	exportCSVCmd := &cobra.Command{
		Use:   "export-csv [run_id]",
		Short: "export run data to CSV",
		Args:  cobra.ExactArgs(1),
		RunE:  exportCSV,
	}

	exportSVGCmd := &cobra.Command{
		Use:   "export-svg [run_id]",
		Short: "render a run as an SVG image",
		Args:  cobra.ExactArgs(1),
		RunE:  exportSVG,
	}
	exportSVGCmd.Flags().StringVar(&svgKind, "kind", "trajectory", "image kind: trajectory, concentration, phase")
	exportSVGCmd.Flags().StringVarP(&outPath, "out", "o", "", "output file (default <run_id>-<kind>.svg)")

	analyzeCmd := &cobra.Command{
		Use:   "analyze [run_id]",
		Short: "summarize a run's temperature response and oscillation",
		Args:  cobra.ExactArgs(1),
		RunE:  analyzeRun,
	}

	steadyCmd := &cobra.Command{
		Use:   "steady",
		Short: "map open-loop steady states over a coolant range",
		Args:  cobra.NoArgs,
		RunE:  steadyMap,
	}
	steadyCmd.Flags().StringVar(&configFile, "config", "", "config file for process constants")
	steadyCmd.Flags().Float64Var(&coolantMin, "min", 285, "lowest coolant temperature, K")
	steadyCmd.Flags().Float64Var(&coolantMax, "max", 312, "highest coolant temperature, K")
	steadyCmd.Flags().IntVar(&mapSteps, "steps", 55, "number of coolant temperatures")

	liveCmd := &cobra.Command{
		Use:   "live",
		Short: "run an episode with live visualization",
		Args:  cobra.NoArgs,
		RunE:  runLive,
	}
	addEpisodeFlags(liveCmd)
	liveCmd.Flags().IntVar(&frameRate, "fps", 5, "control intervals per second")

	assessCmd := &cobra.Command{
		Use:   "assess [scenario]",
		Short: "run every episode of an assessment file",
		Args:  cobra.ExactArgs(1),
		RunE:  runAssess,
	}
	addEpisodeFlags(assessCmd)

	monteCarloCmd := &cobra.Command{
		Use:   "montecarlo",
		Short: "run seeded episodes in parallel and summarize",
		Args:  cobra.NoArgs,
		RunE:  runMonteCarlo,
	}
	addEpisodeFlags(monteCarloCmd)
	monteCarloCmd.Flags().IntVar(&runs, "runs", 20, "number of episodes")

	sweepCmd := &cobra.Command{
		Use:   "sweep",
		Short: "sweep one episode or controller parameter",
		Args:  cobra.NoArgs,
		RunE:  runSweep,
	}
	addEpisodeFlags(sweepCmd)
	sweepCmd.Flags().StringVar(&sweepParam, "param", "noise", "parameter to sweep")
	sweepCmd.Flags().Float64Var(&sweepMin, "min", 0, "first value")
	sweepCmd.Flags().Float64Var(&sweepMax, "max", 0.1, "last value")
	sweepCmd.Flags().IntVar(&sweepSteps, "steps", 5, "number of values")

	tuneCmd := &cobra.Command{
		Use:   "tune",
		Short: "grid search controller gains",
		Args:  cobra.NoArgs,
		RunE:  runTune,
	}
	addEpisodeFlags(tuneCmd)
	tuneCmd.Flags().StringArrayVar(&grid, "grid", []string{"kp=0.1:2:5", "ki=0:0.1:3"}, "parameter range name=min:max:n")
	tuneCmd.Flags().StringVar(&metricName, "metric", "tr_rms", "metric to minimise")

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "serve an episode over HTTP",
		Args:  cobra.NoArgs,
		RunE:  runServe,
	}
	addEpisodeFlags(serveCmd)
	serveCmd.Flags().StringVar(&addr, "addr", ":8080", "listen address")

	presetsCmd := &cobra.Command{
		Use:   "presets",
		Short: "list available presets",
		RunE: func(cmd *cobra.Command, args []string) error {
			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "NAME\tMODE\tCONTROLLER\tNOISE")
			for _, name := range config.ListPresets() {
				p := config.GetPreset(name)
				fmt.Fprintf(w, "%s\t%s\t%s\t%.2f\n", name, p.Episode.Mode, p.Controller, p.Episode.NoiseFraction)
			}
			return w.Flush()
		},
	}

	rootCmd.AddCommand(runCmd, listCmd, plotCmd, phaseCmd, exportCmd, exportCSVCmd, exportSVGCmd,
		analyzeCmd, steadyCmd, liveCmd, assessCmd, monteCarloCmd, sweepCmd, tuneCmd, serveCmd, presetsCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func addEpisodeFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.StringVar(&configFile, "config", "", "config file path (yaml)")
	f.StringVar(&preset, "preset", "", "use preset configuration")
	f.StringVar(&controller, "controller", "do_nothing", "controller (append "+experiment.GateSuffix+" for the safety gate)")
	f.StringVar(&integrator, "integrator", "rk45", "integrator")
	f.StringVar(&mode, "mode", "transition", "trajectory mode (0-4 or name)")
	f.Float64Var(&noise, "noise", 0, "noise fraction in [0, 1]")
	f.Float64Var(&interval, "interval", 1, "control interval")
	f.IntVar(&substeps, "substeps", 2, "solver sub-steps per interval")
	f.IntVar(&iterations, "iterations", experiment.DefaultIterations, "control intervals per episode")
	f.Int64Var(&seed, "seed", 0, "random seed (0 = time based)")
	f.Float64Var(&initialCoolant, "initial-coolant", 0, "initial coolant temperature (0 = steady state)")
	f.BoolVar(&processNoise, "process-noise", false, "feed noise back into the reactor state")
	f.Float64Var(&kp, "kp", config.DefaultKp, "pid kp")
	f.Float64Var(&ki, "ki", config.DefaultKi, "pid ki")
	f.Float64Var(&kd, "kd", config.DefaultKd, "pid kd")
	f.Float64Var(&kc, "kc", -1.5, "state feedback concentration gain")
	f.Float64Var(&kt, "kt", 0.6, "state feedback temperature gain")
	f.IntVar(&horizon, "horizon", config.DefaultHorizon, "mpc lookahead intervals")
	f.BoolVar(&legacy, "legacy-clamp", false, "historical mpc delta clamp")
	f.StringVar(&brainURL, "brain-url", "", "exported brain url (env "+envBrainURL+")")
	f.StringVar(&classifier, "classifier", "", "safety gate classifier: yaml weights file or http url")
	f.BoolVar(&save, "save", true, "store the run")
}

// resolveConfig layers preset, config file and explicitly set flags, in
// that order.
func resolveConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg := config.DefaultConfig()

	if preset != "" {
		p := config.GetPreset(preset)
		if p == nil {
			return nil, fmt.Errorf("unknown preset: %s (available: %v)", preset, config.ListPresets())
		}
		cfg = p
	}

	if configFile != "" {
		loaded, err := config.Load(configFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
		cfg = loaded
	}

	flags := cmd.Flags()
	if flags.Changed("controller") {
		cfg.Controller = controller
	}
	if flags.Changed("integrator") {
		cfg.Integrator = integrator
	}
	if flags.Changed("mode") {
		m, err := reactor.ParseMode(mode)
		if err != nil {
			return nil, err
		}
		cfg.Episode.Mode = m
	}
	if flags.Changed("noise") {
		cfg.Episode.NoiseFraction = noise
	}
	if flags.Changed("interval") {
		cfg.Episode.Interval = interval
	}
	if flags.Changed("substeps") {
		cfg.Episode.Substeps = substeps
	}
	if flags.Changed("iterations") {
		cfg.Iterations = iterations
	}
	if flags.Changed("seed") {
		cfg.Seed = seed
	}
	if flags.Changed("initial-coolant") {
		cfg.Episode.InitialCoolant = initialCoolant
	}
	if flags.Changed("process-noise") {
		cfg.Episode.ProcessNoise = processNoise
	}
	if flags.Changed("kp") {
		cfg.ControllerParams.Kp = kp
	}
	if flags.Changed("ki") {
		cfg.ControllerParams.Ki = ki
	}
	if flags.Changed("kd") {
		cfg.ControllerParams.Kd = kd
	}
	if flags.Changed("kc") {
		cfg.ControllerParams.Kc = kc
	}
	if flags.Changed("kt") {
		cfg.ControllerParams.Kt = kt
	}
	if flags.Changed("horizon") {
		cfg.ControllerParams.Horizon = horizon
	}
	if flags.Changed("legacy-clamp") {
		cfg.ControllerParams.Legacy = legacy
	}
	if flags.Changed("brain-url") {
		cfg.BrainURL = brainURL
	}
	if cfg.BrainURL == "" {
		cfg.BrainURL = os.Getenv(envBrainURL)
	}
	if flags.Changed("classifier") {
		cfg.Classifier = classifier
	}
	if cfg.DataDir != "" && !cmd.Flags().Changed("data") {
		dataDir = cfg.DataDir
	}

	if err := cfg.Episode.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func newLogger() (*zap.Logger, error) {
	if debug {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

func newRegistry(cfg *config.Config, log *zap.Logger) (*experiment.Registry, error) {
	opts := []experiment.RegistryOption{
		experiment.WithProcessConstants(cfg.Constants),
		experiment.WithBrainURL(cfg.BrainURL),
		experiment.WithLogger(log),
	}
	if cfg.Classifier != "" {
		var clf control.Classifier
		if strings.HasPrefix(cfg.Classifier, "http://") || strings.HasPrefix(cfg.Classifier, "https://") {
			clf = control.NewRemoteClassifier(cfg.Classifier)
		} else {
			l, err := control.LoadLogistic(cfg.Classifier)
			if err != nil {
				return nil, fmt.Errorf("load classifier: %w", err)
			}
			clf = l
		}
		opts = append(opts, experiment.WithClassifier(clf))
	}
	if err := cfg.Constants.Validate(); err != nil {
		return nil, err
	}
	return experiment.NewRegistry(opts...), nil
}

// setup resolves the configuration and builds the logger and registry every
// episode command needs.
func setup(cmd *cobra.Command) (*config.Config, *experiment.Registry, *zap.Logger, error) {
	cfg, err := resolveConfig(cmd)
	if err != nil {
		return nil, nil, nil, err
	}
	log, err := newLogger()
	if err != nil {
		return nil, nil, nil, err
	}
	registry, err := newRegistry(cfg, log)
	if err != nil {
		return nil, nil, nil, err
	}
	return cfg, registry, log, nil
}

func printMetrics(m map[string]float64) {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Printf("  %s: %.6f\n", name, m[name])
	}
}

func runEpisode(cmd *cobra.Command, args []string) error {
	cfg, registry, log, err := setup(cmd)
	if err != nil {
		return err
	}
	defer log.Sync()

	expCfg := cfg.Experiment()
	exp, err := registry.Build(expCfg)
	if err != nil {
		return err
	}

	fmt.Printf("running %s episode with %s...\n", expCfg.Episode.Mode, expCfg.Controller)
	start := time.Now()

	result, err := exp.Run(cmd.Context())
	if err != nil {
		return err
	}
	elapsed := time.Since(start)

	fmt.Printf("completed in %v\n", elapsed)
	fmt.Printf("steps: %d\n", result.Steps)
	if result.Halted {
		fmt.Printf("halted: %s\n", result.HaltReason)
	}
	fmt.Println("\nmetrics:")
	printMetrics(result.Metrics)

	if !save {
		return nil
	}
	st := storage.New(dataDir)
	if err := st.Init(); err != nil {
		return err
	}
	runID, err := st.Save(expCfg, result)
	if err != nil {
		return err
	}
	fmt.Printf("\nrun id: %s\n", runID)
	return nil
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
	fmt.Fprintln(w, "ID\tTIME\tMODE\tCTRL\tINTEG\tSTEPS\tCR_RMS\tTR_RMS\tHALT")

	for _, run := range runs {
		halt := "-"
		if run.Halted {
			halt = run.HaltReason
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%d\t%.4f\t%.4f\t%s\n",
			run.ID,
			run.Timestamp.Format("2006-01-02 15:04:05"),
			run.Episode.Mode,
			run.Controller,
			run.Integrator,
			run.Steps,
			run.Metrics["cr_rms"],
			run.Metrics["tr_rms"],
			halt,
		)
	}

	return w.Flush()
}

func loadRun(runID string) (*storage.RunMetadata, []storage.Record, error) {
	st := storage.New(dataDir)
	meta, err := st.Load(runID)
	if err != nil {
		return nil, nil, err
	}
	records, err := st.LoadStates(runID)
	if err != nil {
		return nil, nil, err
	}
	return meta, records, nil
}

func plotRun(cmd *cobra.Command, args []string) error {
	meta, records, err := loadRun(args[0])
	if err != nil {
		return err
	}
	if len(records) < 2 {
		return fmt.Errorf("no data to plot")
	}

	fmt.Printf("run: %s\n", meta.ID)
	fmt.Printf("mode: %s  controller: %s\n", meta.Episode.Mode, meta.Controller)
	fmt.Printf("samples: %d\n\n", len(records))

	pick := func(f func(storage.Record) float64) []float64 {
		out := make([]float64, len(records))
		for i, r := range records {
			out[i] = f(r)
		}
		return out
	}

	plots := []struct {
		caption string
		series  [][]float64
		colors  []asciigraph.AnsiColor
	}{
		{
			caption: "Tr (red) vs Tref (green), K",
			series: [][]float64{
				pick(func(r storage.Record) float64 { return r.Observation.Tr }),
				pick(func(r storage.Record) float64 { return r.Observation.Tref }),
			},
			colors: []asciigraph.AnsiColor{asciigraph.Red, asciigraph.Green},
		},
		{
			caption: "Cr (blue) vs Cref (green), kmol/m3",
			series: [][]float64{
				pick(func(r storage.Record) float64 { return r.Observation.Cr }),
				pick(func(r storage.Record) float64 { return r.Observation.Cref }),
			},
			colors: []asciigraph.AnsiColor{asciigraph.Blue, asciigraph.Green},
		},
		{
			caption: "Tc coolant, K",
			series:  [][]float64{pick(func(r storage.Record) float64 { return r.Observation.Tc })},
			colors:  []asciigraph.AnsiColor{asciigraph.Default},
		},
	}

	for _, p := range plots {
		graph := asciigraph.PlotMany(p.series,
			asciigraph.Height(10),
			asciigraph.Width(80),
			asciigraph.SeriesColors(p.colors...),
			asciigraph.Caption(p.caption),
		)
		fmt.Println(graph)
		fmt.Println()
	}

	return nil
}

func phasePlot(cmd *cobra.Command, args []string) error {
	meta, records, err := loadRun(args[0])
	if err != nil {
		return err
	}
	if len(records) == 0 {
		return fmt.Errorf("no data to plot")
	}

	obs := make([]reactor.Observation, len(records))
	for i, r := range records {
		obs[i] = r.Observation
	}
	b := viz.PhaseBounds(obs)
	canvas := viz.NewCanvas(70, 20)
	canvas.DrawPhase(obs, b)

	fmt.Printf("phase portrait: %s\n", meta.ID)
	fmt.Printf("x: Cr [%.2f, %.2f] kmol/m3   y: Tr [%.1f, %.1f] K\n\n", b.CMin, b.CMax, b.TMin, b.TMax)
	fmt.Print(canvas.String())
	fmt.Printf("\n+ marks the low (%.2f, %.1f) and high (%.2f, %.1f) operating points\n",
		reactor.LowSteadyConcentration, reactor.LowSteadyTemperature,
		reactor.HighSteadyConcentration, reactor.HighSteadyTemperature)
	return nil
}

func exportJSON(cmd *cobra.Command, args []string) error {
	meta, records, err := loadRun(args[0])
	if err != nil {
		return err
	}
	data := storage.NewExportData(meta, records)
	if outPath != "" {
		return storage.ExportJSON(outPath, data)
	}
	return storage.ExportJSONStdout(data)
}

func exportCSV(cmd *cobra.Command, args []string) error {
	_, records, err := loadRun(args[0])
	if err != nil {
		return err
	}
	if len(records) == 0 {
		return fmt.Errorf("no data to export")
	}
	return storage.WriteCSV(os.Stdout, records)
}

func observations(records []storage.Record) ([]reactor.Observation, []float64) {
	obs := make([]reactor.Observation, len(records))
	times := make([]float64, len(records))
	for i, r := range records {
		obs[i], times[i] = r.Observation, r.Time
	}
	return obs, times
}

func exportSVG(cmd *cobra.Command, args []string) error {
	meta, records, err := loadRun(args[0])
	if err != nil {
		return err
	}
	if len(records) < 2 {
		return fmt.Errorf("no data to render")
	}
	obs, times := observations(records)

	var svg string
	switch svgKind {
	case "trajectory":
		svg = export.TrajectoryToSVG(times, export.TemperatureSeries(obs), 800, 400)
	case "concentration":
		svg = export.TrajectoryToSVG(times, export.ConcentrationSeries(obs), 800, 400)
	case "phase":
		svg = export.PhaseToSVG(obs, 70, 20, 6)
	default:
		return fmt.Errorf("unknown image kind: %s", svgKind)
	}
	if svg == "" {
		return fmt.Errorf("nothing to render for run %s", meta.ID)
	}

	path := outPath
	if path == "" {
		path = fmt.Sprintf("%s-%s.svg", meta.ID, svgKind)
	}
	if err := os.WriteFile(path, []byte(svg), 0o644); err != nil {
		return err
	}
	fmt.Printf("wrote %s\n", path)
	return nil
}

func analyzeRun(cmd *cobra.Command, args []string) error {
	meta, records, err := loadRun(args[0])
	if err != nil {
		return err
	}
	if len(records) < 2 {
		return fmt.Errorf("no data to analyze")
	}
	obs, times := observations(records)

	tr := make([]float64, len(obs))
	peak, peakAt := obs[0].Tr, times[0]
	for i, o := range obs {
		tr[i] = o.Tr
		if o.Tr > peak {
			peak, peakAt = o.Tr, times[i]
		}
	}
	last := obs[len(obs)-1]

	fmt.Printf("run: %s (%s, %s)\n", meta.ID, meta.Episode.Mode, meta.Controller)
	if meta.Halted {
		fmt.Printf("halted: %s after %d steps\n", meta.HaltReason, meta.Steps)
	}
	fmt.Printf("peak Tr: %.2f K at t=%.2f\n", peak, peakAt)
	fmt.Printf("final error: Cr %+.4f  Tr %+.2f K\n", last.Cr-last.Cref, last.Tr-last.Tref)

	period, power := analysis.DominantPeriod(tr, times[1]-times[0])
	if period > 0 {
		fmt.Printf("dominant Tr period: %.2f (magnitude %.2f)\n", period, power)
	} else {
		fmt.Println("dominant Tr period: none")
	}

	plant := physics.NewCSTR(physics.DefaultConstants())
	lin := analysis.Linearize(plant, last.Cr, last.Tr, last.Tc)
	fmt.Printf("open-loop eigenvalues at final state: %v (stable: %v)\n", lin.Eigenvalues, lin.Stable)

	if len(meta.Metrics) > 0 {
		fmt.Println("metrics:")
		printMetrics(meta.Metrics)
	}
	return nil
}

func steadyMap(cmd *cobra.Command, args []string) error {
	constants := physics.DefaultConstants()
	if configFile != "" {
		cfg, err := config.Load(configFile)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		constants = cfg.Constants
	}
	if err := constants.Validate(); err != nil {
		return err
	}
	if coolantMax <= coolantMin {
		return fmt.Errorf("--max must exceed --min")
	}

	plant := physics.NewCSTR(constants)
	points := analysis.SteadyStateMap(plant, coolantMin, coolantMax, mapSteps)

	fmt.Printf("steady-state Tr over Tc [%.1f, %.1f] K (* stable, o unstable)\n\n", coolantMin, coolantMax)
	fmt.Print(analysis.MapToASCII(points, 70, 20))

	if lo, hi, ok := analysis.MultiplicityBand(points); ok {
		fmt.Printf("\nmultiple steady states for Tc in [%.2f, %.2f] K\n", lo, hi)
	} else {
		fmt.Println("\nsingle steady state over the whole range")
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "\nTc\tCr\tTr\tSTABLE")
	operating := [][2]float64{
		{reactor.LowSteadyConcentration, reactor.LowSteadyTemperature},
		{reactor.HighSteadyConcentration, reactor.HighSteadyTemperature},
	}
	for _, op := range operating {
		for _, s := range analysis.SteadyStates(plant, plant.SteadyCoolant(op[0], op[1])) {
			fmt.Fprintf(w, "%.4f\t%.4f\t%.4f\t%v\n", s.Coolant, s.Concentration, s.Temperature, s.Stable)
		}
	}
	return w.Flush()
}

func runLive(cmd *cobra.Command, args []string) error {
	cfg, err := resolveConfig(cmd)
	if err != nil {
		return err
	}
	// Log output would corrupt the terminal UI.
	registry, err := newRegistry(cfg, zap.NewNop())
	if err != nil {
		return err
	}

	expCfg := cfg.Experiment()
	ep, err := registry.NewEpisode(expCfg)
	if err != nil {
		return err
	}
	ctrl, err := registry.GetController(expCfg.Controller, expCfg.Params)
	if err != nil {
		return err
	}

	m, err := viz.NewModel(ep, ctrl, expCfg.Controller, expCfg.Episode, expCfg.Iterations, frameRate)
	if err != nil {
		return err
	}
	p := tea.NewProgram(m)
	_, err = p.Run()
	return err
}

func progressPrinter(w *uilive.Writer, label string) automation.Progress {
	return func(done, total int) {
		fmt.Fprintf(w, "%s: %d/%d %s\n", label, done, total, viz.ProgressBar(float64(done)/float64(total), 30))
	}
}

func printSummary(s automation.Summary) {
	fmt.Printf("episodes: %d\n", s.Episodes)
	fmt.Printf("Cr RMS: %.4f ± %.4f\n", s.CrRMSMean, s.CrRMSStd)
	fmt.Printf("Tr RMS: %.4f ± %.4f\n", s.TrRMSMean, s.TrRMSStd)
	fmt.Printf("halted: %d (thermal runaway: %d)\n", s.Halted, s.Runaways)
}

func runAssess(cmd *cobra.Command, args []string) error {
	cfg, registry, log, err := setup(cmd)
	if err != nil {
		return err
	}
	defer log.Sync()

	sc, err := automation.LoadScenario(args[0])
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("iterations") {
		sc.Iterations = iterations
	}

	fmt.Printf("assessing %s on %d episodes (%d iterations)\n", cfg.Controller, len(sc.Episodes), sc.Iterations)

	w := uilive.New()
	w.Start()
	results, summary, err := automation.RunScenario(cmd.Context(), sc, registry, cfg.Experiment(), progressPrinter(w, "episodes"))
	w.Stop()
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "#\tMODE\tNOISE\tSTEPS\tCR_RMS\tTR_RMS\tHALT")
	for _, r := range results {
		halt := "-"
		if r.Result.Halted {
			halt = r.Result.HaltReason
		}
		fmt.Fprintf(tw, "%d\t%s\t%.2f\t%d\t%.4f\t%.4f\t%s\n",
			r.Index+1, r.Config.Mode, r.Config.NoiseFraction, r.Result.Steps,
			r.Result.Metrics["cr_rms"], r.Result.Metrics["tr_rms"], halt)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	fmt.Println()
	printSummary(summary)
	return nil
}

func runMonteCarlo(cmd *cobra.Command, args []string) error {
	cfg, registry, log, err := setup(cmd)
	if err != nil {
		return err
	}
	defer log.Sync()

	mcSeed := cfg.Seed
	if mcSeed == 0 {
		mcSeed = time.Now().UnixNano()
	}

	w := uilive.New()
	w.Start()
	start := time.Now()
	res, err := automation.RunMonteCarlo(cmd.Context(), automation.MonteCarloConfig{
		Base: cfg.Experiment(),
		Runs: runs,
		Seed: mcSeed,
	}, registry, progressPrinter(w, "runs"))
	w.Stop()
	if err != nil {
		return err
	}

	fmt.Printf("%s, %s, noise %.2f, seed %d, %v\n",
		cfg.Controller, cfg.Episode.Mode, cfg.Episode.NoiseFraction, mcSeed, time.Since(start).Round(time.Millisecond))
	printSummary(res.Summary)
	return nil
}

func runSweep(cmd *cobra.Command, args []string) error {
	cfg, registry, log, err := setup(cmd)
	if err != nil {
		return err
	}
	defer log.Sync()

	w := uilive.New()
	w.Start()
	results, err := automation.RunSweep(cmd.Context(), automation.ParameterSweep{
		Param:    sweepParam,
		Min:      sweepMin,
		Max:      sweepMax,
		NumSteps: sweepSteps,
	}, registry, cfg.Experiment(), progressPrinter(w, sweepParam))
	w.Stop()
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "%s\tSTEPS\tCR_RMS\tTR_RMS\tMAX_TR\tHALTED\n", strings.ToUpper(sweepParam))
	for _, r := range results {
		fmt.Fprintf(tw, "%.4f\t%d\t%.4f\t%.4f\t%.2f\t%v\n",
			r.Value, r.Steps, r.Metrics["cr_rms"], r.Metrics["tr_rms"], r.Metrics["max_tr"], r.Halted)
	}
	return tw.Flush()
}

// parseRange parses name=min:max:n.
func parseRange(s string) (string, []float64, error) {
	name, spec, ok := strings.Cut(s, "=")
	if !ok {
		return "", nil, fmt.Errorf("invalid grid %q: want name=min:max:n", s)
	}
	parts := strings.Split(spec, ":")
	if len(parts) != 3 {
		return "", nil, fmt.Errorf("invalid grid %q: want name=min:max:n", s)
	}
	lo, err := strconv.ParseFloat(parts[0], 64)
	if err != nil {
		return "", nil, fmt.Errorf("grid %s min: %w", name, err)
	}
	hi, err := strconv.ParseFloat(parts[1], 64)
	if err != nil {
		return "", nil, fmt.Errorf("grid %s max: %w", name, err)
	}
	n, err := strconv.Atoi(parts[2])
	if err != nil || n < 1 {
		return "", nil, fmt.Errorf("grid %s: invalid count %q", name, parts[2])
	}
	return strings.TrimSpace(name), optim.Linspace(lo, hi, n), nil
}

func runTune(cmd *cobra.Command, args []string) error {
	cfg, registry, log, err := setup(cmd)
	if err != nil {
		return err
	}
	defer log.Sync()
	if !cmd.Flags().Changed("controller") && cfg.Controller == "do_nothing" {
		cfg.Controller = "pid"
	}

	names := make([]string, 0, len(grid))
	ranges := make([][]float64, 0, len(grid))
	for _, g := range grid {
		name, values, err := parseRange(g)
		if err != nil {
			return err
		}
		names = append(names, name)
		ranges = append(ranges, values)
	}

	base := cfg.Experiment()
	build := func(params map[string]float64) (*experiment.Experiment, error) {
		run := base
		run.Params = make(map[string]float64, len(base.Params)+len(params))
		for k, v := range base.Params {
			run.Params[k] = v
		}
		for k, v := range params {
			run.Params[k] = v
		}
		return registry.Build(run)
	}

	fmt.Printf("tuning %s over %v minimising %s\n", cfg.Controller, names, metricName)
	best, value, err := optim.NewGridSearch(names, ranges).Search(cmd.Context(), build, metricName)
	if err != nil {
		return err
	}

	keys := make([]string, 0, len(best))
	for k := range best {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	fmt.Printf("best %s: %.6f\n", metricName, value)
	for _, k := range keys {
		fmt.Printf("  %s = %.4f\n", k, best[k])
	}
	return nil
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, registry, log, err := setup(cmd)
	if err != nil {
		return err
	}
	defer log.Sync()

	expCfg := cfg.Experiment()
	ep, err := registry.NewEpisode(expCfg)
	if err != nil {
		return err
	}
	if _, err := ep.Reset(expCfg.Episode); err != nil {
		return err
	}

	srv := server.New(ep, log)
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errc := make(chan error, 1)
	go func() { errc <- srv.Listen(addr) }()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		log.Info("shutting down")
		if err := srv.Shutdown(); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	}
}
