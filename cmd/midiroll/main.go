// Package main is the entry point for the midiroll CLI
package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/james-see/midiroll/pkg/api"
	"github.com/james-see/midiroll/pkg/config"
	"github.com/james-see/midiroll/pkg/converter"
	"github.com/james-see/midiroll/pkg/converter/formats"
	"github.com/james-see/midiroll/pkg/heatmap"
	"github.com/james-see/midiroll/pkg/labels"
	"github.com/james-see/midiroll/pkg/logging"
	"github.com/james-see/midiroll/pkg/pianoroll"
	"github.com/james-see/midiroll/pkg/synth"
	"github.com/james-see/midiroll/pkg/tui"
	"github.com/spf13/cobra"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

var (
	configPath string
	timeStep   float64
	maxTime    float64
	logLevel   string

	outputFile  string
	batchFormat string
	soundFont   string
	wavFile     string
	pngFile     string
	outDir      string
	workers     int
	serverPort  int
)

// set by setup before any command runs
var (
	cfg    *config.Config
	logger *log.Logger
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "midiroll",
	Short: "Convert MIDI files to and from piano-roll matrices",
	Long: `midiroll quantizes MIDI note events onto a fixed time grid, producing a
dense [steps x 128] matrix of velocities, and decodes such matrices back
into MIDI.

The default grid is 1 ms steps over a 30 s horizon.

Examples:
  midiroll encode song.mid -o song.roll
  midiroll decode song.npy -o song.mid
  midiroll roundtrip song.mid -o out.mid --png out.png
  midiroll heatmap song.roll -o song.png
  midiroll render song.mid -o song.wav --soundfont FluidR3_GM.sf2
  midiroll batch *.mid --out-dir rolls --format npy
  midiroll tui
  midiroll serve --port 8080`,
	Version:           fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
	PersistentPreRunE: setup,
	SilenceUsage:      true,
}

var encodeCmd = &cobra.Command{
	Use:   "encode <input.mid>",
	Short: "Encode MIDI as a .roll or .npy matrix",
	Args:  cobra.ExactArgs(1),
	RunE:  runEncode,
}

var decodeCmd = &cobra.Command{
	Use:   "decode <input.roll|input.npy>",
	Short: "Decode a matrix to MIDI",
	Args:  cobra.ExactArgs(1),
	RunE:  runDecode,
}

var convertCmd = &cobra.Command{
	Use:   "convert <input>",
	Short: "Auto-detect and convert between formats",
	Long:  `Automatically detects input format and converts to the output format based on file extension.`,
	Args:  cobra.ExactArgs(1),
	RunE:  runConvert,
}

var roundtripCmd = &cobra.Command{
	Use:   "roundtrip <input.mid>",
	Short: "Encode MIDI onto the grid and decode it back",
	Long: `Runs the full pipeline: MIDI is parsed, encoded onto the grid and decoded
back into MIDI. Optionally renders the matrix as a heat map and the result
as audio.`,
	Args: cobra.ExactArgs(1),
	RunE: runRoundTrip,
}

var heatmapCmd = &cobra.Command{
	Use:   "heatmap <input>",
	Short: "Render a MIDI, .roll or .npy file as a PNG heat map",
	Args:  cobra.ExactArgs(1),
	RunE:  runHeatmap,
}

var renderCmd = &cobra.Command{
	Use:   "render <input.mid>",
	Short: "Synthesise MIDI to WAV through a SoundFont",
	Args:  cobra.ExactArgs(1),
	RunE:  runRender,
}

var labelsCmd = &cobra.Command{
	Use:   "labels <labels.csv>",
	Short: "Print emotion categories from a label sheet",
	Args:  cobra.ExactArgs(1),
	RunE:  runLabels,
}

var batchCmd = &cobra.Command{
	Use:   "batch <input>...",
	Short: "Convert many files concurrently",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runBatch,
}

var gridCmd = &cobra.Command{
	Use:   "grid",
	Short: "Show the quantization grid",
	Args:  cobra.NoArgs,
	RunE:  runGrid,
}

var tuiCmd = &cobra.Command{
	Use:   "tui",
	Short: "Launch interactive terminal UI",
	RunE:  runTUI,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the API server",
	RunE:  runServe,
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "YAML config file")
	rootCmd.PersistentFlags().Float64Var(&timeStep, "time-step", pianoroll.DefaultTimeStep, "Seconds per grid step")
	rootCmd.PersistentFlags().Float64Var(&maxTime, "max-time", pianoroll.DefaultMaxTime, "Grid horizon in seconds")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")

	encodeCmd.Flags().StringVarP(&outputFile, "output", "o", "", "Output .roll or .npy file path")
	decodeCmd.Flags().StringVarP(&outputFile, "output", "o", "", "Output .mid file path")

	convertCmd.Flags().StringVarP(&outputFile, "output", "o", "", "Output file path (required)")
	_ = convertCmd.MarkFlagRequired("output")

	roundtripCmd.Flags().StringVarP(&outputFile, "output", "o", "", "Output .mid file path")
	roundtripCmd.Flags().StringVar(&pngFile, "png", "", "Also write the matrix heat map here")
	roundtripCmd.Flags().StringVar(&wavFile, "wav", "", "Also render the result to this WAV file")
	roundtripCmd.Flags().StringVar(&soundFont, "soundfont", "", "SoundFont for --wav (overrides config)")

	heatmapCmd.Flags().StringVarP(&outputFile, "output", "o", "", "Output .png file path")

	renderCmd.Flags().StringVarP(&outputFile, "output", "o", "", "Output .wav file path")
	renderCmd.Flags().StringVar(&soundFont, "soundfont", "", "SoundFont (.sf2) to render with (overrides config)")

	batchCmd.Flags().StringVar(&outDir, "out-dir", ".", "Directory for converted files")
	batchCmd.Flags().StringVarP(&batchFormat, "format", "f", "roll", "Output format (roll, npy, png, midi)")
	batchCmd.Flags().IntVarP(&workers, "workers", "w", 0, "Concurrent conversions (default from config)")

	serveCmd.Flags().IntVarP(&serverPort, "port", "p", 0, "Server port (default from config)")

	// Add commands
	rootCmd.AddCommand(encodeCmd)
	rootCmd.AddCommand(decodeCmd)
	rootCmd.AddCommand(convertCmd)
	rootCmd.AddCommand(roundtripCmd)
	rootCmd.AddCommand(heatmapCmd)
	rootCmd.AddCommand(renderCmd)
	rootCmd.AddCommand(labelsCmd)
	rootCmd.AddCommand(batchCmd)
	rootCmd.AddCommand(gridCmd)
	rootCmd.AddCommand(tuiCmd)
	rootCmd.AddCommand(serveCmd)
}

// setup loads the config file and applies flags given on the command line
func setup(cmd *cobra.Command, args []string) error {
	c := config.Default()
	if configPath != "" {
		var err error
		if c, err = config.Load(configPath); err != nil {
			return err
		}
	}

	flags := cmd.Flags()
	if flags.Changed("time-step") {
		c.TimeStep = timeStep
	}
	if flags.Changed("max-time") {
		c.MaxTime = maxTime
	}
	if flags.Changed("log-level") {
		c.LogLevel = logLevel
	}
	if flags.Changed("soundfont") {
		c.SoundFont = soundFont
	}
	if flags.Changed("workers") {
		c.Workers = workers
	}
	if flags.Changed("port") {
		c.Port = serverPort
	}
	if err := c.Validate(); err != nil {
		return err
	}

	cfg = c
	logger = logging.New(cfg.LogLevel, os.Stderr)
	return nil
}

func newConverter() *converter.Converter {
	conv := converter.New(cfg.Grid(), formats.NewRoll(), formats.NewNPY())
	conv.SetLogger(logger)
	conv.SetHeatmapOptions(cfg.HeatmapOptions())
	return conv
}

func getOutputPath(input, defaultExt string) string {
	if outputFile != "" {
		return outputFile
	}
	base := strings.TrimSuffix(input, filepath.Ext(input))
	return base + defaultExt
}

func printReport(r *pianoroll.Report) {
	if r == nil {
		return
	}
	fmt.Printf("Notes: %d encoded, %d drums dropped, %d skipped\n", r.Encoded, r.Drums, r.Skipped())
}

func convertTo(input, output string) error {
	report, err := newConverter().ConvertFile(input, output)
	if err != nil {
		return err
	}
	fmt.Printf("Converted %s -> %s\n", input, output)
	printReport(report)
	return nil
}

func runEncode(cmd *cobra.Command, args []string) error {
	input := args[0]
	output := getOutputPath(input, converter.FormatRoll.Extension())
	if !converter.DetectFormat(output).IsMatrix() {
		return fmt.Errorf("encode writes .roll or .npy, not %s", filepath.Ext(output))
	}
	return convertTo(input, output)
}

func runDecode(cmd *cobra.Command, args []string) error {
	input := args[0]
	return convertTo(input, getOutputPath(input, converter.FormatMIDI.Extension()))
}

func runConvert(cmd *cobra.Command, args []string) error {
	return convertTo(args[0], outputFile)
}

func runRoundTrip(cmd *cobra.Command, args []string) error {
	input := args[0]
	output := getOutputPath(input, ".roundtrip.mid")

	data, err := os.ReadFile(input)
	if err != nil {
		return err
	}

	conv := newConverter()
	m, report, err := conv.MIDIToMatrix(data)
	if err != nil {
		return err
	}
	printReport(report)
	logger.Info("encoded", "active", m.Active(), "grid", cfg.Grid())

	result, err := conv.MatrixToMIDI(m, cfg.Grid())
	if err != nil {
		return err
	}
	if err := os.WriteFile(output, result, 0644); err != nil {
		return err
	}
	fmt.Printf("Round trip %s -> %s\n", input, output)

	if pngFile != "" {
		if err := heatmap.WriteFile(pngFile, m, cfg.HeatmapOptions()); err != nil {
			return err
		}
		fmt.Printf("Heat map -> %s\n", pngFile)
	}
	if wavFile != "" {
		if err := renderWAV(output, wavFile); err != nil {
			return err
		}
		fmt.Printf("Audio -> %s\n", wavFile)
	}
	return nil
}

func runHeatmap(cmd *cobra.Command, args []string) error {
	input := args[0]
	output := getOutputPath(input, converter.FormatPNG.Extension())

	m, _, err := newConverter().LoadMatrix(input)
	if err != nil {
		return err
	}
	if err := heatmap.WriteFile(output, m, cfg.HeatmapOptions()); err != nil {
		return err
	}
	fmt.Printf("Heat map %s -> %s\n", input, output)
	return nil
}

func runRender(cmd *cobra.Command, args []string) error {
	input := args[0]
	output := getOutputPath(input, converter.FormatWAV.Extension())
	if err := renderWAV(input, output); err != nil {
		return err
	}
	fmt.Printf("Rendered %s -> %s\n", input, output)
	return nil
}

func renderWAV(midiPath, wavPath string) error {
	if cfg.SoundFont == "" {
		return errors.New("no soundfont: pass --soundfont or set soundfont in the config")
	}
	r, err := synth.NewFromFile(cfg.SoundFont, cfg.SampleRate)
	if err != nil {
		return err
	}
	logger.Debug("rendering", "input", midiPath, "soundfont", cfg.SoundFont, "rate", r.SampleRate())
	return r.RenderFile(midiPath, wavPath)
}

func runLabels(cmd *cobra.Command, args []string) error {
	ids, cats, err := labels.Load(args[0], cfg.LabelOptions())
	if err != nil {
		return err
	}

	counts := make(map[labels.Category]int)
	for i, id := range ids {
		counts[cats[i]]++
		fmt.Printf("%s\t%s\n", id, cats[i])
	}

	names := make([]string, 0, len(counts))
	for c := range counts {
		names = append(names, string(c))
	}
	sort.Strings(names)
	for _, name := range names {
		logger.Info("category", "name", name, "files", counts[labels.Category(name)])
	}
	return nil
}

func runBatch(cmd *cobra.Command, args []string) error {
	to := converter.Format(strings.TrimPrefix(strings.ToLower(batchFormat), "."))
	switch to {
	case converter.FormatRoll, converter.FormatNPY, converter.FormatPNG, converter.FormatMIDI:
	default:
		return fmt.Errorf("unsupported batch format %q", batchFormat)
	}

	ctx := logging.WithContext(cmd.Context(), logger)
	results, err := newConverter().Batch(ctx, args, outDir, to, cfg.Workers)
	if err != nil {
		return err
	}

	var failed int
	for _, r := range results {
		if r.Error != nil {
			failed++
			fmt.Fprintf(os.Stderr, "✗ %s: %v\n", r.Input, r.Error)
			continue
		}
		fmt.Printf("✓ %s -> %s\n", r.Input, r.Output)
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d conversions failed", failed, len(results))
	}
	return nil
}

func runGrid(cmd *cobra.Command, args []string) error {
	g := cfg.Grid()
	fmt.Printf("Time step: %g s\n", g.TimeStep)
	fmt.Printf("Horizon:   %g s\n", g.MaxTime)
	fmt.Printf("Steps:     %d\n", g.StepCount())
	fmt.Printf("Pitches:   %d\n", pianoroll.PitchCount)
	fmt.Printf("Cells:     %d\n", g.Cells())
	return nil
}

func runTUI(cmd *cobra.Command, args []string) error {
	return tui.Run(newConverter())
}

func runServe(cmd *cobra.Command, args []string) error {
	fmt.Printf("Starting API server on port %d...\n", cfg.Port)
	fmt.Printf("Swagger docs available at http://localhost:%d/swagger/index.html\n", cfg.Port)
	return api.StartServer(cfg, logger)
}
