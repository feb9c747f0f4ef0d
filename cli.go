package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"
)

// version is set at build time with -ldflags "-X main.version=..."
var version = "devVersion"

var (
	cfgFile      string
	jsonOutput   bool
	concurrency  int
	historyUser  string
	historyLimit int
	cfg          *Config
)

var rootCmd = &cobra.Command{
	Use:   "deception-analyzer",
	Short: "Deception likelihood analysis for free-form text",
	Long: `deception-analyzer sends text to a hosted language model with a fixed
analysis prompt and returns a 0-100 deception score together with sentiment,
linguistic and emotional indicators.

Run "serve" for the HTTP API or "analyze" to score files from the shell.`,
	SilenceErrors: true,
	SilenceUsage:  true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Name() == "version" {
			return nil
		}
		return initConfig()
	},
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServer(cfg)
	},
}

var analyzeCmd = &cobra.Command{
	Use:   "analyze [file...]",
	Short: "Analyze text from files or stdin",
	Long: `Analyze scores each file as one text. With no arguments the text is read
from stdin.

Example:
  deception-analyzer analyze statement.txt
  echo "I was home all evening, honestly." | deception-analyzer analyze --json
  deception-analyzer analyze a.txt b.txt c.txt --concurrency 2`,
	RunE: runAnalyze,
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List stored analyses for a user",
	RunE:  runHistory,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "deception-analyzer %s\n", version)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (YAML)")

	analyzeCmd.Flags().BoolVar(&jsonOutput, "json", false, "print the full analysis as JSON")
	analyzeCmd.Flags().IntVar(&concurrency, "concurrency", 4, "number of files analyzed at once")

	historyCmd.Flags().StringVar(&historyUser, "user", "local", "user ID whose analyses are listed")
	historyCmd.Flags().IntVar(&historyLimit, "limit", 20, "maximum number of rows (0 = all)")
	historyCmd.Flags().BoolVar(&jsonOutput, "json", false, "print rows as JSON")

	rootCmd.AddCommand(serveCmd, analyzeCmd, historyCmd, versionCmd)
}

// initConfig loads .env, the optional config file and the environment, in
// that order of precedence from lowest to highest.
func initConfig() error {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("loading .env: %w", err)
	}

	v := viper.GetViper()
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("reading config file: %w", err)
		}
	}

	loaded, err := loadConfig(v)
	if err != nil {
		return err
	}
	if err := initLogger(loaded.LogLevel); err != nil {
		return err
	}
	cfg = loaded
	return nil
}

// namedText is one input of the analyze command.
type namedText struct {
	Name string
	Text string
}

func readInputs(args []string, stdin io.Reader) ([]namedText, error) {
	if len(args) == 0 {
		data, err := io.ReadAll(stdin)
		if err != nil {
			return nil, fmt.Errorf("reading stdin: %w", err)
		}
		return []namedText{{Name: "stdin", Text: string(data)}}, nil
	}

	inputs := make([]namedText, 0, len(args))
	for _, path := range args {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", path, err)
		}
		inputs = append(inputs, namedText{Name: path, Text: string(data)})
	}
	return inputs, nil
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	inputs, err := readInputs(args, cmd.InOrStdin())
	if err != nil {
		return err
	}

	promptsDir = cfg.PromptsDir
	if err := loadTemplates(); err != nil {
		return err
	}
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	llm, err := createLLM(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to create LLM client: %w", err)
	}
	app := &App{Config: cfg, LLM: llm}

	results, err := app.analyzeBatch(ctx, inputs, concurrency)
	if err != nil {
		return err
	}
	return printResults(cmd.OutOrStdout(), inputs, results, jsonOutput)
}

// analyzeBatch analyzes inputs with at most limit calls in flight. Results
// keep the order of inputs. The first failure cancels the rest.
func (app *App) analyzeBatch(ctx context.Context, inputs []namedText, limit int) ([]AnalysisResponse, error) {
	if limit < 1 {
		limit = 1
	}
	results := make([]AnalysisResponse, len(inputs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for i, in := range inputs {
		g.Go(func() error {
			if strings.TrimSpace(in.Text) == "" {
				return fmt.Errorf("%s: %s", in.Name, errTextRequired.Message)
			}
			resp, err := app.analyzeText(gctx, in.Text, log.WithField("input", in.Name))
			if err != nil {
				return fmt.Errorf("%s: %w", in.Name, err)
			}
			results[i] = resp
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func bandColor(band string) *color.Color {
	switch band {
	case "low":
		return color.New(color.FgGreen, color.Bold)
	case "moderate":
		return color.New(color.FgYellow, color.Bold)
	default:
		return color.New(color.FgRed, color.Bold)
	}
}

func printResults(w io.Writer, inputs []namedText, results []AnalysisResponse, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if len(results) == 1 {
			return enc.Encode(results[0])
		}
		out := make(map[string]AnalysisResponse, len(results))
		for i, r := range results {
			out[inputs[i].Name] = r
		}
		return enc.Encode(out)
	}

	for i, r := range results {
		band := scoreBand(r.FinalScore)
		fmt.Fprintf(w, "%s\n", color.New(color.Bold).Sprint(inputs[i].Name))
		fmt.Fprintf(w, "  Deception likelihood: %s (%s)\n",
			bandColor(band).Sprintf("%d/100", r.FinalScore), band)
		fmt.Fprintf(w, "  Honesty score:        %d/100\n", honestyScore(r.FinalScore))
		fmt.Fprintf(w, "  Confidence:           %s\n", r.Confidence)
		for _, finding := range r.KeyFindings {
			fmt.Fprintf(w, "  - %s\n", finding)
		}
		if r.Interpretation != "" {
			fmt.Fprintf(w, "  %s\n", r.Interpretation)
		}
		fmt.Fprintln(w)
	}
	return nil
}

func runHistory(cmd *cobra.Command, args []string) error {
	database, err := InitializeDB(cfg.DBDriver, cfg.DBDSN)
	if err != nil {
		return err
	}

	records, err := ListAnalyses(database, historyUser)
	if err != nil {
		return fmt.Errorf("listing analyses: %w", err)
	}
	if historyLimit > 0 && len(records) > historyLimit {
		records = records[:historyLimit]
	}

	w := cmd.OutOrStdout()
	if jsonOutput {
		summaries := make([]AnalysisSummary, 0, len(records))
		for i := range records {
			summaries = append(summaries, records[i].summary())
		}
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(summaries)
	}

	if len(records) == 0 {
		fmt.Fprintf(w, "No analyses for %s\n", historyUser)
		return nil
	}
	for _, r := range records {
		band := scoreBand(r.FinalScore)
		preview := []rune(strings.TrimSpace(r.TextContent))
		if len(preview) > 60 {
			preview = append(preview[:60], []rune("...")...)
		}
		fmt.Fprintf(w, "%s  %s  %s  %s\n",
			r.CreatedAt.Format(time.DateTime),
			r.ID,
			bandColor(band).Sprintf("%3d", r.FinalScore),
			string(preview))
	}
	return nil
}
