package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/The-Alphabet-Cartel/ash-nlp-sub003/pkg/alerting"
	"github.com/The-Alphabet-Cartel/ash-nlp-sub003/pkg/apiserver"
	"github.com/The-Alphabet-Cartel/ash-nlp-sub003/pkg/cli"
	"github.com/The-Alphabet-Cartel/ash-nlp-sub003/pkg/config"
	"github.com/The-Alphabet-Cartel/ash-nlp-sub003/pkg/engine"
	"github.com/The-Alphabet-Cartel/ash-nlp-sub003/pkg/modelclient"
	"github.com/The-Alphabet-Cartel/ash-nlp-sub003/pkg/observability/logging"
	"github.com/The-Alphabet-Cartel/ash-nlp-sub003/pkg/signal"
)

func main() {
	root := &cobra.Command{
		Use:   "ash-nlp",
		Short: "Ensemble crisis decision engine",
	}
	root.AddCommand(serveCmd(), analyzeCmd())

	if err := root.Execute(); err != nil {
		cli.Error(err.Error())
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	var (
		configPath  string
		port        int
		metricsPort int
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the analysis API server",
		RunE: func(_ *cobra.Command, _ []string) error {
			if _, err := logging.InitFromEnv(); err != nil {
				fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
			}
			defer logging.Sync()

			if _, err := config.Load(configPath); err != nil {
				return err
			}

			// Metrics server
			go func() {
				http.Handle("/metrics", promhttp.Handler())
				metricsAddr := fmt.Sprintf(":%d", metricsPort)
				logging.Infof("Starting metrics server on %s", metricsAddr)
				if err := http.ListenAndServe(metricsAddr, nil); err != nil {
					logging.Errorf("Metrics server error: %v", err)
				}
			}()

			eng := buildEngine(config.Get())
			return apiserver.New(eng).Start(port)
		},
	}

	cmd.Flags().StringVar(&configPath, "config", "config/config.yaml", "Path to the configuration file")
	cmd.Flags().IntVar(&port, "port", 8080, "Port for the analysis API")
	cmd.Flags().IntVar(&metricsPort, "metrics-port", 9190, "Port for Prometheus metrics")
	return cmd
}

func analyzeCmd() *cobra.Command {
	var (
		configPath  string
		message     string
		signalsPath string
		algorithm   string
		verbosity   string
		asJSON      bool
	)

	cmd := &cobra.Command{
		Use:   "analyze",
		Short: "Run a one-shot analysis and print the result",
		RunE: func(_ *cobra.Command, _ []string) error {
			if _, err := logging.InitFromEnv(); err != nil {
				fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
			}
			defer logging.Sync()

			if _, err := config.Load(configPath); err != nil {
				return err
			}

			if message == "" && signalsPath == "" {
				return fmt.Errorf("either --message or --signals must be provided")
			}

			eng := buildEngine(config.Get())
			opts := engine.Options{
				IncludeExplanation: true,
				Verbosity:          verbosity,
				Algorithm:          algorithm,
			}

			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()

			var (
				analysis *engine.Analysis
				err      error
			)
			if signalsPath != "" {
				records, readErr := readSignals(signalsPath)
				if readErr != nil {
					return readErr
				}
				analysis, err = eng.AnalyzeSignals(ctx, "", records, opts)
			} else {
				analysis, err = eng.Analyze(ctx, "", message, opts)
			}
			if err != nil {
				return err
			}

			if asJSON {
				return cli.PrintJSON(analysis)
			}
			printAnalysis(analysis)
			return nil
		},
	}

	cmd.Flags().StringVar(&configPath, "config", "config/config.yaml", "Path to the configuration file")
	cmd.Flags().StringVar(&message, "message", "", "Message text to analyze against the configured endpoints")
	cmd.Flags().StringVar(&signalsPath, "signals", "", "Path to a JSON file of precomputed signal records")
	cmd.Flags().StringVar(&algorithm, "algorithm", "", "Consensus algorithm override")
	cmd.Flags().StringVar(&verbosity, "verbosity", "", "Explanation verbosity (minimal, standard, detailed)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the raw JSON result")
	return cmd
}

func buildEngine(cfg *config.Config) *engine.Engine {
	var notifier engine.Notifier = alerting.Noop{}
	if cfg.Alerting.Enabled && cfg.Alerting.WebhookURL != "" {
		notifier = alerting.NewDiscord(
			cfg.Alerting.WebhookURL,
			time.Duration(cfg.Alerting.MinIntervalSeconds)*time.Second,
		)
	}
	return engine.New(modelclient.BuildProviders(cfg), notifier)
}

func readSignals(path string) ([]signal.Record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read signals file: %w", err)
	}
	var records []signal.Record
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("failed to parse signals file: %w", err)
	}
	return records, nil
}

func printAnalysis(analysis *engine.Analysis) {
	levelLine := fmt.Sprintf("%s  score=%.3f  confidence=%.2f", analysis.CrisisLevel, analysis.CrisisScore, analysis.Confidence)
	cli.LevelColor(string(analysis.CrisisLevel)).Println(levelLine)

	if analysis.Explanation != nil {
		fmt.Println(analysis.Explanation.PlainText)
	}

	rows := make([][]string, 0, len(analysis.ModelSummaries))
	for _, m := range analysis.ModelSummaries {
		status := "ok"
		if !m.Succeeded {
			status = "failed"
		}
		rows = append(rows, []string{
			m.ModelName,
			m.Role,
			m.TopLabel,
			fmt.Sprintf("%.3f", m.CrisisSignal),
			fmt.Sprintf("%.2f", m.Weight),
			fmt.Sprintf("%dms", m.LatencyMs),
			status,
		})
	}
	if len(rows) > 0 {
		cli.PrintTable([]string{"Model", "Role", "Label", "Score", "Weight", "Latency", "Status"}, rows)
	}

	if analysis.RequiresReview {
		cli.Warning("Flagged for human review")
	}
	if analysis.RequiresIntervention {
		cli.Error("Intervention required")
	}
}
