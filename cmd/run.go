package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/leads-cli/internal/config"
	"github.com/sells-group/leads-cli/internal/discovery"
	"github.com/sells-group/leads-cli/internal/export"
	"github.com/sells-group/leads-cli/internal/model"
	"github.com/sells-group/leads-cli/internal/pipeline"
)

// outputFlags are shared by run and enrich.
type outputFlags struct {
	format   string
	dir      string
	asJSON   bool
	noExport bool
}

func (o *outputFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&o.format, "format", "", "export format: csv or xlsx (default from config)")
	cmd.Flags().StringVar(&o.dir, "out", "", "export directory (default from config)")
	cmd.Flags().BoolVar(&o.asJSON, "json", false, "print the run result as JSON instead of a table")
	cmd.Flags().BoolVar(&o.noExport, "no-export", false, "skip writing the export file")
}

var (
	runNiche    string
	runLocation string
	runLimit    int
	runSource   string
	runOut      outputFlags
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Discover and enrich leads for a niche and location",
	Example: `  leads run --niche dentista --location "Belo Horizonte, MG"
  leads run --niche padaria --location "Curitiba, PR" --source places --format xlsx`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if runSource != "" {
			cfg.Discovery.Source = runSource
		}
		if cfg.Discovery.Source == "cnpjlist" {
			return eris.New("use `leads enrich --file` for the cnpjlist source")
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initEnv(ctx, config.ModeRun)
		if err != nil {
			return err
		}
		defer env.Close()

		src, err := env.buildSource(cfg.Discovery.Source, "")
		if err != nil {
			return err
		}

		limit := runLimit
		if limit <= 0 {
			limit = cfg.Discovery.DefaultLimit
		}
		q := model.Query{Niche: runNiche, Location: runLocation, Limit: limit}
		return runAndReport(ctx, env, src, q, runOut, os.Stdout)
	},
}

// runAndReport executes one run, prints the result and writes the export.
func runAndReport(ctx context.Context, env *appEnv, src discovery.Source, q model.Query, out outputFlags, w io.Writer) error {
	p := env.newPipeline(src, pipeline.WithProgress(func(pr pipeline.Progress) {
		zap.L().Info("lead enriched",
			zap.Int("index", pr.Index),
			zap.Int("total", pr.Total),
			zap.String("lead", pr.Lead),
			zap.Bool("enriched", pr.Enriched),
		)
	}))

	res, err := p.Run(ctx, q)
	if err != nil {
		return eris.Wrap(err, "pipeline run")
	}

	if !out.noExport && len(res.Leads) > 0 {
		format := out.format
		if format == "" {
			format = cfg.Export.Format
		}
		dir := out.dir
		if dir == "" {
			dir = cfg.Export.Dir
		}
		path, err := export.WriteFile(dir, exportName(res), format, res.Leads)
		if err != nil {
			return err
		}
		zap.L().Info("leads exported", zap.String("path", path), zap.Int("leads", len(res.Leads)))
	}

	if out.asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	}
	printResult(w, res)
	return nil
}

// printResult renders the lead table and a run summary.
func printResult(w io.Writer, res *model.RunResult) {
	if len(res.Leads) > 0 {
		export.RenderTable(w, res.Leads)
	}
	_, _ = fmt.Fprintf(w, "\nrun %s: %s, %d discovered, %d enriched, %d duplicates, cost $%.4f\n",
		truncateID(res.RunID), res.Status, res.Discovered, res.Enriched, res.Duplicates, res.CostUSD)
	_, _ = fmt.Fprintf(w, "tiers: high=%d medium=%d low=%d very_low=%d\n",
		res.TierCounts["high"], res.TierCounts["medium"], res.TierCounts["low"], res.TierCounts["very_low"])
	if msg := outcomeMessage(res); msg != "" {
		_, _ = fmt.Fprintln(w, msg)
	}
}

// outcomeMessage tells the operator what to try next.
func outcomeMessage(res *model.RunResult) string {
	switch {
	case res.Status == model.RunStatusCancelled:
		return fmt.Sprintf("run cancelled after %d of %d leads; partial results kept", res.Processed, res.Discovered)
	case res.Outcome == model.OutcomeNoLeads:
		return "no leads found: try other keywords or a wider location"
	case res.Outcome == model.OutcomeNoneEnriched:
		return fmt.Sprintf("leads found but none enriched: check provider status (%d failures)", len(res.Failures))
	}
	return ""
}

func exportName(res *model.RunResult) string {
	return "leads-" + truncateID(res.RunID)
}

func init() {
	runCmd.Flags().StringVar(&runNiche, "niche", "", "business niche to search for (required)")
	runCmd.Flags().StringVar(&runLocation, "location", "", "city and state, e.g. \"Belo Horizonte, MG\" (required)")
	runCmd.Flags().IntVar(&runLimit, "limit", 0, "max leads to discover (default from config)")
	runCmd.Flags().StringVar(&runSource, "source", "", "discovery source: osm, places, serpapi or cnae (default from config)")
	runOut.register(runCmd)
	_ = runCmd.MarkFlagRequired("niche")
	_ = runCmd.MarkFlagRequired("location")
	rootCmd.AddCommand(runCmd)
}
