package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/sells-group/leads-cli/internal/config"
	"github.com/sells-group/leads-cli/internal/discovery"
	"github.com/sells-group/leads-cli/internal/model"
)

var (
	enrichFile string
	enrichOut  outputFlags
)

var enrichCmd = &cobra.Command{
	Use:   "enrich",
	Short: "Enrich a CSV or XLSX list of registration ids",
	Long:  "Reads registration ids (and optional names) from a CSV or XLSX file and runs them through the enrichment waterfall.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initEnv(ctx, config.ModeEnrich)
		if err != nil {
			return err
		}
		defer env.Close()

		src, err := env.buildSource("cnpjlist", enrichFile)
		if err != nil {
			return err
		}
		q := model.Query{Limit: discovery.CNPJListMaxResults}
		return runAndReport(ctx, env, src, q, enrichOut, os.Stdout)
	},
}

func init() {
	enrichCmd.Flags().StringVar(&enrichFile, "file", "", "CSV or XLSX file with a registration id column (required)")
	enrichOut.register(enrichCmd)
	_ = enrichCmd.MarkFlagRequired("file")
	rootCmd.AddCommand(enrichCmd)
}
