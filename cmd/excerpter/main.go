package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/siherrmann/excerpter"
	"github.com/siherrmann/excerpter/config"
	"github.com/siherrmann/excerpter/helper"
	"github.com/siherrmann/excerpter/model"
	"github.com/spf13/cobra"
)

const shutdownTimeout = 10 * time.Second

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:          "excerpter",
		Short:        "Extract ranked, sentence aligned excerpts that answer a question",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "config.yaml", "path of the YAML configuration")

	root.AddCommand(
		newServeCommand(&configPath),
		newIndexCommand(&configPath),
		newQueryCommand(&configPath),
	)

	return root
}

// loadConfig reads the config file and applies key=value overrides
func loadConfig(path string, overrides []string) (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, nil, err
	}
	if err := cfg.Override(overrides...); err != nil {
		return nil, nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}

	return cfg, helper.NewLogger(os.Stdout, helper.ParseLevel(cfg.LogLevel)), nil
}

func newServeCommand(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve [key=value...]",
		Short: "Run the HTTP request service",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadConfig(*configPath, args)
			if err != nil {
				return err
			}

			e, err := excerpter.NewExcerpter(cfg, logger)
			if err != nil {
				return err
			}
			defer e.Close()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			srv := e.Server()
			errs := make(chan error, 1)
			go func() {
				errs <- srv.ListenAndServe()
			}()

			select {
			case err := <-errs:
				return err
			case <-ctx.Done():
				logger.Info("Shutting down")
			}

			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	}
}

func newIndexCommand(configPath *string) *cobra.Command {
	var file string
	var reembed bool

	cmd := &cobra.Command{
		Use:   "index [key=value...]",
		Short: "Embed the papers of a JSON file and add them to the paper store",
		RunE: func(cmd *cobra.Command, args []string) error {
			if file == "" && !reembed {
				return fmt.Errorf("either --file or --reembed is required")
			}

			cfg, logger, err := loadConfig(*configPath, args)
			if err != nil {
				return err
			}
			cfg.Database.Enabled = true

			var papers []*model.Paper
			if file != "" {
				papers, err = model.NewPapersFromFile(file)
				if err != nil {
					return helper.NewError("read papers", err)
				}
			}

			e, err := excerpter.NewExcerpter(cfg, logger)
			if err != nil {
				return err
			}
			defer e.Close()

			if reembed {
				updated, err := e.ReembedPapers(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Re-embedded %d stored papers\n", updated)
			}

			if file != "" {
				stored, err := e.IndexPapers(cmd.Context(), papers)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Indexed %d of %d papers from %s\n", stored, len(papers), file)
			}

			return e.RebuildVectorIndex(cmd.Context())
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "JSON array of papers")
	cmd.Flags().BoolVar(&reembed, "reembed", false, "recompute the embeddings of the stored papers, e.g. after changing model_name")

	return cmd
}

func newQueryCommand(configPath *string) *cobra.Command {
	var url string
	var docs []string

	cmd := &cobra.Command{
		Use:   "query <question> [key=value...]",
		Short: "Print the excerpts for a question as JSON",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			question, overrides := args[0], args[1:]
			if strings.TrimSpace(question) == "" {
				return errors.New("no question provided")
			}

			cfg, logger, err := loadConfig(*configPath, overrides)
			if err != nil {
				return err
			}

			e, err := excerpter.NewExcerpter(cfg, logger)
			if err != nil {
				return err
			}
			defer e.Close()

			var excerpts []model.Excerpt
			if len(docs) > 0 {
				excerpts, err = e.ExcerptsFromDocs(cmd.Context(), question, docs)
			} else {
				excerpts, err = e.ExcerptsFromURL(cmd.Context(), question, url)
			}
			if err != nil {
				return err
			}

			encoder := json.NewEncoder(cmd.OutOrStdout())
			encoder.SetIndent("", "  ")
			return encoder.Encode(excerpts)
		},
	}
	cmd.Flags().StringVarP(&url, "url", "u", "", "page to answer from, default_url when empty")
	cmd.Flags().StringArrayVarP(&docs, "doc", "d", nil, "document text, may be repeated; skips the page and the store")

	return cmd
}
