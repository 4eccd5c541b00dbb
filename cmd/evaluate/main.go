package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/biirrr/llms-complex-leisure-search/internal/logging"
	"github.com/biirrr/llms-complex-leisure-search/pkg/annotate/evaluate"
	"github.com/biirrr/llms-complex-leisure-search/pkg/annotate/report"
)

func main() {
	if err := run(context.Background(), os.Args[1:], os.Stderr); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return
		}
		logging.Error().Err(err).Msg("evaluate failed")
		os.Exit(1)
	}
}

type options struct {
	dataDir   string
	domains   string
	models    string
	sets      string
	output    string
	logLevel  string
	logFormat string
}

func parseFlags(args []string, stderr io.Writer) (options, error) {
	var opts options
	flags := flag.NewFlagSet("evaluate", flag.ContinueOnError)
	flags.SetOutput(stderr)
	flags.StringVar(&opts.dataDir, "data", "data", "Data directory holding <domain>/solved_<set>.json and <domain>/<llm>_<set>.json")
	flags.StringVar(&opts.domains, "domains", "books,games,movies", "Comma-separated domains")
	flags.StringVar(&opts.models, "llms", "gemini,gpt-3-5,gpt-4o-mini,llama-3-2", "Comma-separated model names")
	flags.StringVar(&opts.sets, "sets", "extra,jdoc", "Comma-separated data sets per domain")
	flags.StringVar(&opts.output, "output", "analysis", "Directory for the CSV tables")
	flags.StringVar(&opts.logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	flags.StringVar(&opts.logFormat, "log-format", "console", "Log format (console, json)")
	if err := flags.Parse(args); err != nil {
		return options{}, err
	}
	return opts, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func run(ctx context.Context, args []string, stderr io.Writer) error {
	opts, err := parseFlags(args, stderr)
	if err != nil {
		return err
	}
	logging.Init(logging.Config{Level: opts.logLevel, Format: opts.logFormat, Output: stderr})
	log := logging.With().Str("component", "evaluate").Logger()

	sets := splitList(opts.sets)
	var reports []evaluate.Report
	for _, domain := range splitList(opts.domains) {
		if err := ctx.Err(); err != nil {
			return err
		}
		tasks, err := evaluate.LoadTasks(evaluate.Paths(opts.dataDir, domain, "solved", sets)...)
		if errors.Is(err, fs.ErrNotExist) {
			log.Warn().Err(err).Str("domain", domain).Msg("skipping domain without solved tasks")
			continue
		}
		if err != nil {
			return fmt.Errorf("domain %s: %w", domain, err)
		}

		for _, model := range splitList(opts.models) {
			solutions, err := evaluate.LoadSolutions(evaluate.Paths(opts.dataDir, domain, model, sets)...)
			if errors.Is(err, fs.ErrNotExist) {
				log.Warn().Err(err).Str("domain", domain).Str("llm", model).Msg("skipping model without answers")
				continue
			}
			if err != nil {
				return fmt.Errorf("domain %s, llm %s: %w", domain, model, err)
			}
			ev, err := evaluate.NewEvaluator(tasks, solutions)
			if err != nil {
				return fmt.Errorf("domain %s, llm %s: %w", domain, model, err)
			}
			r := ev.Report(domain, model)
			log.Info().
				Str("domain", domain).
				Str("llm", model).
				Int("tasks", r.Tasks).
				Int("answered", r.Summary.Answered).
				Float64("mrr", r.Best.MRR).
				Msg("evaluated model")
			reports = append(reports, r)
		}
	}

	if err := os.MkdirAll(opts.output, 0o755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}
	for _, table := range evaluate.Tables {
		path := filepath.Join(opts.output, table.Name)
		if err := report.WriteFile(path, func(w io.Writer) error {
			return evaluate.WriteTable(w, table, reports)
		}); err != nil {
			return fmt.Errorf("write %s: %w", table.Name, err)
		}
		log.Debug().Str("path", path).Int("rows", len(reports)).Msg("wrote table")
	}
	log.Info().Str("output", opts.output).Int("reports", len(reports)).Msg("evaluation complete")
	return nil
}
