package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/biirrr/llms-complex-leisure-search/internal/logging"
	"github.com/biirrr/llms-complex-leisure-search/pkg/annotate"
	"github.com/biirrr/llms-complex-leisure-search/pkg/annotate/config"
	"github.com/biirrr/llms-complex-leisure-search/pkg/annotate/ingest"
	"github.com/biirrr/llms-complex-leisure-search/pkg/annotate/report"
	"github.com/biirrr/llms-complex-leisure-search/pkg/annotate/store"
	"github.com/biirrr/llms-complex-leisure-search/pkg/annotate/store/sqlite"
)

func main() {
	if err := run(context.Background(), os.Args[1:], os.Stdout, os.Stderr); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return
		}
		logging.Error().Err(err).Msg("reconcile failed")
		os.Exit(1)
	}
}

type options struct {
	configPath  string
	input       string
	policy      string
	tsv         string
	html        string
	summaryJSON string
	archive     string
	runs        int
	logLevel    string
	logFormat   string
}

func parseFlags(args []string, stderr io.Writer) (options, error) {
	var opts options
	fs := flag.NewFlagSet("reconcile", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&opts.configPath, "config", "", "Optional YAML run configuration")
	fs.StringVar(&opts.input, "input", "", "Annotation export (.json or .jsonl)")
	fs.StringVar(&opts.policy, "policy", "", "Optional YAML policy (distance threshold, tie-break annotators)")
	fs.StringVar(&opts.tsv, "tsv", "", "Divergence table output path")
	fs.StringVar(&opts.html, "html", "", "Highlighted-text report output path")
	fs.StringVar(&opts.summaryJSON, "summary-json", "", "Optional summary and agreement analytics JSON output path")
	fs.StringVar(&opts.archive, "archive", "", "Optional sqlite run archive")
	fs.IntVar(&opts.runs, "runs", 0, "List the N most recent archived runs and exit")
	fs.StringVar(&opts.logLevel, "log-level", "", "Log level (debug, info, warn, error)")
	fs.StringVar(&opts.logFormat, "log-format", "", "Log format (console, json)")
	if err := fs.Parse(args); err != nil {
		return options{}, err
	}
	return opts, nil
}

// apply overrides cfg with every flag that was given.
func (o options) apply(cfg config.Run) config.Run {
	set := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}
	set(&cfg.Input, o.input)
	set(&cfg.Policy, o.policy)
	set(&cfg.Output.TSV, o.tsv)
	set(&cfg.Output.HTML, o.html)
	set(&cfg.Output.SummaryJSON, o.summaryJSON)
	set(&cfg.Archive.Path, o.archive)
	set(&cfg.Log.Level, o.logLevel)
	set(&cfg.Log.Format, o.logFormat)
	return cfg
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	opts, err := parseFlags(args, stderr)
	if err != nil {
		return err
	}

	cfg, err := config.LoadRun(opts.configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	cfg = opts.apply(cfg)
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logging.Init(logging.Config{Level: cfg.Log.Level, Format: cfg.Log.Format, Output: stderr})

	if opts.runs > 0 {
		return listRuns(ctx, cfg.Archive.Path, opts.runs, stdout)
	}

	started := time.Now()
	policy, err := cfg.LoadPolicyFor()
	if err != nil {
		return fmt.Errorf("load policy: %w", err)
	}

	docs, err := ingest.LoadFile(cfg.Input)
	if err != nil {
		return fmt.Errorf("load input: %w", err)
	}
	logging.Info().Str("input", cfg.Input).Int("documents", len(docs)).Msg("loaded annotations")

	res, err := annotate.New(policy).Reconcile(docs)
	if err != nil {
		return err
	}
	// Computed before any report is written: a run without annotations is fatal.
	summary, err := res.Summary()
	if err != nil {
		return err
	}

	if err := report.WriteFile(cfg.Output.TSV, func(w io.Writer) error {
		return report.WriteTSV(w, res.Divergent)
	}); err != nil {
		return fmt.Errorf("write divergence table: %w", err)
	}
	logging.Info().Str("path", cfg.Output.TSV).Int("rows", len(res.Divergent)).Msg("wrote divergence table")

	if err := report.WriteFile(cfg.Output.HTML, func(w io.Writer) error {
		return report.WriteHTML(w, res.Documents, res.ByDocument)
	}); err != nil {
		return fmt.Errorf("write html report: %w", err)
	}
	logging.Info().Str("path", cfg.Output.HTML).Msg("wrote html report")

	if cfg.Output.SummaryJSON != "" {
		if err := report.WriteFile(cfg.Output.SummaryJSON, func(w io.Writer) error {
			return report.WriteSummaryJSON(w, summary, res.Stats)
		}); err != nil {
			return fmt.Errorf("write summary json: %w", err)
		}
	}

	for _, name := range res.Stats.DomainNames() {
		ds := res.Stats.Domains[name]
		logging.Info().
			Str("domain", name).
			Int64("reconciled", ds.Reconciled).
			Int64("tie_break", ds.TieBreak).
			Float64("complete_agreement", ds.CompleteAgreement()).
			Msg("domain agreement")
	}
	for _, out := range res.Unresolved() {
		logging.Warn().
			Str("document", string(out.Annotation.DocumentID)).
			Str("anchor", string(out.Annotation.Anchor)).
			Msg("divergent annotation left without a final label")
	}
	for _, pa := range res.Stats.Pairs {
		logging.Debug().
			Str("a", string(pa.A)).
			Str("b", string(pa.B)).
			Int64("shared", pa.Shared).
			Float64("rate", pa.Rate()).
			Msg("pair agreement")
	}

	if cfg.Archive.Path != "" {
		st, err := sqlite.OpenSQLite(ctx, cfg.Archive.Path)
		if err != nil {
			return fmt.Errorf("open archive: %w", err)
		}
		defer st.Close()
		id, err := archive(ctx, st, store.NewIDs(), started, cfg.Input, res)
		if err != nil {
			return err
		}
		logging.Info().Str("run", id).Str("archive", cfg.Archive.Path).Msg("archived run")
	}

	return summary.WriteText(stdout)
}

func archive(ctx context.Context, st store.Store, ids *store.IDs, started time.Time, input string, res *annotate.Result) (string, error) {
	r := store.NewRun(ids.New(started), started, input, res.Outcomes)
	if err := st.SaveRun(ctx, r); err != nil {
		return "", fmt.Errorf("archive run: %w", err)
	}
	return r.ID, nil
}

func listRuns(ctx context.Context, path string, limit int, stdout io.Writer) error {
	if path == "" {
		return fmt.Errorf("-runs needs an archive path")
	}
	st, err := sqlite.OpenSQLite(ctx, path)
	if err != nil {
		return fmt.Errorf("open archive: %w", err)
	}
	defer st.Close()
	return printRuns(ctx, st, limit, stdout)
}

func printRuns(ctx context.Context, st store.Store, limit int, stdout io.Writer) error {
	runs, err := st.ListRuns(ctx, limit)
	if err != nil {
		return fmt.Errorf("list runs: %w", err)
	}
	tw := tabwriter.NewWriter(stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "RUN\tSTARTED\tINPUT\tTOTAL\tNON-DIVERGENT\tDIVERGENT\tMAJORITY")
	for _, r := range runs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d\t%d\t%d\n",
			r.ID, r.StartedAt.Format(time.RFC3339), r.Input, r.Total, r.NonDivergent, r.Divergent, r.Majority)
	}
	return tw.Flush()
}
