package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/biirrr/llms-complex-leisure-search/internal/logging"
	"github.com/biirrr/llms-complex-leisure-search/pkg/annotate/report"
	"github.com/biirrr/llms-complex-leisure-search/pkg/annotate/sample"
)

func main() {
	if err := run(context.Background(), os.Args[1:], os.Stderr); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return
		}
		logging.Error().Err(err).Msg("sample failed")
		os.Exit(1)
	}
}

type options struct {
	dataDir   string
	vectors   string
	domains   string
	sources   string
	output    string
	size      int
	trials    int
	seed      uint64
	logLevel  string
	logFormat string
}

func parseFlags(args []string, stderr io.Writer) (options, error) {
	var opts options
	fs := flag.NewFlagSet("sample", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&opts.dataDir, "data", "data", "Data directory holding <domain>/first-posts_<source>.tsv")
	fs.StringVar(&opts.vectors, "vectors", "", "Relevance assessment TSV (default <data>/jdoc-relevance-assessments.tsv)")
	fs.StringVar(&opts.domains, "domains", "books,games,movies", "Comma-separated domains to sample")
	fs.StringVar(&opts.sources, "sources", "extra,jdoc", "Comma-separated first-post sources per domain")
	fs.StringVar(&opts.output, "output", "", "Output TSV (default <data>/final-sample.tsv)")
	fs.IntVar(&opts.size, "size", sample.DefaultSize, "Entries per domain")
	fs.IntVar(&opts.trials, "trials", sample.DefaultTrials, "Greedy trials per domain")
	fs.Uint64Var(&opts.seed, "seed", 0, "Random seed (0 uses the current time)")
	fs.StringVar(&opts.logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	fs.StringVar(&opts.logFormat, "log-format", "console", "Log format (console, json)")
	if err := fs.Parse(args); err != nil {
		return options{}, err
	}
	if opts.vectors == "" {
		opts.vectors = filepath.Join(opts.dataDir, "jdoc-relevance-assessments.tsv")
	}
	if opts.output == "" {
		opts.output = filepath.Join(opts.dataDir, "final-sample.tsv")
	}
	if opts.seed == 0 {
		opts.seed = uint64(time.Now().UnixNano())
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

	vectors, err := sample.LoadVectors(opts.vectors)
	if err != nil {
		return err
	}
	logging.Info().Str("path", opts.vectors).Int("vectors", len(vectors)).Msg("loaded assessments")

	sampler := sample.New(opts.seed)
	sampler.Size = opts.size
	sampler.Trials = opts.trials

	var final []sample.Entry
	for _, domain := range splitList(opts.domains) {
		if err := ctx.Err(); err != nil {
			return err
		}
		var paths []string
		for _, src := range splitList(opts.sources) {
			paths = append(paths, filepath.Join(opts.dataDir, domain, fmt.Sprintf("first-posts_%s.tsv", src)))
		}
		entries, err := sample.LoadEntries(paths...)
		if err != nil {
			return fmt.Errorf("domain %s: %w", domain, err)
		}

		selected, score := sampler.Select(entries, vectors)
		logging.Info().
			Str("domain", domain).
			Int("entries", len(entries)).
			Int("selected", len(selected)).
			Float64("mean_distance", score).
			Msg("sampled domain")
		final = append(final, selected...)
	}

	if err := report.WriteFile(opts.output, func(w io.Writer) error {
		return sample.WriteTSV(w, final)
	}); err != nil {
		return fmt.Errorf("write sample: %w", err)
	}
	logging.Info().Str("path", opts.output).Int("entries", len(final)).Uint64("seed", opts.seed).Msg("wrote sample")
	return nil
}
