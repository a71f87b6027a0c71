package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/feichai0017/filter-reader/config"
	"github.com/feichai0017/filter-reader/internal/agent"
	"github.com/feichai0017/filter-reader/internal/filter"
	"github.com/feichai0017/filter-reader/internal/reader"
	"github.com/feichai0017/filter-reader/pkg/logger"
)

type cliOptions struct {
	pullSize int
	newline  string
	ext      string
	ocr      string
	verbose  bool
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCommand().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	opts := &cliOptions{}
	cmd := &cobra.Command{
		Use:           "extract",
		Short:         "Extract plain text from documents",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	flags := cmd.PersistentFlags()
	flags.IntVar(&opts.pullSize, "pull-size", 0, "runes requested from the filter per pull")
	flags.StringVar(&opts.newline, "newline", "", "separator inserted at sentence and paragraph breaks")
	flags.StringVar(&opts.ocr, "ocr", "", "ocr engine: tesseract, textract or none")
	flags.BoolVarP(&opts.verbose, "verbose", "v", false, "log filter activity to stderr")

	cmd.AddCommand(newTextCommand(opts), newLinesCommand(opts), newFiltersCommand(opts))
	return cmd
}

func newTextCommand(opts *cliOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "text [file]",
		Short: "Print the whole text of a document",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withReader(cmd.Context(), opts, args, func(rd *reader.Reader) error {
				_, err := rd.WriteTo(cmd.OutOrStdout())
				return err
			})
		},
	}
	cmd.Flags().StringVar(&opts.ext, "ext", "", "extension of stdin input; detected from content when empty")
	return cmd
}

func newLinesCommand(opts *cliOptions) *cobra.Command {
	var number bool
	cmd := &cobra.Command{
		Use:   "lines [file]",
		Short: "Print a document line by line",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withReader(cmd.Context(), opts, args, func(rd *reader.Reader) error {
				out := cmd.OutOrStdout()
				for n := 1; ; n++ {
					line, err := rd.ReadLine()
					if errors.Is(err, io.EOF) {
						return nil
					}
					if err != nil {
						return err
					}
					if number {
						fmt.Fprintf(out, "%6d\t%s\n", n, line)
					} else {
						fmt.Fprintln(out, line)
					}
				}
			})
		},
	}
	cmd.Flags().StringVar(&opts.ext, "ext", "", "extension of stdin input; detected from content when empty")
	cmd.Flags().BoolVarP(&number, "number", "n", false, "prefix lines with their number")
	return cmd
}

func newFiltersCommand(opts *cliOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "filters [ext...]",
		Short: "List registered extensions or check specific ones",
		RunE: func(cmd *cobra.Command, args []string) error {
			reg, _, _, err := setup(cmd.Context(), opts)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(args) == 0 {
				for _, ext := range reg.Extensions() {
					fmt.Fprintln(out, ext)
				}
				return nil
			}
			for _, ext := range args {
				fmt.Fprintf(out, "%s\t%t\n", ext, reader.IsFilterAvailable(reg, ext))
			}
			return nil
		},
	}
}

func setup(ctx context.Context, opts *cliOptions) (*filter.Registry, []reader.Option, logger.Logger, error) {
	cfg, err := config.Get()
	if err != nil {
		return nil, nil, nil, err
	}
	if opts.ocr != "" {
		cfg.OCR.Engine = opts.ocr
	}

	level := "error"
	if opts.verbose {
		level = "debug"
	}
	log, err := logger.NewLogger(
		logger.WithLevel(level),
		logger.WithEncoding("console"),
		logger.WithOutputPaths([]string{"stderr"}),
	)
	if err != nil {
		return nil, nil, nil, err
	}

	reg, err := agent.NewFilterRegistry(ctx, cfg, log)
	if err != nil {
		return nil, nil, nil, err
	}

	pullSize := cfg.Reader.PullSize
	if opts.pullSize > 0 {
		pullSize = opts.pullSize
	}
	newline := cfg.Reader.Newline
	if opts.newline != "" {
		newline = unescape(opts.newline)
	}
	return reg, []reader.Option{
		reader.WithPullSize(pullSize),
		reader.WithNewline(newline),
		reader.WithLogger(log),
	}, log, nil
}

func withReader(ctx context.Context, opts *cliOptions, args []string, fn func(*reader.Reader) error) error {
	reg, readerOpts, log, err := setup(ctx, opts)
	if err != nil {
		return err
	}
	defer log.Sync()

	var rd *reader.Reader
	if len(args) == 0 || args[0] == "-" {
		rd, err = reader.OpenStream(ctx, reg, os.Stdin, opts.ext, readerOpts...)
	} else {
		path, absErr := filepath.Abs(args[0])
		if absErr != nil {
			return absErr
		}
		rd, err = reader.Open(ctx, reg, path, readerOpts...)
	}
	if err != nil {
		return err
	}
	defer rd.Close()
	return fn(rd)
}

func unescape(s string) string {
	return strings.NewReplacer(`\r`, "\r", `\n`, "\n", `\t`, "\t").Replace(s)
}
