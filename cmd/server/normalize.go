package main

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/boss-timer/backend/internal/analyzer"
	"github.com/boss-timer/backend/internal/models"
	"github.com/boss-timer/backend/internal/rules"
	"github.com/boss-timer/backend/internal/schedule"
)

type normalizeOptions struct {
	reference string
	fallback  string
	rulesFile string
	display   models.DisplayOptions
}

func newNormalizeCmd() *cobra.Command {
	opts := normalizeOptions{display: models.DisplayOptions{ShowSeconds: true}}

	cmd := &cobra.Command{
		Use:   "normalize [result.json]",
		Short: "Normalize an analysis result and print the exported schedule",
		Long: "Reads an analysis result ({referenceTime, bosses}) from a file or stdin, applies the\n" +
			"boss rules, orders the entries against the reference time and prints one\n" +
			"\"<time> <name>\" line per entry.",
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			in := cmd.InOrStdin()
			if len(args) == 1 && args[0] != "-" {
				f, err := os.Open(args[0])
				if err != nil {
					return err
				}
				defer f.Close()
				in = f
			}
			if opts.fallback == "" {
				opts.fallback = schedule.FormatClock(time.Now())
			}
			return runNormalize(afero.NewOsFs(), in, cmd.OutOrStdout(), opts)
		},
	}

	cmd.Flags().StringVar(&opts.reference, "reference", "", "reference time overriding the one in the result (HH:MM[:SS])")
	cmd.Flags().StringVar(&opts.fallback, "fallback", "", "fallback reference time (default: current local time)")
	cmd.Flags().StringVar(&opts.rulesFile, "rules", "", "boss rules YAML file (default: built-in rules)")
	cmd.Flags().BoolVar(&opts.display.Invasion, "invasion", false, "prefix names with the invasion marker")
	cmd.Flags().BoolVar(&opts.display.ShowSeconds, "seconds", true, "keep the seconds component of spawn times")
	return cmd
}

func runNormalize(fs afero.Fs, in io.Reader, out io.Writer, opts normalizeOptions) error {
	data, err := io.ReadAll(in)
	if err != nil {
		return fmt.Errorf("reading result: %w", err)
	}
	result, err := analyzer.DecodeResult(string(data))
	if err != nil {
		return err
	}

	r := rules.Default()
	if opts.rulesFile != "" {
		h, err := rules.NewHolder(fs, opts.rulesFile)
		if err != nil {
			return err
		}
		r = h.Get()
	}

	reference := result.ReferenceTime
	if opts.reference != "" {
		reference = opts.reference
	}
	sched := schedule.Normalize(reference, opts.fallback, rules.Apply(r, result.Bosses))
	text := schedule.ExportText(&sched, opts.display)
	if text == "" {
		return nil
	}
	_, err = fmt.Fprintln(out, text)
	return err
}
