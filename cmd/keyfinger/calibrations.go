package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/ayusman/keyfinger/internal/calibration"
)

func calibrationsCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "calibrations",
		Aliases: []string{"cal"},
		Short:   "Inspect and transfer key calibrations",
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "list",
			Short: "List calibrated keys in recorded order",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return a.runList(cmd.OutOrStdout())
			},
		},
		&cobra.Command{
			Use:   "export [FILE]",
			Short: "Write calibrations in key,x,y line format",
			Long: `Write every calibration of the configured backend in key,x,y line format to
FILE, or to standard output when FILE is omitted or "-".`,
			Args: cobra.MaximumNArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				path := "-"
				if len(args) == 1 {
					path = args[0]
				}
				return a.runExport(cmd.OutOrStdout(), path)
			},
		},
		&cobra.Command{
			Use:   "import FILE",
			Short: "Record calibrations from a key,x,y line file",
			Long: `Record every well-formed line of FILE ("-" for standard input) into the
configured backend. Existing keys are overwritten; malformed lines are skipped.`,
			Args: cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return a.runImport(cmd.InOrStdin(), cmd.OutOrStdout(), args[0])
			},
		},
	)

	return cmd
}

func (a *app) runList(out io.Writer) error {
	cal, err := a.openCalibrations()
	if err != nil {
		return err
	}
	defer cal.Close()

	entries, err := cal.store.Entries()
	if err != nil {
		return err
	}

	if len(entries) == 0 {
		fmt.Fprintln(out, "No calibrations recorded")
		return nil
	}

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "KEY\tX\tY")
	for _, e := range entries {
		fmt.Fprintf(tw, "%s\t%d\t%d\n", e.Key, e.Position.X, e.Position.Y)
	}
	return tw.Flush()
}

func (a *app) runExport(stdout io.Writer, path string) error {
	cal, err := a.openCalibrations()
	if err != nil {
		return err
	}
	defer cal.Close()

	entries, err := cal.store.Entries()
	if err != nil {
		return err
	}

	if path == "-" {
		return calibration.Write(stdout, entries)
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := calibration.Write(f, entries); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}

	a.component("calibrations").WithField("entries", len(entries)).Infof("exported to %s", path)
	return nil
}

func (a *app) runImport(stdin io.Reader, out io.Writer, path string) error {
	in := stdin
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return err
		}
		defer f.Close()
		in = f
	}

	entries, skipped, err := calibration.Parse(in)
	if err != nil {
		return err
	}

	cal, err := a.openCalibrations()
	if err != nil {
		return err
	}
	defer cal.Close()

	for _, e := range entries {
		if err := cal.store.Record(e.Key, e.Position); err != nil {
			return fmt.Errorf("import %q: %w", e.Key, err)
		}
	}

	fmt.Fprintf(out, "Imported %d calibrations", len(entries))
	if skipped > 0 {
		fmt.Fprintf(out, " (%d malformed lines skipped)", skipped)
	}
	fmt.Fprintln(out)
	return nil
}
