package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

// newQuarantineCmd creates the quarantine command group: list, restore,
// delete, cleanup.
func newQuarantineCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "quarantine",
		Short: "Inspect and manage quarantined files",
	}

	cmd.AddCommand(newQuarantineListCmd())
	cmd.AddCommand(newQuarantineRestoreCmd())
	cmd.AddCommand(newQuarantineDeleteCmd())
	cmd.AddCommand(newQuarantineCleanupCmd())

	return cmd
}

func newQuarantineListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List quarantined files",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			b, err := newBundle()
			if err != nil {
				return err
			}
			defer closeBundle(b)

			records := b.quarantine.List()
			tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tTHREAT\tSIZE\tQUARANTINED\tORIGINAL PATH")
			for _, r := range records {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
					r.ID, r.ThreatName, formatBytes(r.FileSize),
					r.QuarantinedAt.Format("2006-01-02 15:04:05"), r.OriginalPath)
			}
			return tw.Flush()
		},
	}
}

func newQuarantineRestoreCmd() *cobra.Command {
	var target string
	cmd := &cobra.Command{
		Use:   "restore <id>",
		Short: "Restore a quarantined file to its original location or --to",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			b, err := newBundle()
			if err != nil {
				return err
			}
			defer closeBundle(b)
			return b.quarantine.Restore(args[0], target)
		},
	}
	cmd.Flags().StringVar(&target, "to", "", "Destination path (defaults to the original path)")
	return cmd
}

func newQuarantineDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Permanently delete a quarantined file",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			b, err := newBundle()
			if err != nil {
				return err
			}
			defer closeBundle(b)
			return b.quarantine.Delete(args[0])
		},
	}
}

func newQuarantineCleanupCmd() *cobra.Command {
	var days int
	cmd := &cobra.Command{
		Use:   "cleanup",
		Short: "Delete quarantined files older than --days",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			b, err := newBundle()
			if err != nil {
				return err
			}
			defer closeBundle(b)
			n, err := b.quarantine.CleanupOlderThan(days)
			if err != nil {
				return err
			}
			fmt.Printf("removed %d quarantined file(s)\n", n)
			return nil
		},
	}
	cmd.Flags().IntVar(&days, "days", 30, "Retention period in days")
	return cmd
}
