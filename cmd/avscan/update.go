package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

// newUpdateCmd creates the signature-update subcommand.
func newUpdateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "update",
		Short: "Refresh the detection engine's signature database",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			b, err := newBundle()
			if err != nil {
				return err
			}
			defer closeBundle(b)

			ctx := cmd.Context()
			if !b.detect.IsAvailable(ctx) {
				return fmt.Errorf("detection backend is not available")
			}
			updated, err := b.detect.UpdateSignatures(ctx)
			if err != nil {
				return err
			}
			_, version, err := b.detect.EngineVersion(ctx)
			if err != nil {
				return err
			}
			b.engine.SetSignatureVersion(version)
			if updated {
				fmt.Printf("signatures updated, now at %s\n", version)
			} else {
				fmt.Printf("signatures already current at %s\n", version)
			}
			return nil
		},
	}
}
