package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/codebuildervaibhav/sponsorskip/internal/fingerprint"
	"github.com/codebuildervaibhav/sponsorskip/internal/resolver"
)

func newHashCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "hash [file]",
		Short: "Print the fingerprint of a subtitle document",
		Args:  cobra.MaximumNArgs(1),
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

			data, err := io.ReadAll(in)
			if err != nil {
				return fmt.Errorf("read transcript: %w", err)
			}
			text, err := resolver.DecodeText(data)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), fingerprint.Sum(text))
			return nil
		},
	}
}
