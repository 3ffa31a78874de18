package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var handshakeCmd = &cobra.Command{
	Use:   "handshake",
	Short: "Perform a handshake only, for connectivity and credential diagnostics",
	Args:  cobra.NoArgs,
	RunE:  runHandshake,
}

func runHandshake(cmd *cobra.Command, _ []string) error {
	settings, err := resolvedSettings()
	if err != nil {
		return err
	}

	tr, err := buildTransport(settings)
	if err != nil {
		return err
	}
	defer tr.Close()

	if err := tr.Handshake(cmd.Context()); err != nil {
		return fmt.Errorf("handshake: %w", err)
	}

	fmt.Printf("handshake OK: needs_handshake=%v\n", tr.NeedsHandshake())
	return nil
}
