package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

var sendCmd = &cobra.Command{
	Use:   "send METHOD [PARAMS_JSON]",
	Short: "Run a handshake (if needed) and send one request",
	Args:  cobra.RangeArgs(1, 2),
	RunE:  runSend,
}

func runSend(cmd *cobra.Command, args []string) error {
	settings, err := resolvedSettings()
	if err != nil {
		return err
	}

	tr, err := buildTransport(settings)
	if err != nil {
		return err
	}
	defer tr.Close()

	ctx := cmd.Context()
	if tr.NeedsHandshake() {
		if err := tr.Handshake(ctx); err != nil {
			return fmt.Errorf("handshake: %w", err)
		}
	}

	request, err := buildRequest(args)
	if err != nil {
		return err
	}

	value, err := tr.Send(ctx, request)
	if err != nil {
		return fmt.Errorf("send: %w", err)
	}

	out, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return fmt.Errorf("encode response: %w", err)
	}
	fmt.Println(string(out))
	return nil
}

func buildRequest(args []string) (string, error) {
	method := args[0]
	payload := map[string]interface{}{"method": method}

	if len(args) == 2 {
		var params interface{}
		if err := json.Unmarshal([]byte(args[1]), &params); err != nil {
			return "", fmt.Errorf("parse PARAMS_JSON: %w", err)
		}
		payload["params"] = params
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("encode request: %w", err)
	}
	return string(raw), nil
}
