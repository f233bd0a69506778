package main

import (
	"encoding/json"

	"github.com/spf13/cobra"
)

// writeJSON encodes v as indented JSON to the command's stdout.
func writeJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

type itemSummary struct {
	ID            string  `json:"id"`
	Source        string  `json:"source"`
	Status        string  `json:"status"`
	Result        string  `json:"result,omitempty"`
	FailureReason string  `json:"failure_reason,omitempty"`
	Attempt       int     `json:"attempt"`
	ByteSize      int64   `json:"byte_size"`
	Progress      float64 `json:"progress"`
}

type batchSummary struct {
	Items     []itemSummary `json:"items"`
	Completed int           `json:"completed"`
	Failed    int           `json:"failed"`
	Exported  []string      `json:"exported"`
}
