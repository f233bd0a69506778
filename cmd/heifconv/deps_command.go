package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"heifconv/internal/deps"
)

func newDepsCommand(cmdCtx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "deps",
		Short: "Check external tool availability",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := cmdCtx.ensureConfig()
			if err != nil {
				return err
			}

			statuses := deps.CheckBinaries(deps.Default(cfg.Codec.Binary))
			rows := make([][]string, 0, len(statuses))
			missing := 0
			for _, status := range statuses {
				state := "found"
				if !status.Available {
					state = "missing"
					if !status.Optional {
						missing++
					}
				}
				rows = append(rows, []string{status.Name, status.Command, state, status.Detail})
			}

			fmt.Fprintln(cmd.OutOrStdout(), renderTable(
				[]string{"Dependency", "Binary", "Status", "Detail"},
				rows,
				[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft},
			))

			if missing > 0 {
				return fmt.Errorf("%d required dependency(ies) missing", missing)
			}
			return nil
		},
	}
}
