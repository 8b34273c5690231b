package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/unclewu3242592726/tritalk/internal/svc"
	"github.com/zeromicro/go-zero/core/logx"
)

var force bool

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Erase the stored conversation",
	Long: `Erase every agent's history from the configured backend. Run it while
the server is stopped; a running server keeps its in-memory copy.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if !force {
			return fmt.Errorf("refusing to erase history without --force")
		}
		logx.Disable()
		c, err := loadConfig()
		if err != nil {
			return err
		}
		history, err := svc.OpenHistory(c, svc.Agents(c))
		if err != nil {
			return err
		}
		defer history.Close()

		n := history.Len()
		if err := history.Reset(); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Erased %d messages\n", n)
		return nil
	},
}

func init() {
	resetCmd.Flags().BoolVar(&force, "force", false, "Confirm erasing the history")
}
