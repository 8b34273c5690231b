package cmd

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"github.com/unclewu3242592726/tritalk/internal/export"
	"github.com/unclewu3242592726/tritalk/internal/svc"
	"github.com/unclewu3242592726/tritalk/pkg/model"
	"github.com/zeromicro/go-zero/core/logx"
)

var (
	format    string
	agentID   int
	outputDir string
)

// exportCmd represents the export command
var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export the stored conversation",
	Long: `Export the conversation kept in the history backend to jsonl, md, yaml or json.

By default the shared transcript is written. With --agent the export is that
agent's own memory, including who said what from its point of view. The
server does not need to be running.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		logx.Disable()
		c, err := loadConfig()
		if err != nil {
			return err
		}
		exporter, err := export.NewExporter(format)
		if err != nil {
			return err
		}

		agents := svc.Agents(c)
		history, err := svc.OpenHistory(c, agents)
		if err != nil {
			return err
		}
		defer history.Close()

		var tr *export.Transcript
		if agentID != 0 {
			var agent *model.Agent
			for i := range agents {
				if agents[i].ID == model.AgentID(agentID) {
					agent = &agents[i]
				}
			}
			if agent == nil {
				return fmt.Errorf("unknown agent %d", agentID)
			}
			h, err := history.Get(agent.ID)
			if err != nil {
				return err
			}
			tr = export.FromHistory(*agent, h)
		} else {
			tr = export.FromMessages(c.Name, history.Transcript())
		}

		var w io.Writer = cmd.OutOrStdout()
		if outputDir != "" {
			if err := os.MkdirAll(outputDir, 0o755); err != nil {
				return fmt.Errorf("failed to create output directory: %w", err)
			}
			name := fmt.Sprintf("conversation-%s.%s", time.Now().Format("20060102-150405"), exporter.Extension())
			if agentID != 0 {
				name = fmt.Sprintf("agent-%d-%s.%s", agentID, time.Now().Format("20060102-150405"), exporter.Extension())
			}
			path := filepath.Join(outputDir, name)
			f, err := os.Create(path)
			if err != nil {
				return fmt.Errorf("failed to create %s: %w", path, err)
			}
			defer f.Close()
			w = f
			defer fmt.Fprintf(cmd.ErrOrStderr(), "Exported %d messages to %s\n", len(tr.Records), path)
		}
		return exporter.Export(tr, w)
	},
}

func init() {
	exportCmd.Flags().StringVar(&format, "format", "md", "Export format (jsonl, md, yaml, json)")
	exportCmd.Flags().IntVar(&agentID, "agent", 0, "Export one agent's memory instead of the transcript")
	exportCmd.Flags().StringVarP(&outputDir, "out", "o", "", "Write to a file in this directory instead of stdout")
}
