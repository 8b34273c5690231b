package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/unclewu3242592726/tritalk/internal/config"
	"github.com/unclewu3242592726/tritalk/internal/console"
	"github.com/unclewu3242592726/tritalk/internal/keys"
	"github.com/zeromicro/go-zero/core/conf"
	"github.com/zeromicro/go-zero/core/logx"
)

var serverURL string

var consoleCmd = &cobra.Command{
	Use:   "console",
	Short: "Join a running conversation from the terminal",
	Long: `Connect to a running server and drive the conversation with the keyboard.

Outside of typing mode, number keys activate an agent, p toggles the pause
and r/s start and stop a recording. Press i to type a message.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		// the terminal belongs to the UI
		logx.Disable()

		url := serverURL
		keyConf := keys.Conf{}
		var c config.Config
		if err := conf.Load(configFile, &c); err == nil {
			keyConf = c.Keys
			if url == "" {
				url = fmt.Sprintf("ws://%s:%d/ws", dialHost(c.Host), c.Port)
			}
		} else if url == "" {
			return fmt.Errorf("load config %s: %w (or pass --server)", configFile, err)
		}
		return console.Run(cmd.Context(), url, keyConf)
	},
}

func dialHost(host string) string {
	if host == "" || host == "0.0.0.0" || host == "::" {
		return "127.0.0.1"
	}
	return host
}

func init() {
	consoleCmd.Flags().StringVar(&serverURL, "server", "", "websocket url of the server (default from config)")
}
