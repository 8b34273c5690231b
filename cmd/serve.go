package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/unclewu3242592726/tritalk/internal/errorx"
	"github.com/unclewu3242592726/tritalk/internal/handler"
	"github.com/unclewu3242592726/tritalk/internal/svc"
	"github.com/zeromicro/go-zero/core/proc"
	"github.com/zeromicro/go-zero/rest"
	"github.com/zeromicro/go-zero/rest/httpx"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the conversation server",
	Long: `Run the HTTP API and the /ws stream that UI clients connect to.

Provider keys are read from the config file or from OPENAI_API_KEY,
ANTHROPIC_API_KEY, GOOGLE_API_KEY and ELEVENLABS_API_KEY.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := loadConfig()
		if err != nil {
			return err
		}

		server, err := rest.NewServer(c.RestConf)
		if err != nil {
			return err
		}
		defer server.Stop()

		httpx.SetErrorHandlerCtx(errorx.Handler)

		ctx, err := svc.New(c)
		if err != nil {
			return err
		}
		ctx.Start()
		proc.AddShutdownListener(ctx.Stop)
		handler.RegisterHandlers(server, ctx)

		fmt.Printf("Starting server at %s:%d...\n", c.Host, c.Port)
		server.Start()
		return nil
	},
}
