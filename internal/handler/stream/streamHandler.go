package stream

import (
	"context"
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/unclewu3242592726/tritalk/internal/svc"
	"github.com/zeromicro/go-zero/core/logx"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		// 允许跨域连接，生产环境中应该进行更严格的检查
		return true
	},
}

func StreamHandler(svcCtx *svc.ServiceContext) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logx.Errorf("WebSocket upgrade failed: %v", err)
			return
		}
		defer conn.Close()

		// the request context ends with the handler, commands may outlive it
		svcCtx.Hub.Serve(context.WithoutCancel(r.Context()), conn)
	}
}
