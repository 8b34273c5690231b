package agent

import (
	"net/http"

	"github.com/unclewu3242592726/tritalk/internal/logic/agent"
	"github.com/unclewu3242592726/tritalk/internal/svc"
	"github.com/zeromicro/go-zero/rest/httpx"
)

func GetAgentsHandler(svcCtx *svc.ServiceContext) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		l := agent.NewGetAgentsLogic(r.Context(), svcCtx)
		resp, err := l.GetAgents()
		if err != nil {
			httpx.ErrorCtx(r.Context(), w, err)
		} else {
			httpx.OkJsonCtx(r.Context(), w, resp)
		}
	}
}
