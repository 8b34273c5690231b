package agent

import (
	"net/http"

	"github.com/unclewu3242592726/tritalk/internal/errorx"
	"github.com/unclewu3242592726/tritalk/internal/logic/agent"
	"github.com/unclewu3242592726/tritalk/internal/svc"
	"github.com/unclewu3242592726/tritalk/internal/types"
	"github.com/zeromicro/go-zero/rest/httpx"
)

func PauseAgentHandler(svcCtx *svc.ServiceContext) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req types.AgentRequest
		if err := httpx.Parse(r, &req); err != nil {
			httpx.ErrorCtx(r.Context(), w, errorx.BadRequest(err.Error()))
			return
		}

		l := agent.NewPauseAgentLogic(r.Context(), svcCtx)
		resp, err := l.PauseAgent(&req)
		if err != nil {
			httpx.ErrorCtx(r.Context(), w, err)
		} else {
			httpx.OkJsonCtx(r.Context(), w, resp)
		}
	}
}
