package conversation

import (
	"net/http"

	"github.com/unclewu3242592726/tritalk/internal/logic/conversation"
	"github.com/unclewu3242592726/tritalk/internal/svc"
	"github.com/zeromicro/go-zero/rest/httpx"
)

func ResetConversationHandler(svcCtx *svc.ServiceContext) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		l := conversation.NewResetConversationLogic(r.Context(), svcCtx)
		resp, err := l.ResetConversation()
		if err != nil {
			httpx.ErrorCtx(r.Context(), w, err)
		} else {
			httpx.OkJsonCtx(r.Context(), w, resp)
		}
	}
}
