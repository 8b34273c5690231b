package speech

import (
	"net/http"

	"github.com/unclewu3242592726/tritalk/internal/logic/speech"
	"github.com/unclewu3242592726/tritalk/internal/svc"
	"github.com/zeromicro/go-zero/rest/httpx"
)

func StopSpeechHandler(svcCtx *svc.ServiceContext) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		l := speech.NewStopSpeechLogic(r.Context(), svcCtx)
		resp, err := l.StopSpeech()
		if err != nil {
			httpx.ErrorCtx(r.Context(), w, err)
		} else {
			httpx.OkJsonCtx(r.Context(), w, resp)
		}
	}
}
