package speech

import (
	"net/http"

	"github.com/unclewu3242592726/tritalk/internal/logic/speech"
	"github.com/unclewu3242592726/tritalk/internal/svc"
	"github.com/zeromicro/go-zero/rest/httpx"
)

func StartSpeechHandler(svcCtx *svc.ServiceContext) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		l := speech.NewStartSpeechLogic(r.Context(), svcCtx)
		resp, err := l.StartSpeech()
		if err != nil {
			httpx.ErrorCtx(r.Context(), w, err)
		} else {
			httpx.OkJsonCtx(r.Context(), w, resp)
		}
	}
}
