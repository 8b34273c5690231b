package speech

import (
	"io"
	"net/http"

	"github.com/unclewu3242592726/tritalk/internal/errorx"
	"github.com/unclewu3242592726/tritalk/internal/logic/speech"
	"github.com/unclewu3242592726/tritalk/internal/svc"
	"github.com/zeromicro/go-zero/rest/httpx"
)

// maxChunk bounds one uploaded audio chunk.
const maxChunk = 8 << 20

// AppendAudioHandler takes the raw audio bytes as the request body.
func AppendAudioHandler(svcCtx *svc.ServiceContext) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		data, err := io.ReadAll(io.LimitReader(r.Body, maxChunk+1))
		if err != nil {
			httpx.ErrorCtx(r.Context(), w, errorx.BadRequest(err.Error()))
			return
		}
		if len(data) > maxChunk {
			httpx.ErrorCtx(r.Context(), w, errorx.New(http.StatusRequestEntityTooLarge, "audio chunk too large"))
			return
		}

		l := speech.NewAppendAudioLogic(r.Context(), svcCtx)
		resp, err := l.AppendAudio(data)
		if err != nil {
			httpx.ErrorCtx(r.Context(), w, err)
		} else {
			httpx.OkJsonCtx(r.Context(), w, resp)
		}
	}
}
