package conversation

import (
	"fmt"
	"net/http"
	"time"

	"github.com/unclewu3242592726/tritalk/internal/errorx"
	"github.com/unclewu3242592726/tritalk/internal/logic/conversation"
	"github.com/unclewu3242592726/tritalk/internal/svc"
	"github.com/unclewu3242592726/tritalk/internal/types"
	"github.com/zeromicro/go-zero/core/logx"
	"github.com/zeromicro/go-zero/rest/httpx"
)

func ExportConversationHandler(svcCtx *svc.ServiceContext) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req types.ExportRequest
		if err := httpx.Parse(r, &req); err != nil {
			httpx.ErrorCtx(r.Context(), w, errorx.BadRequest(err.Error()))
			return
		}

		l := conversation.NewExportConversationLogic(r.Context(), svcCtx)
		exporter, tr, err := l.ExportConversation(&req)
		if err != nil {
			httpx.ErrorCtx(r.Context(), w, err)
			return
		}

		name := fmt.Sprintf("conversation-%s.%s", time.Now().Format("20060102-150405"), exporter.Extension())
		w.Header().Set("Content-Type", exporter.ContentType())
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
		if err := exporter.Export(tr, w); err != nil {
			logx.WithContext(r.Context()).Errorf("export failed: %v", err)
		}
	}
}
