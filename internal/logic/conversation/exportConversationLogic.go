package conversation

import (
	"context"

	"github.com/unclewu3242592726/tritalk/internal/errorx"
	"github.com/unclewu3242592726/tritalk/internal/export"
	"github.com/unclewu3242592726/tritalk/internal/svc"
	"github.com/unclewu3242592726/tritalk/internal/types"
	"github.com/unclewu3242592726/tritalk/pkg/model"

	"github.com/zeromicro/go-zero/core/logx"
)

type ExportConversationLogic struct {
	logx.Logger
	ctx    context.Context
	svcCtx *svc.ServiceContext
}

func NewExportConversationLogic(ctx context.Context, svcCtx *svc.ServiceContext) *ExportConversationLogic {
	return &ExportConversationLogic{
		Logger: logx.WithContext(ctx),
		ctx:    ctx,
		svcCtx: svcCtx,
	}
}

// ExportConversation renders the shared transcript, or one agent's memory
// when an agent is given.
func (l *ExportConversationLogic) ExportConversation(req *types.ExportRequest) (export.Exporter, *export.Transcript, error) {
	exporter, err := export.NewExporter(req.Format)
	if err != nil {
		return nil, nil, errorx.BadRequest(err.Error())
	}

	var tr *export.Transcript
	if req.Agent != 0 {
		id := model.AgentID(req.Agent)
		agent, err := l.svcCtx.Conversation.Agent(id)
		if err != nil {
			return nil, nil, err
		}
		h, err := l.svcCtx.Conversation.History(id)
		if err != nil {
			return nil, nil, err
		}
		tr = export.FromHistory(agent, h)
	} else {
		tr = export.FromMessages(l.svcCtx.Config.Name, l.svcCtx.Conversation.Transcript())
	}
	return exporter, tr, nil
}

