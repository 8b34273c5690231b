package agent

import (
	"context"

	"github.com/unclewu3242592726/tritalk/internal/svc"
	"github.com/unclewu3242592726/tritalk/internal/types"
	"github.com/unclewu3242592726/tritalk/pkg/model"

	"github.com/zeromicro/go-zero/core/logx"
)

type ActivateAgentLogic struct {
	logx.Logger
	ctx    context.Context
	svcCtx *svc.ServiceContext
}

func NewActivateAgentLogic(ctx context.Context, svcCtx *svc.ServiceContext) *ActivateAgentLogic {
	return &ActivateAgentLogic{
		Logger: logx.WithContext(ctx),
		ctx:    ctx,
		svcCtx: svcCtx,
	}
}

// ActivateAgent is the HTTP twin of the number keys. While a turn runs the
// request waits in the pending slot; while paused it is dropped.
func (l *ActivateAgentLogic) ActivateAgent(req *types.AgentRequest) (resp *types.StateResponse, err error) {
	if err := l.svcCtx.Conversation.Activate(model.AgentID(req.ID)); err != nil {
		return nil, err
	}
	return &types.StateResponse{Code: 0, Message: "accepted", Data: l.svcCtx.Conversation.State()}, nil
}

