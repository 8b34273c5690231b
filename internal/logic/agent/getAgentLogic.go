package agent

import (
	"context"

	"github.com/unclewu3242592726/tritalk/internal/svc"
	"github.com/unclewu3242592726/tritalk/internal/types"
	"github.com/unclewu3242592726/tritalk/pkg/model"

	"github.com/zeromicro/go-zero/core/logx"
)

type GetAgentLogic struct {
	logx.Logger
	ctx    context.Context
	svcCtx *svc.ServiceContext
}

func NewGetAgentLogic(ctx context.Context, svcCtx *svc.ServiceContext) *GetAgentLogic {
	return &GetAgentLogic{
		Logger: logx.WithContext(ctx),
		ctx:    ctx,
		svcCtx: svcCtx,
	}
}

func (l *GetAgentLogic) GetAgent(req *types.AgentRequest) (resp *types.AgentResponse, err error) {
	agent, err := l.svcCtx.Conversation.Agent(model.AgentID(req.ID))
	if err != nil {
		return nil, err
	}
	return &types.AgentResponse{Code: 0, Message: "success", Data: agent}, nil
}

