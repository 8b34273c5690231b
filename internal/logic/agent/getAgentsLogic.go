package agent

import (
	"context"

	"github.com/unclewu3242592726/tritalk/internal/svc"
	"github.com/unclewu3242592726/tritalk/internal/types"

	"github.com/zeromicro/go-zero/core/logx"
)

type GetAgentsLogic struct {
	logx.Logger
	ctx    context.Context
	svcCtx *svc.ServiceContext
}

func NewGetAgentsLogic(ctx context.Context, svcCtx *svc.ServiceContext) *GetAgentsLogic {
	return &GetAgentsLogic{
		Logger: logx.WithContext(ctx),
		ctx:    ctx,
		svcCtx: svcCtx,
	}
}

func (l *GetAgentsLogic) GetAgents() (resp *types.AgentListResponse, err error) {
	return &types.AgentListResponse{
		Code:    0,
		Message: "success",
		Data:    l.svcCtx.Conversation.Agents(),
	}, nil
}

