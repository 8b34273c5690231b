package agent

import (
	"context"

	"github.com/unclewu3242592726/tritalk/internal/svc"
	"github.com/unclewu3242592726/tritalk/internal/types"
	"github.com/unclewu3242592726/tritalk/pkg/model"

	"github.com/zeromicro/go-zero/core/logx"
)

type ResumeAgentLogic struct {
	logx.Logger
	ctx    context.Context
	svcCtx *svc.ServiceContext
}

func NewResumeAgentLogic(ctx context.Context, svcCtx *svc.ServiceContext) *ResumeAgentLogic {
	return &ResumeAgentLogic{
		Logger: logx.WithContext(ctx),
		ctx:    ctx,
		svcCtx: svcCtx,
	}
}

func (l *ResumeAgentLogic) ResumeAgent(req *types.AgentRequest) (resp *types.AgentResponse, err error) {
	id := model.AgentID(req.ID)
	if err := l.svcCtx.Conversation.ResumeAgent(id); err != nil {
		return nil, err
	}
	agent, err := l.svcCtx.Conversation.Agent(id)
	if err != nil {
		return nil, err
	}
	return &types.AgentResponse{Code: 0, Message: "success", Data: agent}, nil
}

