package agent

import (
	"context"

	"github.com/unclewu3242592726/tritalk/internal/svc"
	"github.com/unclewu3242592726/tritalk/internal/types"
	"github.com/unclewu3242592726/tritalk/pkg/model"

	"github.com/zeromicro/go-zero/core/logx"
)

type SelectProviderLogic struct {
	logx.Logger
	ctx    context.Context
	svcCtx *svc.ServiceContext
}

func NewSelectProviderLogic(ctx context.Context, svcCtx *svc.ServiceContext) *SelectProviderLogic {
	return &SelectProviderLogic{
		Logger: logx.WithContext(ctx),
		ctx:    ctx,
		svcCtx: svcCtx,
	}
}

// SelectProvider rebinds the agent; the next turn uses the new provider.
func (l *SelectProviderLogic) SelectProvider(req *types.SelectProviderRequest) (resp *types.AgentResponse, err error) {
	agent, err := l.svcCtx.Conversation.SelectProvider(model.AgentID(req.ID), req.Provider, req.Model)
	if err != nil {
		return nil, err
	}
	return &types.AgentResponse{Code: 0, Message: "success", Data: agent}, nil
}

