package agent

import (
	"context"

	"github.com/unclewu3242592726/tritalk/internal/svc"
	"github.com/unclewu3242592726/tritalk/internal/types"
	"github.com/unclewu3242592726/tritalk/pkg/model"

	"github.com/zeromicro/go-zero/core/logx"
)

type GetAgentHistoryLogic struct {
	logx.Logger
	ctx    context.Context
	svcCtx *svc.ServiceContext
}

func NewGetAgentHistoryLogic(ctx context.Context, svcCtx *svc.ServiceContext) *GetAgentHistoryLogic {
	return &GetAgentHistoryLogic{
		Logger: logx.WithContext(ctx),
		ctx:    ctx,
		svcCtx: svcCtx,
	}
}

func (l *GetAgentHistoryLogic) GetAgentHistory(req *types.AgentRequest) (resp *types.HistoryResponse, err error) {
	h, err := l.svcCtx.Conversation.History(model.AgentID(req.ID))
	if err != nil {
		return nil, err
	}
	entries := make([]types.HistoryEntry, 0, len(h))
	for _, e := range h {
		entries = append(entries, types.HistoryEntry{Role: e.Role, Message: e.Message})
	}
	return &types.HistoryResponse{Code: 0, Message: "success", Data: entries}, nil
}

