package conversation

import (
	"context"

	"github.com/unclewu3242592726/tritalk/internal/svc"
	"github.com/unclewu3242592726/tritalk/internal/types"

	"github.com/zeromicro/go-zero/core/logx"
)

type ResetConversationLogic struct {
	logx.Logger
	ctx    context.Context
	svcCtx *svc.ServiceContext
}

func NewResetConversationLogic(ctx context.Context, svcCtx *svc.ServiceContext) *ResetConversationLogic {
	return &ResetConversationLogic{
		Logger: logx.WithContext(ctx),
		ctx:    ctx,
		svcCtx: svcCtx,
	}
}

func (l *ResetConversationLogic) ResetConversation() (resp *types.AckResponse, err error) {
	if err := l.svcCtx.Conversation.Reset(l.ctx); err != nil {
		return nil, err
	}
	return &types.AckResponse{Code: 0, Message: "success"}, nil
}

