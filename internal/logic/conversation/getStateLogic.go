package conversation

import (
	"context"

	"github.com/unclewu3242592726/tritalk/internal/svc"
	"github.com/unclewu3242592726/tritalk/internal/types"

	"github.com/zeromicro/go-zero/core/logx"
)

type GetStateLogic struct {
	logx.Logger
	ctx    context.Context
	svcCtx *svc.ServiceContext
}

func NewGetStateLogic(ctx context.Context, svcCtx *svc.ServiceContext) *GetStateLogic {
	return &GetStateLogic{
		Logger: logx.WithContext(ctx),
		ctx:    ctx,
		svcCtx: svcCtx,
	}
}

func (l *GetStateLogic) GetState() (resp *types.StateResponse, err error) {
	return &types.StateResponse{Code: 0, Message: "success", Data: l.svcCtx.Conversation.State()}, nil
}

