package conversation

import (
	"context"

	"github.com/unclewu3242592726/tritalk/internal/svc"
	"github.com/unclewu3242592726/tritalk/internal/types"

	"github.com/zeromicro/go-zero/core/logx"
)

type SetPauseLogic struct {
	logx.Logger
	ctx    context.Context
	svcCtx *svc.ServiceContext
}

func NewSetPauseLogic(ctx context.Context, svcCtx *svc.ServiceContext) *SetPauseLogic {
	return &SetPauseLogic{
		Logger: logx.WithContext(ctx),
		ctx:    ctx,
		svcCtx: svcCtx,
	}
}

// SetPause changes the global pause flag. The scheduler applies it
// asynchronously, so the returned state may still show the old value.
func (l *SetPauseLogic) SetPause(req *types.PauseRequest) (resp *types.StateResponse, err error) {
	if req.Toggle {
		err = l.svcCtx.Conversation.TogglePause()
	} else {
		err = l.svcCtx.Conversation.SetPaused(req.Paused)
	}
	if err != nil {
		return nil, err
	}
	return &types.StateResponse{Code: 0, Message: "accepted", Data: l.svcCtx.Conversation.State()}, nil
}

