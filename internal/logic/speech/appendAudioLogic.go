package speech

import (
	"context"

	"github.com/unclewu3242592726/tritalk/internal/svc"
	"github.com/unclewu3242592726/tritalk/internal/types"

	"github.com/zeromicro/go-zero/core/logx"
)

type AppendAudioLogic struct {
	logx.Logger
	ctx    context.Context
	svcCtx *svc.ServiceContext
}

func NewAppendAudioLogic(ctx context.Context, svcCtx *svc.ServiceContext) *AppendAudioLogic {
	return &AppendAudioLogic{
		Logger: logx.WithContext(ctx),
		ctx:    ctx,
		svcCtx: svcCtx,
	}
}

func (l *AppendAudioLogic) AppendAudio(data []byte) (resp *types.SpeechStatusResponse, err error) {
	if err := l.svcCtx.Conversation.AppendAudio(data); err != nil {
		return nil, err
	}
	return &types.SpeechStatusResponse{Code: 0, Message: "success", Recording: true}, nil
}

