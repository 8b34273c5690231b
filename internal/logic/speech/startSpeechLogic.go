package speech

import (
	"context"

	"github.com/unclewu3242592726/tritalk/internal/svc"
	"github.com/unclewu3242592726/tritalk/internal/types"

	"github.com/zeromicro/go-zero/core/logx"
)

type StartSpeechLogic struct {
	logx.Logger
	ctx    context.Context
	svcCtx *svc.ServiceContext
}

func NewStartSpeechLogic(ctx context.Context, svcCtx *svc.ServiceContext) *StartSpeechLogic {
	return &StartSpeechLogic{
		Logger: logx.WithContext(ctx),
		ctx:    ctx,
		svcCtx: svcCtx,
	}
}

func (l *StartSpeechLogic) StartSpeech() (resp *types.SpeechStatusResponse, err error) {
	if err := l.svcCtx.Conversation.StartRecording(); err != nil {
		return nil, err
	}
	return &types.SpeechStatusResponse{Code: 0, Message: "recording", Recording: true}, nil
}

