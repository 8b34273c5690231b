package speech

import (
	"context"

	"github.com/unclewu3242592726/tritalk/internal/svc"
	"github.com/unclewu3242592726/tritalk/internal/types"

	"github.com/zeromicro/go-zero/core/logx"
)

type StopSpeechLogic struct {
	logx.Logger
	ctx    context.Context
	svcCtx *svc.ServiceContext
}

func NewStopSpeechLogic(ctx context.Context, svcCtx *svc.ServiceContext) *StopSpeechLogic {
	return &StopSpeechLogic{
		Logger: logx.WithContext(ctx),
		ctx:    ctx,
		svcCtx: svcCtx,
	}
}

// StopSpeech transcribes the recording and submits it as human speech.
func (l *StopSpeechLogic) StopSpeech() (resp *types.MessageResponse, err error) {
	msg, err := l.svcCtx.Conversation.StopAndSubmit(l.ctx)
	if err != nil && msg == nil {
		return nil, err
	}
	if err != nil {
		l.Errorf("speech message %s: %v", msg.ID, err)
		return &types.MessageResponse{Code: 0, Message: err.Error(), Data: msg}, nil
	}
	return &types.MessageResponse{Code: 0, Message: "success", Data: msg}, nil
}

