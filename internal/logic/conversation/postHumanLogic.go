package conversation

import (
	"context"

	"github.com/unclewu3242592726/tritalk/internal/svc"
	"github.com/unclewu3242592726/tritalk/internal/types"
	"github.com/unclewu3242592726/tritalk/pkg/model"

	"github.com/zeromicro/go-zero/core/logx"
)

type PostHumanLogic struct {
	logx.Logger
	ctx    context.Context
	svcCtx *svc.ServiceContext
}

func NewPostHumanLogic(ctx context.Context, svcCtx *svc.ServiceContext) *PostHumanLogic {
	return &PostHumanLogic{
		Logger: logx.WithContext(ctx),
		ctx:    ctx,
		svcCtx: svcCtx,
	}
}

func (l *PostHumanLogic) PostHuman(req *types.HumanMessageRequest) (resp *types.MessageResponse, err error) {
	var image *model.ImageRef
	if req.Image != "" {
		image = &model.ImageRef{URL: req.Image}
	}
	msg, err := l.svcCtx.Conversation.Submit(l.ctx, req.Text, image)
	if err != nil && msg == nil {
		return nil, err
	}
	if err != nil {
		// appended, but nobody was scheduled to answer
		l.Errorf("human message %s: %v", msg.ID, err)
		return &types.MessageResponse{Code: 0, Message: err.Error(), Data: msg}, nil
	}
	return &types.MessageResponse{Code: 0, Message: "success", Data: msg}, nil
}

