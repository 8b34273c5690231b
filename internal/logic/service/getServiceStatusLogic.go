package service

import (
	"context"

	"github.com/unclewu3242592726/tritalk/internal/errorx"
	"github.com/unclewu3242592726/tritalk/internal/svc"
	"github.com/unclewu3242592726/tritalk/internal/types"

	"github.com/zeromicro/go-zero/core/logx"
)

type GetServiceStatusLogic struct {
	logx.Logger
	ctx    context.Context
	svcCtx *svc.ServiceContext
}

func NewGetServiceStatusLogic(ctx context.Context, svcCtx *svc.ServiceContext) *GetServiceStatusLogic {
	return &GetServiceStatusLogic{
		Logger: logx.WithContext(ctx),
		ctx:    ctx,
		svcCtx: svcCtx,
	}
}

func (l *GetServiceStatusLogic) GetServiceStatus(req *types.ServiceStatusRequest) (resp *types.ServiceStatusResponse, err error) {
	info, err := l.svcCtx.Registry.GetProviderInfo(req.Type, req.Name)
	if err != nil {
		return nil, errorx.NotFound(err.Error())
	}

	return &types.ServiceStatusResponse{
		Code:    0,
		Message: "success",
		Data:    toProviderInfo(*info, l.svcCtx.Roster.Snapshots()),
	}, nil
}
