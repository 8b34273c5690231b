package service

import (
	"context"

	"github.com/unclewu3242592726/tritalk/internal/svc"
	"github.com/unclewu3242592726/tritalk/internal/types"

	"github.com/zeromicro/go-zero/core/logx"
)

type GetServicesLogic struct {
	logx.Logger
	ctx    context.Context
	svcCtx *svc.ServiceContext
}

func NewGetServicesLogic(ctx context.Context, svcCtx *svc.ServiceContext) *GetServicesLogic {
	return &GetServicesLogic{
		Logger: logx.WithContext(ctx),
		ctx:    ctx,
		svcCtx: svcCtx,
	}
}

func (l *GetServicesLogic) GetServices() (resp *types.ServiceListResponse, err error) {
	return &types.ServiceListResponse{
		Code:    0,
		Message: "success",
		Data:    toProviderInfos(l.svcCtx.Registry.GetAllProviders(), l.svcCtx.Roster.Snapshots()),
	}, nil
}
