package service

import (
	"context"

	"github.com/unclewu3242592726/tritalk/internal/errorx"
	"github.com/unclewu3242592726/tritalk/internal/svc"
	"github.com/unclewu3242592726/tritalk/internal/types"
	"github.com/unclewu3242592726/tritalk/pkg/provider"

	"github.com/zeromicro/go-zero/core/logx"
)

type GetServicesByTypeLogic struct {
	logx.Logger
	ctx    context.Context
	svcCtx *svc.ServiceContext
}

func NewGetServicesByTypeLogic(ctx context.Context, svcCtx *svc.ServiceContext) *GetServicesByTypeLogic {
	return &GetServicesByTypeLogic{
		Logger: logx.WithContext(ctx),
		ctx:    ctx,
		svcCtx: svcCtx,
	}
}

func (l *GetServicesByTypeLogic) GetServicesByType(req *types.ServicesByTypeRequest) (resp *types.ServiceListResponse, err error) {
	switch req.Type {
	case provider.TypeLLM, provider.TypeASR, provider.TypeTTS:
	default:
		return nil, errorx.BadRequest("unknown provider type " + req.Type)
	}

	return &types.ServiceListResponse{
		Code:    0,
		Message: "success",
		Data:    toProviderInfos(l.svcCtx.Registry.GetProvidersByType(req.Type), l.svcCtx.Roster.Snapshots()),
	}, nil
}
