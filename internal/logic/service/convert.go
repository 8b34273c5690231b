package service

import (
	"github.com/unclewu3242592726/tritalk/internal/types"
	"github.com/unclewu3242592726/tritalk/pkg/model"
	"github.com/unclewu3242592726/tritalk/pkg/provider"
)

// toProviderInfos also reports which agents each chat provider serves.
func toProviderInfos(providers []provider.ProviderInfo, agents []model.Agent) []types.ProviderInfo {
	// 空列表也返回 []
	infos := make([]types.ProviderInfo, 0, len(providers))
	for _, p := range providers {
		infos = append(infos, toProviderInfo(p, agents))
	}
	return infos
}

func toProviderInfo(p provider.ProviderInfo, agents []model.Agent) types.ProviderInfo {
	info := types.ProviderInfo{
		Name:         p.Name,
		Type:         p.Type,
		Status:       p.Status,
		Capabilities: p.Capabilities,
		Config:       p.Config,
	}
	if p.Type != provider.TypeLLM {
		return info
	}
	for _, a := range agents {
		if a.Provider == p.Name {
			info.Agents = append(info.Agents, int(a.ID))
		}
	}
	return info
}
