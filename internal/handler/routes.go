// Code scaffolded by goctl. Edited by hand afterwards.

package handler

import (
	"net/http"
	"time"

	agent "github.com/unclewu3242592726/tritalk/internal/handler/agent"
	conversation "github.com/unclewu3242592726/tritalk/internal/handler/conversation"
	health "github.com/unclewu3242592726/tritalk/internal/handler/health"
	service "github.com/unclewu3242592726/tritalk/internal/handler/service"
	speech "github.com/unclewu3242592726/tritalk/internal/handler/speech"
	stream "github.com/unclewu3242592726/tritalk/internal/handler/stream"
	"github.com/unclewu3242592726/tritalk/internal/svc"

	"github.com/zeromicro/go-zero/rest"
)

func RegisterHandlers(server *rest.Server, serverCtx *svc.ServiceContext) {
	server.AddRoutes(
		[]rest.Route{
			{
				Method:  http.MethodGet,
				Path:    "/health",
				Handler: health.HealthHandler(serverCtx),
			},
		},
		rest.WithPrefix("/api"),
	)

	server.AddRoutes(
		[]rest.Route{
			{
				Method:  http.MethodGet,
				Path:    "/providers",
				Handler: service.GetServicesHandler(serverCtx),
			},
			{
				Method:  http.MethodGet,
				Path:    "/providers/:type",
				Handler: service.GetServicesByTypeHandler(serverCtx),
			},
			{
				Method:  http.MethodGet,
				Path:    "/providers/:type/:name",
				Handler: service.GetServiceStatusHandler(serverCtx),
			},
		},
		rest.WithPrefix("/api"),
	)

	server.AddRoutes(
		[]rest.Route{
			{
				Method:  http.MethodGet,
				Path:    "/agents",
				Handler: agent.GetAgentsHandler(serverCtx),
			},
			{
				Method:  http.MethodGet,
				Path:    "/agents/:id",
				Handler: agent.GetAgentHandler(serverCtx),
			},
			{
				Method:  http.MethodPut,
				Path:    "/agents/:id/provider",
				Handler: agent.SelectProviderHandler(serverCtx),
			},
			{
				Method:  http.MethodPost,
				Path:    "/agents/:id/pause",
				Handler: agent.PauseAgentHandler(serverCtx),
			},
			{
				Method:  http.MethodPost,
				Path:    "/agents/:id/resume",
				Handler: agent.ResumeAgentHandler(serverCtx),
			},
			{
				Method:  http.MethodPost,
				Path:    "/agents/:id/activate",
				Handler: agent.ActivateAgentHandler(serverCtx),
			},
			{
				Method:  http.MethodGet,
				Path:    "/agents/:id/history",
				Handler: agent.GetAgentHistoryHandler(serverCtx),
			},
		},
		rest.WithPrefix("/api"),
	)

	server.AddRoutes(
		[]rest.Route{
			{
				Method:  http.MethodGet,
				Path:    "/conversation/state",
				Handler: conversation.GetStateHandler(serverCtx),
			},
			{
				Method:  http.MethodPost,
				Path:    "/conversation/pause",
				Handler: conversation.SetPauseHandler(serverCtx),
			},
			{
				Method:  http.MethodPost,
				Path:    "/conversation/human",
				Handler: conversation.PostHumanHandler(serverCtx),
			},
			{
				Method:  http.MethodDelete,
				Path:    "/conversation",
				Handler: conversation.ResetConversationHandler(serverCtx),
			},
			{
				Method:  http.MethodGet,
				Path:    "/conversation/export",
				Handler: conversation.ExportConversationHandler(serverCtx),
			},
		},
		rest.WithPrefix("/api"),
	)

	server.AddRoutes(
		[]rest.Route{
			{
				Method:  http.MethodPost,
				Path:    "/speech/start",
				Handler: speech.StartSpeechHandler(serverCtx),
			},
			{
				Method:  http.MethodPost,
				Path:    "/speech/audio",
				Handler: speech.AppendAudioHandler(serverCtx),
			},
			{
				Method:  http.MethodPost,
				Path:    "/speech/stop",
				Handler: speech.StopSpeechHandler(serverCtx),
			},
		},
		rest.WithPrefix("/api"),
		rest.WithTimeout(2*time.Minute),
		rest.WithMaxBytes(16<<20),
	)

	server.AddRoutes(
		[]rest.Route{
			{
				Method:  http.MethodGet,
				Path:    "/ws",
				Handler: stream.StreamHandler(serverCtx),
			},
		},
	)
}
