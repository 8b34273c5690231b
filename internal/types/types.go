// Code scaffolded by goctl. Edited by hand afterwards.

package types

import "github.com/unclewu3242592726/tritalk/pkg/model"

type HealthResponse struct {
	Status    string `json:"status"`
	Timestamp int64  `json:"timestamp"`
	Agents    int    `json:"agents"`
	Clients   int    `json:"clients"`
}

type ProviderInfo struct {
	Name         string            `json:"name"`
	Type         string            `json:"type"`
	Status       string            `json:"status"`
	Capabilities []string          `json:"capabilities,omitempty"`
	Config       map[string]string `json:"config,omitempty"`
	Agents       []int             `json:"agents,omitempty"`
}

type ServiceListResponse struct {
	Code    int            `json:"code"`
	Message string         `json:"message"`
	Data    []ProviderInfo `json:"data"`
}

type ServiceStatusResponse struct {
	Code    int          `json:"code"`
	Message string       `json:"message"`
	Data    ProviderInfo `json:"data,omitempty"`
}

type ServicesByTypeRequest struct {
	Type string `path:"type"`
}

type ServiceStatusRequest struct {
	Type string `path:"type"`
	Name string `path:"name"`
}

type AgentRequest struct {
	ID int `path:"id"`
}

type SelectProviderRequest struct {
	ID       int    `path:"id"`
	Provider string `json:"provider"`
	Model    string `json:"model,optional"`
}

type AgentListResponse struct {
	Code    int           `json:"code"`
	Message string        `json:"message"`
	Data    []model.Agent `json:"data"`
}

type AgentResponse struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    model.Agent `json:"data"`
}

type HistoryEntry struct {
	Role    string         `json:"role"`
	Message *model.Message `json:"message"`
}

type HistoryResponse struct {
	Code    int            `json:"code"`
	Message string         `json:"message"`
	Data    []HistoryEntry `json:"data"`
}

type PauseRequest struct {
	Paused bool `json:"paused,optional"`
	Toggle bool `json:"toggle,optional"`
}

type HumanMessageRequest struct {
	Text  string `json:"text,optional"`
	Image string `json:"image,optional"`
}

type MessageResponse struct {
	Code    int            `json:"code"`
	Message string         `json:"message"`
	Data    *model.Message `json:"data,omitempty"`
}

type StateResponse struct {
	Code    int                   `json:"code"`
	Message string                `json:"message"`
	Data    model.ActivationState `json:"data"`
}

type ExportRequest struct {
	Format string `form:"format,default=md"`
	Agent  int    `form:"agent,optional"`
}

type SpeechStatusResponse struct {
	Code      int    `json:"code"`
	Message   string `json:"message"`
	Recording bool   `json:"recording"`
}

type AckResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}
