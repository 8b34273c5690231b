package errorx

import (
	"context"
	"errors"
	"net/http"

	"github.com/unclewu3242592726/tritalk/internal/conversation"
	"github.com/unclewu3242592726/tritalk/internal/engine"
	"github.com/unclewu3242592726/tritalk/internal/speech"
	"github.com/zeromicro/go-zero/core/logx"
)

// CodeError is the body of every failed API call.
type CodeError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *CodeError) Error() string {
	return e.Message
}

func New(code int, msg string) *CodeError {
	return &CodeError{Code: code, Message: msg}
}

func NotFound(msg string) *CodeError {
	return New(http.StatusNotFound, msg)
}

func BadRequest(msg string) *CodeError {
	return New(http.StatusBadRequest, msg)
}

// Status maps domain errors to an HTTP status.
func Status(err error) int {
	var ce *CodeError
	switch {
	case errors.As(err, &ce):
		return ce.Code
	case errors.Is(err, engine.ErrUnknownAgent):
		return http.StatusNotFound
	case errors.Is(err, engine.ErrUnknownProvider),
		errors.Is(err, conversation.ErrEmptyMessage),
		errors.Is(err, conversation.ErrInvalidImage):
		return http.StatusBadRequest
	case errors.Is(err, engine.ErrTurnInProgress),
		errors.Is(err, engine.ErrQueueFull),
		errors.Is(err, conversation.ErrBusy),
		errors.Is(err, speech.ErrAlreadyRecording),
		errors.Is(err, speech.ErrNotRecording):
		return http.StatusConflict
	case errors.Is(err, conversation.ErrSpeechDisabled),
		errors.Is(err, engine.ErrStopped):
		return http.StatusServiceUnavailable
	default:
		var ie *speech.IngestionError
		if errors.As(err, &ie) {
			return http.StatusUnprocessableEntity
		}
		return http.StatusInternalServerError
	}
}

// Handler is installed with httpx.SetErrorHandlerCtx.
func Handler(ctx context.Context, err error) (int, any) {
	status := Status(err)
	if status >= http.StatusInternalServerError {
		logx.WithContext(ctx).Errorf("request failed: %v", err)
	}
	return status, &CodeError{Code: status, Message: err.Error()}
}
