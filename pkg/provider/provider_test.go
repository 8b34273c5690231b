package provider

import (
	"errors"
	"time"

	"github.com/unclewu3242592726/tritalk/pkg/model"
)

var (
	testAgent = model.Agent{ID: 1, Name: "Ada", Persona: "You are Ada.", Provider: OpenAIName}
	zeroTime  = time.Unix(0, 0)
)

func msg(speaker model.AgentID, name, text string) *model.Message {
	role := model.RoleAssistant
	if speaker == model.Human {
		role = model.RoleUser
	}
	return &model.Message{Role: role, Speaker: speaker, SpeakerName: name, Content: text, Timestamp: zeroTime}
}

// historyFor builds agent 1's view of the given messages.
func historyFor(persona string, msgs ...*model.Message) model.ConversationHistory {
	h := model.ConversationHistory{{Role: model.RoleSystem, Message: &model.Message{Role: model.RoleSystem, Content: persona}}}
	for _, m := range msgs {
		role := model.RoleUser
		if m.Speaker == testAgent.ID {
			role = model.RoleAssistant
		}
		h = append(h, model.Entry{Role: role, Message: m})
	}
	return h
}

func asError(err error, target **Error) bool {
	return errors.As(err, target)
}
