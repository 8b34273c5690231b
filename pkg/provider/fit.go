package provider

import (
	"strings"

	"github.com/unclewu3242592726/tritalk/pkg/model"
)

// ImagePlaceholder replaces image content for models without vision input.
const ImagePlaceholder = "[image omitted: this model cannot view images]"

// Capabilities describes what a provider model accepts.
type Capabilities struct {
	ImageInput    bool `json:"imageInput"`
	ContextWindow int  `json:"contextWindow"`
}

// Fit drops the oldest non-system entries until the estimate is within
// window. The system entry is always kept, as is the newest entry even
// when it alone exceeds the window.
func Fit(h model.ConversationHistory, window int, cost func(model.Entry) int) model.ConversationHistory {
	if window <= 0 || len(h) == 0 {
		return h
	}

	var head model.ConversationHistory
	turns := h
	if h[0].Role == model.RoleSystem {
		head, turns = h[:1], h[1:]
	}

	total := replyPrimer
	for _, e := range head {
		total += cost(e)
	}
	start := len(turns)
	for start > 0 {
		c := cost(turns[start-1])
		if total+c > window && start < len(turns) {
			break
		}
		total += c
		start--
	}
	if start == 0 {
		return h
	}

	out := make(model.ConversationHistory, 0, len(head)+len(turns)-start)
	out = append(out, head...)
	return append(out, turns[start:]...)
}

// StripImages returns h with every image replaced by ImagePlaceholder.
// Stored messages are shared between agents, so affected entries get a copy.
func StripImages(h model.ConversationHistory) model.ConversationHistory {
	out := make(model.ConversationHistory, len(h))
	for i, e := range h {
		if e.Message == nil || e.Message.Image == nil {
			out[i] = e
			continue
		}
		m := *e.Message
		m.Image = nil
		if m.Content == "" {
			m.Content = ImagePlaceholder
		} else {
			m.Content += "\n" + ImagePlaceholder
		}
		out[i] = model.Entry{Role: e.Role, Message: &m}
	}
	return out
}

// matchModel reports whether name starts with any of the prefixes.
func matchModel(name string, prefixes []string) bool {
	for _, p := range prefixes {
		if p != "" && strings.HasPrefix(name, p) {
			return true
		}
	}
	return false
}
