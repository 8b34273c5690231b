package provider

import (
	"sync"

	"github.com/pkoukk/tiktoken-go"
	"github.com/unclewu3242592726/tritalk/pkg/model"
	"github.com/zeromicro/go-zero/core/logx"
)

const (
	// tokensPerMessage is the framing cost of one chat message.
	tokensPerMessage = 4
	// tokensPerImage is the flat cost charged for a high detail image.
	tokensPerImage = 1105
	// replyPrimer covers the tokens that open the assistant reply.
	replyPrimer = 2
)

// TokenCounter estimates how many prompt tokens an entry costs.
type TokenCounter interface {
	CountEntry(model string, e model.Entry) int
}

// EstimateHistory sums the cost of every entry in h.
func EstimateHistory(c TokenCounter, modelName string, h model.ConversationHistory) int {
	total := replyPrimer
	for _, e := range h {
		total += c.CountEntry(modelName, e)
	}
	return total
}

// ApproxCounter charges one token per four characters.
type ApproxCounter struct{}

func (ApproxCounter) CountEntry(_ string, e model.Entry) int {
	n := (len(e.Role)+len(e.Text()))/4 + tokensPerMessage
	if e.Message != nil && e.Message.Image != nil {
		n += tokensPerImage
	}
	return n
}

// TiktokenCounter counts with the BPE encoding of the target model and
// falls back to ApproxCounter when no encoding can be loaded.
type TiktokenCounter struct {
	mu       sync.Mutex
	encoders map[string]*tiktoken.Tiktoken
	failed   map[string]bool
	fallback ApproxCounter
}

func NewTiktokenCounter() *TiktokenCounter {
	return &TiktokenCounter{
		encoders: make(map[string]*tiktoken.Tiktoken),
		failed:   make(map[string]bool),
	}
}

func (c *TiktokenCounter) CountEntry(modelName string, e model.Entry) int {
	enc := c.encoder(modelName)
	if enc == nil {
		return c.fallback.CountEntry(modelName, e)
	}
	n := tokensPerMessage + len(enc.Encode(e.Role, nil, nil)) + len(enc.Encode(e.Text(), nil, nil))
	if e.Message != nil && e.Message.Image != nil {
		n += tokensPerImage
	}
	return n
}

func (c *TiktokenCounter) encoder(modelName string) *tiktoken.Tiktoken {
	c.mu.Lock()
	defer c.mu.Unlock()
	if enc, ok := c.encoders[modelName]; ok {
		return enc
	}
	if c.failed[modelName] {
		return nil
	}
	enc, err := tiktoken.EncodingForModel(modelName)
	if err != nil {
		enc, err = tiktoken.GetEncoding("cl100k_base")
	}
	if err != nil {
		logx.Errorf("tiktoken encoding for %s unavailable, using approximation: %v", modelName, err)
		c.failed[modelName] = true
		return nil
	}
	c.encoders[modelName] = enc
	return enc
}
