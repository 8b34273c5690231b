package provider

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"sync"
)

// Provider types exposed through discovery
const (
	TypeLLM = "llm"
	TypeASR = "asr"
	TypeTTS = "tts"
)

// Registry manages all providers with unified interfaces
type Registry struct {
	mu           sync.RWMutex
	llmProviders map[string]Adapter
	asrProviders map[string]ASRProvider
	ttsProviders map[string]TTSProvider
}

func NewRegistry() *Registry {
	return &Registry{
		llmProviders: make(map[string]Adapter),
		asrProviders: make(map[string]ASRProvider),
		ttsProviders: make(map[string]TTSProvider),
	}
}

// ASR Provider Interface
type ASRProvider interface {
	Name() string
	Recognize(ctx context.Context, audio []byte, opts *ASROptions) (*Transcript, error)
}

// TTS Provider Interface
type TTSProvider interface {
	Name() string
	SynthesizeStream(ctx context.Context, text string, opts *TTSOptions) (<-chan *AudioChunk, error)
}

type Transcript struct {
	Text     string  `json:"text"`
	Language string  `json:"language,omitempty"`
	Duration float64 `json:"duration,omitempty"`
}

type ASROptions struct {
	Format   string `json:"format"` // wav|mp3|webm|ogg
	Language string `json:"language,omitempty"`
}

type AudioChunk struct {
	Data    []byte `json:"data"`
	Format  string `json:"format"` // mp3|pcm
	SeqNum  int    `json:"seq_num"`
	IsFinal bool   `json:"is_final"`
}

type TTSOptions struct {
	Voice string  `json:"voice"`
	Speed float64 `json:"speed,omitempty"`
}

// Registry methods
func (r *Registry) RegisterLLM(name string, adapter Adapter) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.llmProviders[name] = adapter
}

func (r *Registry) RegisterASR(name string, provider ASRProvider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.asrProviders[name] = provider
}

func (r *Registry) RegisterTTS(name string, provider TTSProvider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ttsProviders[name] = provider
}

func (r *Registry) GetLLM(name string) (Adapter, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if adapter, ok := r.llmProviders[name]; ok {
		return adapter, nil
	}
	return nil, fmt.Errorf("LLM provider '%s' not found", name)
}

func (r *Registry) GetASR(name string) (ASRProvider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if provider, ok := r.asrProviders[name]; ok {
		return provider, nil
	}
	return nil, fmt.Errorf("ASR provider '%s' not found", name)
}

func (r *Registry) GetTTS(name string) (TTSProvider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if provider, ok := r.ttsProviders[name]; ok {
		return provider, nil
	}
	return nil, fmt.Errorf("TTS provider '%s' not found", name)
}

// LLMNames lists registered chat providers in name order.
func (r *Registry) LLMNames() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.llmProviders))
	for name := range r.llmProviders {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// 服务发现相关方法

// ProviderInfo 表示 Provider 信息
type ProviderInfo struct {
	Name         string            `json:"name"`
	Type         string            `json:"type"`
	Status       string            `json:"status"`
	Capabilities []string          `json:"capabilities,omitempty"`
	Config       map[string]string `json:"config,omitempty"`
}

// GetAllProviders 获取所有 Provider 信息
func (r *Registry) GetAllProviders() []ProviderInfo {
	var providers []ProviderInfo
	for _, typ := range []string{TypeLLM, TypeASR, TypeTTS} {
		providers = append(providers, r.GetProvidersByType(typ)...)
	}
	return providers
}

// GetProvidersByType 根据类型获取 Provider 信息
func (r *Registry) GetProvidersByType(providerType string) []ProviderInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var names []string
	switch providerType {
	case TypeLLM:
		for name := range r.llmProviders {
			names = append(names, name)
		}
	case TypeASR:
		for name := range r.asrProviders {
			names = append(names, name)
		}
	case TypeTTS:
		for name := range r.ttsProviders {
			names = append(names, name)
		}
	}
	sort.Strings(names)

	providers := make([]ProviderInfo, 0, len(names))
	for _, name := range names {
		providers = append(providers, r.describe(providerType, name))
	}
	return providers
}

// GetProviderInfo 获取特定 Provider 的信息
func (r *Registry) GetProviderInfo(providerType, name string) (*ProviderInfo, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var ok bool
	switch providerType {
	case TypeLLM:
		_, ok = r.llmProviders[name]
	case TypeASR:
		_, ok = r.asrProviders[name]
	case TypeTTS:
		_, ok = r.ttsProviders[name]
	}
	if !ok {
		return nil, fmt.Errorf("provider '%s' of type '%s' not found", name, providerType)
	}
	info := r.describe(providerType, name)
	return &info, nil
}

// describe must be called with r.mu held.
func (r *Registry) describe(providerType, name string) ProviderInfo {
	info := ProviderInfo{Name: name, Type: providerType, Status: "online"}
	switch providerType {
	case TypeLLM:
		adapter := r.llmProviders[name]
		caps := adapter.Capabilities("")
		info.Capabilities = []string{"chat"}
		if caps.ImageInput {
			info.Capabilities = append(info.Capabilities, "vision")
		}
		info.Config = map[string]string{
			"defaultModel":  adapter.DefaultModel(),
			"contextWindow": strconv.Itoa(caps.ContextWindow),
		}
	case TypeASR:
		info.Capabilities = []string{"recognize"}
	case TypeTTS:
		info.Capabilities = []string{"synthesize_stream"}
	}
	return info
}
