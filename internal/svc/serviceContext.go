package svc

import (
	"context"
	"fmt"
	"os"

	"github.com/unclewu3242592726/tritalk/internal/bridge"
	"github.com/unclewu3242592726/tritalk/internal/config"
	"github.com/unclewu3242592726/tritalk/internal/conversation"
	"github.com/unclewu3242592726/tritalk/internal/engine"
	"github.com/unclewu3242592726/tritalk/internal/hub"
	"github.com/unclewu3242592726/tritalk/internal/keys"
	"github.com/unclewu3242592726/tritalk/internal/speech"
	"github.com/unclewu3242592726/tritalk/pkg/model"
	"github.com/unclewu3242592726/tritalk/pkg/provider"
	"github.com/zeromicro/go-zero/core/logx"
	"github.com/zeromicro/go-zero/core/threading"
)

const defaultHistoryDir = "data/history"

type ServiceContext struct {
	Config       config.Config
	Registry     *provider.Registry
	Roster       *engine.Roster
	History      *engine.HistoryStore
	Dispatcher   *engine.Dispatcher
	Scheduler    *engine.Scheduler
	Hub          *hub.Hub
	Conversation *conversation.Conversation
	Keymap       *keys.Keymap

	synth  *speech.Synthesizer
	obs    *bridge.OBS
	cancel context.CancelFunc
}

func New(c config.Config) (*ServiceContext, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	registry := NewRegistry(c.Providers)

	agents := Agents(c)
	roster, err := engine.NewRoster(agents, registry)
	if err != nil {
		return nil, err
	}
	history, err := OpenHistory(c, agents)
	if err != nil {
		return nil, err
	}
	keymap, err := keys.New(c.Keys, len(agents))
	if err != nil {
		history.Close()
		return nil, err
	}

	h := hub.New()
	svcCtx := &ServiceContext{
		Config:   c,
		Registry: registry,
		Roster:   roster,
		History:  history,
		Hub:      h,
		Keymap:   keymap,
	}

	var speaker engine.Speaker
	var recorder *speech.Recorder
	if c.Speech.Enabled {
		if tts, err := registry.GetTTS(provider.ElevenLabsName); err == nil {
			svcCtx.synth = speech.NewSynthesizer(tts, h, c.Speech.QueueSize, c.Speech.Timeout)
			speaker = svcCtx.synth
		} else {
			logx.Errorf("speech output disabled: %v", err)
		}
		if asr, err := registry.GetASR(provider.WhisperName); err == nil {
			recorder = speech.NewRecorder(asr, provider.ASROptions{Format: c.Speech.Format, Language: c.Speech.Language})
		} else {
			logx.Errorf("speech input disabled: %v", err)
		}
	}

	var animator engine.Animator = bridge.Noop{}
	if c.Animation.Enabled {
		anim := c.Animation
		if anim.Password == "" {
			anim.Password = os.Getenv("OBS_PASSWORD")
		}
		svcCtx.obs = bridge.NewOBS(anim)
		animator = svcCtx.obs
	}

	svcCtx.Dispatcher = engine.NewDispatcher(roster, history,
		engine.WithPublisher(h),
		engine.WithSpeaker(speaker),
		engine.WithAnimator(animator))
	svcCtx.Scheduler = engine.NewScheduler(roster, svcCtx.Dispatcher, c.Scheduler.SchedulerConf(),
		engine.WithStatePublisher(h))
	svcCtx.Conversation = conversation.New(conversation.Deps{
		Roster:    roster,
		History:   history,
		Scheduler: svcCtx.Scheduler,
		Recorder:  recorder,
		Publisher: h,
	})
	h.Bind(svcCtx.Conversation)
	return svcCtx, nil
}

// Start launches the background workers.
func (s *ServiceContext) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	threading.GoSafe(func() {
		s.Scheduler.Run(ctx)
	})
	if s.synth != nil {
		threading.GoSafe(func() {
			s.synth.Run(ctx)
		})
	}
	if s.obs != nil {
		threading.GoSafe(func() {
			s.obs.Run(ctx)
		})
	}
}

func (s *ServiceContext) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	if err := s.History.Close(); err != nil {
		logx.Errorf("close history: %v", err)
	}
}

// NewRegistry registers every chat adapter. Missing keys surface as
// credential errors on the first turn rather than at startup.
func NewRegistry(c config.ProviderConfig) *provider.Registry {
	registry := provider.NewRegistry()

	openAIKey := c.OpenAI.APIKey
	if openAIKey == "" {
		openAIKey = os.Getenv("OPENAI_API_KEY")
	}
	registry.RegisterLLM(provider.OpenAIName, provider.NewOpenAIAdapter(chatConf(c.OpenAI, openAIKey)))
	registry.RegisterASR(provider.WhisperName, provider.NewWhisperASRProvider(openAIKey, c.OpenAI.BaseURL, ""))

	claudeKey := c.Claude.APIKey
	if claudeKey == "" {
		claudeKey = os.Getenv("ANTHROPIC_API_KEY")
	}
	registry.RegisterLLM(provider.ClaudeName, provider.NewClaudeAdapter(chatConf(c.Claude, claudeKey)))

	geminiKey := c.Gemini.APIKey
	if geminiKey == "" {
		geminiKey = os.Getenv("GOOGLE_API_KEY")
	}
	registry.RegisterLLM(provider.GeminiName, provider.NewGeminiAdapter(chatConf(c.Gemini, geminiKey)))

	elevenKey := c.ElevenLabs.APIKey
	if elevenKey == "" {
		elevenKey = os.Getenv("ELEVENLABS_API_KEY")
	}
	if elevenKey != "" {
		registry.RegisterTTS(provider.ElevenLabsName,
			provider.NewElevenLabsTTSProvider(elevenKey, c.ElevenLabs.URL, c.ElevenLabs.Model))
	}
	return registry
}

func chatConf(c config.ChatProviderConfig, apiKey string) provider.ChatConf {
	return provider.ChatConf{
		APIKey:        apiKey,
		BaseURL:       c.BaseURL,
		Model:         c.Model,
		Timeout:       c.Timeout,
		ContextWindow: c.ContextWindow,
		MaxTokens:     c.MaxTokens,
		VisionModels:  c.VisionModels,
	}
}

// Agents converts the configured roster.
func Agents(c config.Config) []model.Agent {
	agents := make([]model.Agent, 0, len(c.Agents))
	for _, a := range c.Agents {
		voice := a.Voice
		if voice == "" {
			voice = c.Speech.Voice
		}
		agents = append(agents, model.Agent{
			ID:       model.AgentID(a.ID),
			Name:     a.Name,
			Persona:  a.Persona,
			Provider: a.Provider,
			Model:    a.Model,
			Voice:    voice,
			Paused:   a.Paused,
		})
	}
	return agents
}

// OpenHistory opens the configured backup and loads what it holds.
func OpenHistory(c config.Config, agents []model.Agent) (*engine.HistoryStore, error) {
	dir := c.History.Dir
	if dir == "" {
		dir = defaultHistoryDir
	}
	backup, err := engine.OpenBackup(c.History.Backend, dir, c.History.DSN)
	if err != nil {
		return nil, err
	}
	history := engine.NewHistoryStore(agents, backup)
	if err := history.Load(); err != nil {
		history.Close()
		return nil, fmt.Errorf("load history: %w", err)
	}
	logx.Infof("history loaded: %d messages", history.Len())
	return history, nil
}
