package config

import (
	"fmt"
	"time"

	"github.com/unclewu3242592726/tritalk/internal/bridge"
	"github.com/unclewu3242592726/tritalk/internal/engine"
	"github.com/unclewu3242592726/tritalk/internal/keys"
	"github.com/zeromicro/go-zero/rest"
)

type Config struct {
	rest.RestConf

	Agents    []AgentConfig
	Providers ProviderConfig  `json:",optional"`
	History   HistoryConfig   `json:",optional"`
	Scheduler SchedulerConfig `json:",optional"`
	Speech    SpeechConfig    `json:",optional"`
	Animation bridge.Conf     `json:",optional"`
	Keys      keys.Conf       `json:",optional"`
}

type AgentConfig struct {
	ID       int
	Name     string `json:",optional"`
	Persona  string
	Provider string `json:",options=openai|claude|gemini"`
	Model    string `json:",optional"`
	Voice    string `json:",optional"`
	Paused   bool   `json:",optional"`
}

type ProviderConfig struct {
	OpenAI     ChatProviderConfig `json:",optional"`
	Claude     ChatProviderConfig `json:",optional"`
	Gemini     ChatProviderConfig `json:",optional"`
	ElevenLabs ElevenLabsConfig   `json:",optional"`
}

type ChatProviderConfig struct {
	APIKey        string        `json:",optional"`
	BaseURL       string        `json:",optional"`
	Model         string        `json:",optional"`
	Timeout       time.Duration `json:",default=60s"`
	ContextWindow int           `json:",optional"`
	MaxTokens     int           `json:",optional"`
	VisionModels  []string      `json:",optional"`
}

type ElevenLabsConfig struct {
	APIKey string `json:",optional"`
	URL    string `json:",optional"`
	Model  string `json:",optional"`
}

type HistoryConfig struct {
	Backend string `json:",default=file,options=file|sqlite|none"`
	Dir     string `json:",default=data/history"`
	DSN     string `json:",optional"`
}

// DefaultChainDelay separates chained turns when ChainDelay is unset.
const DefaultChainDelay = time.Second

// SchedulerConfig is resolved in SchedulerConf, so an absent section and an
// empty one behave the same. MaxChainedTurns of zero chains forever.
type SchedulerConfig struct {
	ChainDelay      time.Duration `json:",optional"`
	MaxChainedTurns int           `json:",optional"`
	QueueSize       int           `json:",optional"`
}

type SpeechConfig struct {
	Enabled   bool          `json:",optional"`
	Language  string        `json:",optional"`
	Format    string        `json:",default=webm"`
	Model     string        `json:",optional"`
	Voice     string        `json:",optional"`
	QueueSize int           `json:",default=16"`
	Timeout   time.Duration `json:",default=2m"`
}

// Validate checks what must halt startup.
func (c Config) Validate() error {
	if len(c.Agents) == 0 {
		return fmt.Errorf("no agents configured")
	}
	seen := make(map[int]bool, len(c.Agents))
	for _, a := range c.Agents {
		if a.ID <= 0 {
			return fmt.Errorf("agent %q: id must be positive", a.Name)
		}
		if seen[a.ID] {
			return fmt.Errorf("duplicate agent id %d", a.ID)
		}
		seen[a.ID] = true
		switch a.Provider {
		case "openai", "claude", "gemini":
		default:
			return fmt.Errorf("agent %d: unknown provider %q", a.ID, a.Provider)
		}
	}
	switch c.History.Backend {
	case "", engine.BackupFile, engine.BackupSQLite, engine.BackupNone:
	default:
		return fmt.Errorf("unknown history backend %q", c.History.Backend)
	}
	if c.Animation.Enabled && c.Animation.Scene == "" {
		return fmt.Errorf("animation enabled without a scene")
	}
	return nil
}

// SchedulerConf converts the section for the engine. The engine sizes the
// queue itself when QueueSize is zero.
func (s SchedulerConfig) SchedulerConf() engine.SchedulerConf {
	delay := s.ChainDelay
	if delay <= 0 {
		delay = DefaultChainDelay
	}
	return engine.SchedulerConf{
		ChainDelay:      delay,
		MaxChainedTurns: max(s.MaxChainedTurns, 0),
		QueueSize:       s.QueueSize,
	}
}
