package svc

import (
	"testing"

	"github.com/unclewu3242592726/tritalk/internal/config"
	"github.com/unclewu3242592726/tritalk/pkg/provider"
	"github.com/zeromicro/go-zero/core/logx"
)

func init() {
	logx.Disable()
}

func testConfig(t *testing.T) config.Config {
	var c config.Config
	c.Agents = []config.AgentConfig{
		{ID: 1, Name: "Ada", Persona: "You are Ada.", Provider: "openai"},
		{ID: 2, Name: "Bo", Persona: "You are Bo.", Provider: "claude", Voice: "bo-voice"},
		{ID: 3, Name: "Cy", Persona: "You are Cy.", Provider: "gemini", Paused: true},
	}
	c.History.Backend = "file"
	c.History.Dir = t.TempDir()
	c.Speech.Voice = "narrator"
	return c
}

func TestNewWiresEverything(t *testing.T) {
	t.Setenv("ELEVENLABS_API_KEY", "")
	svcCtx, err := New(testConfig(t))
	if err != nil {
		t.Fatal(err)
	}
	defer svcCtx.Stop()

	if names := svcCtx.Registry.LLMNames(); len(names) != 3 {
		t.Fatalf("chat providers = %v", names)
	}
	if _, err := svcCtx.Registry.GetTTS(provider.ElevenLabsName); err == nil {
		t.Fatal("tts should not be registered without a key")
	}

	agents := svcCtx.Conversation.Agents()
	if len(agents) != 3 {
		t.Fatalf("agents = %+v", agents)
	}
	if agents[0].Model != "gpt-4o" || agents[0].Voice != "narrator" || agents[1].Voice != "bo-voice" {
		t.Errorf("agents = %+v", agents)
	}
	if !agents[2].Paused {
		t.Error("agent 3 should start paused")
	}
	if cmd, ok := svcCtx.Keymap.Resolve("2"); !ok || cmd.Agent != 2 {
		t.Errorf("keymap = %+v", cmd)
	}
}

func TestNewRejectsBadConfig(t *testing.T) {
	c := testConfig(t)
	c.Agents[1].ID = 1
	if _, err := New(c); err == nil {
		t.Fatal("expected duplicate id error")
	}

	c = testConfig(t)
	c.History.Backend = "redis"
	if _, err := New(c); err == nil {
		t.Fatal("expected backend error")
	}
}

func TestEnvironmentKeys(t *testing.T) {
	t.Setenv("ELEVENLABS_API_KEY", "el-key")
	reg := NewRegistry(config.ProviderConfig{})
	if _, err := reg.GetTTS(provider.ElevenLabsName); err != nil {
		t.Fatalf("tts not registered from env: %v", err)
	}
	if _, err := reg.GetASR(provider.WhisperName); err != nil {
		t.Fatal(err)
	}
}
