package keys

import (
	"fmt"
	"sort"
	"strings"

	"github.com/unclewu3242592726/tritalk/pkg/model"
)

// Conf binds raw keys to commands. Activate[i] activates agent i+1. An
// empty key keeps the default binding and "-" leaves the command unbound.
type Conf struct {
	StartRecording string   `json:",default=r"`
	StopRecording  string   `json:",default=s"`
	TogglePause    string   `json:",default=p"`
	Activate       []string `json:",optional"`
}

// Keymap turns raw key presses into normalized commands
type Keymap struct {
	bindings map[string]model.CommandFrame
}

const unbound = "-"

func Default() *Keymap {
	km, _ := New(Conf{}, 3)
	return km
}

func orDefault(key, def string) string {
	if strings.TrimSpace(key) == "" {
		return def
	}
	return key
}

// New builds a keymap for agents 1..agents. Missing activate keys default
// to the agent number.
func New(c Conf, agents int) (*Keymap, error) {
	km := &Keymap{bindings: make(map[string]model.CommandFrame)}
	bind := func(key string, cmd model.CommandFrame) error {
		key = strings.ToLower(strings.TrimSpace(key))
		if key == unbound {
			return nil
		}
		if prev, ok := km.bindings[key]; ok {
			return fmt.Errorf("key %q bound to both %s and %s", key, describe(prev), describe(cmd))
		}
		km.bindings[key] = cmd
		return nil
	}

	if err := bind(orDefault(c.StartRecording, "r"), model.CommandFrame{Command: model.CommandStartRecording}); err != nil {
		return nil, err
	}
	if err := bind(orDefault(c.StopRecording, "s"), model.CommandFrame{Command: model.CommandStopRecording}); err != nil {
		return nil, err
	}
	if err := bind(orDefault(c.TogglePause, "p"), model.CommandFrame{Command: model.CommandTogglePause}); err != nil {
		return nil, err
	}
	for i := 1; i <= agents; i++ {
		key := fmt.Sprint(i)
		if i <= len(c.Activate) {
			key = orDefault(c.Activate[i-1], key)
		}
		if err := bind(key, model.CommandFrame{Command: model.CommandActivate, Agent: model.AgentID(i)}); err != nil {
			return nil, err
		}
	}
	return km, nil
}

// Resolve returns the command bound to key.
func (k *Keymap) Resolve(key string) (model.CommandFrame, bool) {
	cmd, ok := k.bindings[strings.ToLower(key)]
	return cmd, ok
}

// Help lists bindings as "key: command" pairs in a stable order.
func (k *Keymap) Help() []string {
	keys := make([]string, 0, len(k.bindings))
	for key := range k.bindings {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool {
		a, b := k.bindings[keys[i]], k.bindings[keys[j]]
		if a.Command != b.Command {
			return a.Command < b.Command
		}
		return a.Agent < b.Agent
	})
	out := make([]string, 0, len(keys))
	for _, key := range keys {
		out = append(out, key+": "+describe(k.bindings[key]))
	}
	return out
}

func describe(cmd model.CommandFrame) string {
	if cmd.Command == model.CommandActivate {
		return fmt.Sprintf("activate agent %d", int(cmd.Agent))
	}
	return strings.ReplaceAll(cmd.Command, "_", " ")
}
