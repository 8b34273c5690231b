package provider

import (
	"strings"
	"testing"

	"github.com/unclewu3242592726/tritalk/pkg/model"
)

func unitCost(model.Entry) int { return 10 }

func TestFitKeepsSystemAndNewestSuffix(t *testing.T) {
	h := historyFor("persona",
		msg(model.Human, "Human", "one"),
		msg(2, "Bo", "two"),
		msg(1, "Ada", "three"),
		msg(model.Human, "Human", "four"),
	)

	// primer 2 + system 10 + two turns 20 = 32
	got := Fit(h, 35, unitCost)
	if len(got) != 3 {
		t.Fatalf("len = %d, want 3", len(got))
	}
	if got[0].Role != model.RoleSystem {
		t.Fatal("system entry dropped")
	}
	if got[1].Message.Content != "three" || got[2].Message.Content != "four" {
		t.Fatalf("unexpected suffix: %q %q", got[1].Message.Content, got[2].Message.Content)
	}
}

func TestFitUnderWindowIsUnchanged(t *testing.T) {
	h := historyFor("persona", msg(model.Human, "Human", "hi"))
	if got := Fit(h, 1000, unitCost); len(got) != len(h) {
		t.Fatalf("len = %d, want %d", len(got), len(h))
	}
}

func TestFitAlwaysKeepsNewestEntry(t *testing.T) {
	h := historyFor("persona", msg(model.Human, "Human", "a"), msg(model.Human, "Human", "b"))
	got := Fit(h, 5, unitCost)
	if len(got) != 2 || got[1].Message.Content != "b" {
		t.Fatalf("got %d entries, want system plus newest", len(got))
	}
}

func TestStripImagesCopiesMessages(t *testing.T) {
	shared := msg(model.Human, "Human", "look at this")
	shared.Image = &model.ImageRef{URL: "https://example.com/cat.jpg"}
	h := historyFor("persona", shared)

	out := StripImages(h)
	if out[1].Message.Image != nil {
		t.Fatal("image not stripped")
	}
	if !strings.Contains(out[1].Message.Content, ImagePlaceholder) {
		t.Fatalf("placeholder missing: %q", out[1].Message.Content)
	}
	if shared.Image == nil || shared.Content != "look at this" {
		t.Fatal("stored message was mutated")
	}
}

func TestApproxCounter(t *testing.T) {
	e := model.Entry{Role: model.RoleUser, Message: &model.Message{Content: strings.Repeat("a", 40)}}
	if got := (ApproxCounter{}).CountEntry("", e); got != (4+40)/4+tokensPerMessage {
		t.Fatalf("count = %d", got)
	}
	e.Message.Image = &model.ImageRef{URL: "x"}
	if got := (ApproxCounter{}).CountEntry("", e); got < tokensPerImage {
		t.Fatalf("image not charged: %d", got)
	}
}
