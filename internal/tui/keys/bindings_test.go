package keys

import (
	"testing"

	"github.com/gdamore/tcell/v2"
)

func TestViewBindingShadowsGlobal(t *testing.T) {
	r := NewRegistry()
	var got string
	r.AddGlobal(Rune('r', func() { got = "global" }))
	r.AddView("feed", Rune('r', func() { got = "feed" }))

	ev := tcell.NewEventKey(tcell.KeyRune, 'r', tcell.ModNone)
	if !r.HandleEvent("feed", ev) || got != "feed" {
		t.Fatalf("feed view: got %q", got)
	}
	if !r.HandleEvent("thread", ev) || got != "global" {
		t.Fatalf("thread view: got %q", got)
	}
}

func TestSpecialKeyAndMiss(t *testing.T) {
	r := NewRegistry()
	hit := false
	r.AddView("thread", &Action{Key: tcell.KeyCtrlL, Handler: func() { hit = true }})

	if r.HandleEvent("thread", tcell.NewEventKey(tcell.KeyRune, 'x', tcell.ModNone)) {
		t.Fatal("unbound rune should not match")
	}
	if !r.HandleEvent("thread", tcell.NewEventKey(tcell.KeyCtrlL, 0, tcell.ModCtrl)) || !hit {
		t.Fatal("ctrl-l should match")
	}
}
