package voice

import (
	"testing"
	"time"
)

type stepClock struct {
	now time.Time
}

func (c *stepClock) Now() time.Time { return c.now }

func (c *stepClock) advance(d time.Duration) { c.now = c.now.Add(d) }

func TestGateStartsMuted(t *testing.T) {
	g := newListeningGate(nil)
	if g.State() != gateMuted {
		t.Fatalf("expected muted, got %s", g.State())
	}
	if g.Admit(time.Now()) {
		t.Fatalf("muted gate must not admit")
	}
}

func TestGateAdmitsOnceAfterOpen(t *testing.T) {
	clock := &stepClock{now: time.Unix(1000, 0)}
	g := newListeningGate(clock.Now)

	g.Open()
	clock.advance(time.Second)

	if !g.Admit(clock.now) {
		t.Fatalf("expected transcript to be admitted")
	}
	if g.State() != gateMuted {
		t.Fatalf("admit should close the gate, got %s", g.State())
	}
	if g.Admit(clock.now) {
		t.Fatalf("second transcript in the same window must be discarded")
	}
}

func TestGateRejectsTranscriptsFromBeforeOpen(t *testing.T) {
	clock := &stepClock{now: time.Unix(1000, 0)}
	g := newListeningGate(clock.Now)

	stale := clock.now
	clock.advance(500 * time.Millisecond)
	g.Open()

	if g.Admit(stale) {
		t.Fatalf("transcript received before the gate opened must be discarded")
	}
	if g.State() != gateListening {
		t.Fatalf("discarding should keep the gate open, got %s", g.State())
	}
	if !g.Admit(clock.now) {
		t.Fatalf("transcript received at open time should be admitted")
	}
}

func TestGateEndIsPermanent(t *testing.T) {
	g := newListeningGate(nil)
	g.End()
	g.Open()
	g.Mute()

	if g.State() != gateEnded {
		t.Fatalf("expected ended, got %s", g.State())
	}
	if g.Admit(time.Now().Add(time.Hour)) {
		t.Fatalf("ended gate must not admit")
	}
}

func TestGateMuteClosesWindow(t *testing.T) {
	g := newListeningGate(nil)
	g.Open()
	g.Mute()
	if g.Admit(time.Now().Add(time.Second)) {
		t.Fatalf("muted gate must not admit")
	}
}
