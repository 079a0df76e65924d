package limits

import "testing"

func TestActorLimits_AcquireRelease(t *testing.T) {
	l := NewActorLimits(2)

	r1, ok := l.Acquire("a@example.com")
	if !ok {
		t.Fatalf("expected first acquire ok")
	}
	if _, ok := l.Acquire("a@example.com"); !ok {
		t.Fatalf("expected second acquire ok")
	}
	if _, ok := l.Acquire("a@example.com"); ok {
		t.Fatalf("expected third acquire to be blocked")
	}
	if _, ok := l.Acquire("b@example.com"); !ok {
		t.Fatalf("expected other actor to be independent")
	}

	r1()
	r1()
	if got := l.InUse("a@example.com"); got != 1 {
		t.Fatalf("expected release to apply once, in use = %d", got)
	}
	if _, ok := l.Acquire("a@example.com"); !ok {
		t.Fatalf("expected acquire ok after release")
	}
}

func TestActorLimits_Unlimited(t *testing.T) {
	l := NewActorLimits(0)
	for i := 0; i < 100; i++ {
		if _, ok := l.Acquire("a@example.com"); !ok {
			t.Fatalf("expected zero max to be unlimited")
		}
	}

	var nilLimits *ActorLimits
	release, ok := nilLimits.Acquire("a@example.com")
	if !ok {
		t.Fatalf("expected nil limits to allow")
	}
	release()
}
