package session

import (
	"testing"

	"github.com/vonxq/voice-to-cursor/internal/protocol"
)

func TestStagedContentApplyTextReplaces(t *testing.T) {
	s := NewStagedContent()
	s.ApplyText("hello")
	s.ApplyText("hello world")

	snap := s.Snapshot()
	if snap.Text != "hello world" {
		t.Errorf("Text = %q, want %q", snap.Text, "hello world")
	}
	if !snap.FirstSync {
		t.Error("expected FirstSync true before any apply")
	}
}

func TestStagedContentImageOrder(t *testing.T) {
	s := NewStagedContent()
	s.AddImage("a", "pa")
	s.AddImage("b", "pb")
	s.AddImage("c", "pc")
	// Overwrite keeps position.
	s.AddImage("a", "pa2")

	snap := s.Snapshot()
	want := []Image{{"a", "pa2"}, {"b", "pb"}, {"c", "pc"}}
	if len(snap.Images) != len(want) {
		t.Fatalf("got %d images, want %d", len(snap.Images), len(want))
	}
	for i := range want {
		if snap.Images[i] != want[i] {
			t.Errorf("image %d = %+v, want %+v", i, snap.Images[i], want[i])
		}
	}

	s.RemoveImage("b")
	s.AddImage("b", "pb")
	snap = s.Snapshot()
	if snap.Images[2].ID != "b" {
		t.Errorf("re-added image should go last, got order %+v", snap.Images)
	}
}

func TestStagedContentRemoveUnknownIsNoop(t *testing.T) {
	s := NewStagedContent()
	s.ApplyText("keep me")
	before := s.Snapshot()

	if _, ok := s.RemoveImage("missing"); ok {
		t.Error("expected ok=false for unknown id")
	}

	after := s.Snapshot()
	if after.Text != "keep me" || len(after.Images) != 0 {
		t.Errorf("state changed: %+v", after)
	}
	if after.Version != before.Version {
		t.Errorf("version changed on no-op remove: %d -> %d", before.Version, after.Version)
	}
}

func TestStagedContentAddThenRemoveMatchesNeverAdded(t *testing.T) {
	a := NewStagedContent()
	a.ApplyText("x")
	a.AddImage("img", "p")
	a.RemoveImage("img")

	b := NewStagedContent()
	b.ApplyText("x")

	sa, sb := a.Snapshot(), b.Snapshot()
	if sa.Text != sb.Text || len(sa.Images) != len(sb.Images) || sa.FirstSync != sb.FirstSync {
		t.Errorf("snapshots differ: %+v vs %+v", sa, sb)
	}
}

func TestStagedContentMarkSyncedOncePerReset(t *testing.T) {
	s := NewStagedContent()
	if !s.MarkSynced() {
		t.Fatal("first MarkSynced should flip")
	}
	if s.MarkSynced() {
		t.Fatal("second MarkSynced should not flip")
	}
	s.ApplyText("x")
	s.AddImage("i", "p")
	s.Reset()

	snap := s.Snapshot()
	if !snap.Empty() || !snap.FirstSync {
		t.Errorf("reset left state behind: %+v", snap)
	}
	if !s.MarkSynced() {
		t.Error("MarkSynced should flip again after Reset")
	}
}

func TestSnapshotIsCopy(t *testing.T) {
	s := NewStagedContent()
	s.AddImage("a", "pa")
	snap := s.Snapshot()
	snap.Images[0].Ref = "changed"

	if ref, _ := s.Image("a"); ref != "pa" {
		t.Errorf("snapshot mutation leaked into stage: %q", ref)
	}
}

func TestRegistryClaim(t *testing.T) {
	r := NewRegistry()
	r.Open("c1", "10.0.0.2:5000")
	r.Open("c2", "10.0.0.3:5000")

	if ok, _ := r.Claim("c1"); !ok {
		t.Fatal("first claim should succeed")
	}
	if ok, _ := r.Claim("c1"); !ok {
		t.Fatal("owner re-claim should succeed")
	}
	ok, owner := r.Claim("c2")
	if ok || owner != "c1" {
		t.Fatalf("second connection claim = %v/%q, want refused by c1", ok, owner)
	}

	if remaining := r.Close("c1"); remaining != 1 {
		t.Errorf("remaining = %d, want 1", remaining)
	}
	if r.Owner() != "" {
		t.Errorf("claim not released, owner %q", r.Owner())
	}
	if ok, _ := r.Claim("c2"); !ok {
		t.Error("claim should pass after owner disconnects")
	}
}

func TestRegistryClaimUnknownSession(t *testing.T) {
	r := NewRegistry()
	if ok, _ := r.Claim("ghost"); ok {
		t.Error("unknown connection must not claim")
	}
}

func TestRegistryOpenGivesFreshStage(t *testing.T) {
	r := NewRegistry()
	s1 := r.Open("c1", "")
	s1.Stage.ApplyText("draft")
	r.Close("c1")

	s2 := r.Open("c1", "")
	if snap := s2.Stage.Snapshot(); !snap.Empty() || !snap.FirstSync {
		t.Errorf("reconnect should start empty, got %+v", snap)
	}
	if _, ok := r.Get("c1"); !ok {
		t.Error("Get should find reopened session")
	}
	if r.Count() != 1 {
		t.Errorf("Count = %d", r.Count())
	}
}

func TestIsMutating(t *testing.T) {
	tests := []struct {
		t    protocol.MessageType
		want bool
	}{
		{protocol.TypeSyncText, true},
		{protocol.TypeSubmit, true},
		{protocol.TypeReplaceLine, true},
		{protocol.TypeImage, true},
		{protocol.TypeGetCurrentLine, true},
		{protocol.TypeGetClipboard, false},
		{protocol.TypeAIReply, false},
		{"frobnicate", false},
	}
	for _, tt := range tests {
		if got := IsMutating(tt.t); got != tt.want {
			t.Errorf("IsMutating(%s) = %v, want %v", tt.t, got, tt.want)
		}
	}
}
