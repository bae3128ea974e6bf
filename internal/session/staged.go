// Package session holds the desktop-side record of what a phone has staged and
// which connection currently owns the input surface.
package session

import "sync"

// Image is a staged image reference. Ref is resolved on the desktop, normally
// a workspace-relative file path.
type Image struct {
	ID  string
	Ref string
}

// Snapshot is an immutable copy of staged content at a point in time.
type Snapshot struct {
	Text      string
	Images    []Image
	FirstSync bool
	// Version increases on every mutation and on reset.
	Version uint64
}

// Empty reports whether there is nothing to render.
func (s Snapshot) Empty() bool {
	return s.Text == "" && len(s.Images) == 0
}

// StagedContent is the draft a phone is composing. The zero value is not
// ready for use; call NewStagedContent.
type StagedContent struct {
	mu        sync.Mutex
	text      string
	order     []string
	images    map[string]string
	firstSync bool
	version   uint64
}

// NewStagedContent returns an empty stage with firstSync set.
func NewStagedContent() *StagedContent {
	return &StagedContent{
		images:    make(map[string]string),
		firstSync: true,
	}
}

// Reset clears text and images and re-arms the first sync.
func (s *StagedContent) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.text = ""
	s.order = nil
	s.images = make(map[string]string)
	s.firstSync = true
	s.version++
}

// ApplyText replaces the staged text.
func (s *StagedContent) ApplyText(text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.text = text
	s.version++
}

// AddImage inserts or overwrites an image. An overwrite keeps the id's
// original position.
func (s *StagedContent) AddImage(id, ref string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.images[id]; !ok {
		s.order = append(s.order, id)
	}
	s.images[id] = ref
	s.version++
}

// RemoveImage deletes an image and returns its ref. Unknown ids are a no-op.
func (s *StagedContent) RemoveImage(id string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ref, ok := s.images[id]
	if !ok {
		return "", false
	}
	delete(s.images, id)
	for i, v := range s.order {
		if v == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	s.version++
	return ref, true
}

// Image returns the ref stored for id.
func (s *StagedContent) Image(id string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ref, ok := s.images[id]
	return ref, ok
}

// Snapshot copies the current state.
func (s *StagedContent) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	images := make([]Image, 0, len(s.order))
	for _, id := range s.order {
		images = append(images, Image{ID: id, Ref: s.images[id]})
	}
	return Snapshot{
		Text:      s.text,
		Images:    images,
		FirstSync: s.firstSync,
		Version:   s.version,
	}
}

// MarkSynced records a successful apply. It reports whether this call flipped
// firstSync, which happens at most once per Reset.
func (s *StagedContent) MarkSynced() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.firstSync {
		return false
	}
	s.firstSync = false
	return true
}

// FirstSync reports whether nothing has been applied since the last reset.
func (s *StagedContent) FirstSync() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.firstSync
}
