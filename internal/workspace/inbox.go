package workspace

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	apperrors "github.com/vonxq/voice-to-cursor/internal/errors"
)

// InboxFile is the legacy side file, relative to the workspace root. The
// user can reference it from the editor when no paste path worked.
const InboxFile = ".cursor/voice-input.md"

// Inbox appends timestamped entries to the legacy side file.
type Inbox struct {
	root string
	mu   sync.Mutex
	now  func() time.Time
}

// NewInbox returns an inbox under root.
func NewInbox(root string) *Inbox {
	return &Inbox{root: root, now: time.Now}
}

// Path returns the absolute file path.
func (b *Inbox) Path() string {
	return filepath.Join(b.root, filepath.FromSlash(InboxFile))
}

// Append writes one entry.
func (b *Inbox) Append(content string) error {
	if b.root == "" {
		return apperrors.WorkspaceMissing()
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	p := b.Path()
	if err := os.MkdirAll(filepath.Dir(p), 0755); err != nil {
		return apperrors.Wrap(apperrors.CodeInboxWriteFailed, "failed to create inbox directory", err)
	}
	f, err := os.OpenFile(p, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return apperrors.Wrap(apperrors.CodeInboxWriteFailed, "failed to open inbox", err)
	}
	defer f.Close()

	entry := fmt.Sprintf("\n<!-- Voice Input - %s -->\n%s\n", b.now().Format("2006-01-02 15:04:05"), content)
	if _, err := f.WriteString(entry); err != nil {
		return apperrors.Wrap(apperrors.CodeInboxWriteFailed, "failed to append to inbox", err)
	}
	return nil
}
