// Package clip provides a unified interface to the system clipboard's text
// contents across platforms. Build constraints select the implementation:
//
//	clip_darwin.go   — macOS via golang.design/x/clipboard + cgo changeCount
//	clip_windows.go  — Windows via golang.design/x/clipboard + AddClipboardFormatListener
//	clip_linux.go    — Linux via golang.design/x/clipboard, polling only
//	clip_other.go    — headless / container stub
//
// Change notification does not distinguish origin: a Write performed by this
// process signals Watch exactly like an external change would. Callers that
// forward changes are responsible for suppressing their own echoes.
package clip

// Backend is the interface that all platform clipboard implementations satisfy.
type Backend interface {
	// Name returns a human-readable name for the backend.
	Name() string

	// Read returns the current clipboard text. If the clipboard is empty or
	// holds only non-text content it returns "", nil; absence of text is
	// not an error.
	Read() (string, error)

	// Write replaces the clipboard contents with text.
	Write(text string) error

	// Watch returns a channel that receives a signal whenever the clipboard
	// changes, including changes caused by this process's own Write calls.
	// The channel is never closed. On platforms without native change
	// notification (Linux X11/Wayland) this is implemented via polling.
	// The caller should call Read() when it receives from the channel.
	Watch() <-chan struct{}

	// Close releases the change watcher. Safe to call once; must be called
	// on every exit path so the watcher resource is not leaked.
	Close()
}
