package optimistic

import "log/slog"

// Variant distinguishes success notices from failure notices.
type Variant string

const (
	VariantDefault     Variant = "default"
	VariantDestructive Variant = "destructive"
)

// Notice is a user-facing message about a settled mutation.
type Notice struct {
	Title       string
	Description string
	Variant     Variant
}

// Notifier presents notices to the user. Notify must not block; the
// controller does not wait on it.
type Notifier interface {
	Notify(n Notice)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(Notice)

// Notify calls f(n).
func (f NotifierFunc) Notify(n Notice) { f(n) }

// LogNotifier writes notices to a slog logger.
type LogNotifier struct {
	Logger *slog.Logger
}

// Notify logs n at info, or at warn for destructive notices.
func (l LogNotifier) Notify(n Notice) {
	log := l.Logger
	if log == nil {
		log = slog.Default()
	}
	if n.Variant == VariantDestructive {
		log.Warn(n.Title, "detail", n.Description)
		return
	}
	log.Info(n.Title, "detail", n.Description)
}

type discard struct{}

func (discard) Notify(Notice) {}
