package watcher

import "time"

type EventType int

const (
	EventCreate EventType = iota
	EventModify
	EventDelete
	EventRename
)

func (e EventType) String() string {
	switch e {
	case EventCreate:
		return "create"
	case EventModify:
		return "modify"
	case EventDelete:
		return "delete"
	case EventRename:
		return "rename"
	default:
		return "unknown"
	}
}

// FileEvent is one change to a project-relative, slash separated path.
type FileEvent struct {
	Path      string
	Type      EventType
	Timestamp time.Time
}

// Batch is what a handler receives after the debounce window closes.
type Batch struct {
	// Changed files exist and need re-validation.
	Changed []string
	// Removed files were deleted or renamed away.
	Removed []string
	// ConfigChanged is set when anything under the configuration directory
	// changed; registry and config must be reloaded before validating.
	ConfigChanged bool
}

func (b Batch) Empty() bool {
	return len(b.Changed) == 0 && len(b.Removed) == 0 && !b.ConfigChanged
}
