package recovery

import "fmt"

// Strategy decides how the parser reacts to a malformed construct.
type Strategy interface {
	OnError(err error, location Location) Action
}

type Location struct {
	ByteOffset int64
	ObjectNum  int
	ObjectGen  int
	Component  string
}

func (l Location) String() string {
	if l.ObjectNum > 0 {
		return fmt.Sprintf("%s obj %d %d @%d", l.Component, l.ObjectNum, l.ObjectGen, l.ByteOffset)
	}
	return fmt.Sprintf("%s @%d", l.Component, l.ByteOffset)
}

type Action int

const (
	ActionFail Action = iota
	ActionSkip
	ActionFix
	ActionWarn
)

func (a Action) String() string {
	switch a {
	case ActionSkip:
		return "skip"
	case ActionFix:
		return "fix"
	case ActionWarn:
		return "warn"
	default:
		return "fail"
	}
}
