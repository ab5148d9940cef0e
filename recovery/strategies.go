package recovery

import (
	"fmt"

	"github.com/wudi/pdfredact/observability"
)

// StrictStrategy implements a fail-fast recovery strategy.
type StrictStrategy struct{}

func NewStrictStrategy() *StrictStrategy { return &StrictStrategy{} }

func (s *StrictStrategy) OnError(err error, location Location) Action { return ActionFail }

// LenientStrategy records every error, logs it, and lets parsing continue.
// Broken objects are skipped; a broken xref is rebuilt by scanning.
type LenientStrategy struct {
	Errors []error
	Logger observability.Logger
}

func NewLenientStrategy(logger observability.Logger) *LenientStrategy {
	return &LenientStrategy{Logger: observability.OrNop(logger)}
}

func (s *LenientStrategy) OnError(err error, location Location) Action {
	s.Errors = append(s.Errors, fmt.Errorf("[%s]: %w", location, err))
	observability.OrNop(s.Logger).Warn("recovering from malformed pdf",
		observability.String("component", location.Component),
		observability.Int64(observability.KeyOffset, location.ByteOffset),
		observability.Int(observability.KeyObject, location.ObjectNum),
		observability.Error("error", err),
	)
	if location.ObjectNum > 0 {
		return ActionSkip
	}
	return ActionFix
}
