package contentstream

import (
	"errors"

	"github.com/wudi/pdfredact/coords"
	"github.com/wudi/pdfredact/fonts"
)

// TextRenderMode matches PDF text rendering modes set via Tr operator.
type TextRenderMode int

const (
	TextFill TextRenderMode = iota
	TextStroke
	TextFillStroke
	TextInvisible
	TextFillClip
	TextStrokeClip
	TextFillStrokeClip
	TextClip
)

// TextState holds the text parameters that q/Q save and restore.
type TextState struct {
	Font       *fonts.Font
	FontSize   float64
	CharSpace  float64
	WordSpace  float64
	HScale     float64
	Leading    float64
	Rise       float64
	RenderMode TextRenderMode
}

// GraphicsState is the subset of the PDF graphics state the tracer follows.
type GraphicsState struct {
	CTM  coords.Matrix
	Text TextState

	stack []GraphicsState
}

func newGraphicsState(ctm coords.Matrix) *GraphicsState {
	return &GraphicsState{CTM: ctm, Text: TextState{HScale: 1, Font: fonts.Default()}}
}

func (gs *GraphicsState) Save() {
	clone := *gs
	clone.stack = nil
	gs.stack = append(gs.stack, clone)
}

func (gs *GraphicsState) Restore() error {
	n := len(gs.stack)
	if n == 0 {
		return errors.New("state stack empty")
	}
	stack := gs.stack[:n-1]
	*gs = gs.stack[n-1]
	gs.stack = stack
	return nil
}
