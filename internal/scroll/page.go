package scroll

import "strings"

// DefaultLineHeight is the line box height as a multiple of the font size.
const DefaultLineHeight = 1.5

// Page is a Viewport over lyric text. Its content height comes from the line
// count and font metrics until the presentation layer reports a measured one.
type Page struct {
	lines      int
	fontSize   float64
	lineHeight float64
	height     float64
	measured   float64
	offset     float64
}

// NewPage lays out text at fontSizePx in a viewport height pixels tall.
func NewPage(text string, fontSizePx, lineHeight, height float64) *Page {
	if lineHeight <= 0 {
		lineHeight = DefaultLineHeight
	}
	return &Page{
		lines:      countLines(text),
		fontSize:   fontSizePx,
		lineHeight: lineHeight,
		height:     max(height, 0),
	}
}

func countLines(text string) int {
	text = strings.TrimRight(text, "\n")
	if text == "" {
		return 0
	}
	return strings.Count(text, "\n") + 1
}

func (p *Page) Lines() int { return p.lines }

func (p *Page) Height() float64 { return p.height }

// ContentHeight is the full rendered height of the text.
func (p *Page) ContentHeight() float64 {
	if p.measured > 0 {
		return p.measured
	}
	return float64(p.lines) * p.fontSize * p.lineHeight
}

func (p *Page) Offset() float64 { return p.offset }

func (p *Page) MaxOffset() float64 {
	return max(p.ContentHeight()-p.height, 0)
}

func (p *Page) SetOffset(px float64) {
	p.offset = min(max(px, 0), p.MaxOffset())
}

// SetFontSize re-lays the text. A measured content height is scaled by the
// size ratio until the presentation layer measures again. The offset is kept
// unless it no longer fits.
func (p *Page) SetFontSize(px float64) {
	if px <= 0 || px == p.fontSize {
		return
	}
	if p.measured > 0 && p.fontSize > 0 {
		p.measured *= px / p.fontSize
	}
	p.fontSize = px
	p.clamp()
}

// Resize sets the viewport height and, when contentHeight > 0, the measured
// content height.
func (p *Page) Resize(height, contentHeight float64) {
	p.height = max(height, 0)
	if contentHeight > 0 {
		p.measured = contentHeight
	}
	p.clamp()
}

func (p *Page) clamp() {
	p.offset = min(p.offset, p.MaxOffset())
}
