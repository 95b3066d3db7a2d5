package rewrite

import (
	"fmt"

	"github.com/JxWayne890/complyflow-financial/internal/common"
)

// DefaultMinSelectionChars rejects single-word fragments
const DefaultMinSelectionChars = 5

// Selection is what the user highlighted. Start and End, when given, are
// rune offsets into Document.Text() and disambiguate repeated text.
type Selection struct {
	Text  string `json:"text"`
	Start *int   `json:"start,omitempty"`
	End   *int   `json:"end,omitempty"`
}

// Span is a byte range [Start, End) of the HTML source
type Span struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// Len returns the span length in bytes
func (s Span) Len() int { return s.End - s.Start }

func (s Span) String() string { return fmt.Sprintf("[%d:%d)", s.Start, s.End) }

// SelectionError explains why a selection could not be resolved
type SelectionError struct {
	Reason string
}

func (e *SelectionError) Error() string { return "selection invalid: " + e.Reason }

// Is makes errors.Is(err, common.ErrSelectionInvalid) hold
func (e *SelectionError) Is(target error) bool { return target == common.ErrSelectionInvalid }

func selectionErr(format string, args ...interface{}) error {
	return &SelectionError{Reason: fmt.Sprintf(format, args...)}
}

// Resolve maps sel to exactly one source span. Whitespace differences
// between the selection and the document are ignored.
func (d *Document) Resolve(sel Selection, minChars int) (Span, error) {
	if minChars <= 0 {
		minChars = DefaultMinSelectionChars
	}
	needle := normalize(sel.Text)
	if len(needle) < minChars {
		return Span{}, selectionErr("selection must be at least %d characters", minChars)
	}

	var at int
	if sel.Start != nil || sel.End != nil {
		if sel.Start == nil || sel.End == nil {
			return Span{}, selectionErr("start and end offsets must be given together")
		}
		s, e := *sel.Start, *sel.End
		if s < 0 || e > len(d.units) || s >= e {
			return Span{}, selectionErr("offsets [%d:%d) out of bounds for text of length %d", s, e, len(d.units))
		}
		s, e = d.trim(s, e)
		if !d.equalAt(s, e, needle) {
			return Span{}, selectionErr("text at offsets [%d:%d) does not match the selection", *sel.Start, *sel.End)
		}
		at = s
	} else {
		matches := d.find(needle)
		switch len(matches) {
		case 0:
			return Span{}, selectionErr("selected text not found in document")
		case 1:
			at = matches[0]
		default:
			return Span{}, selectionErr("selected text occurs %d times; offsets are required", len(matches))
		}
	}

	first, last := d.units[at], d.units[at+len(needle)-1]
	return Span{Start: first.start, End: last.end}, nil
}

func (d *Document) trim(s, e int) (int, int) {
	for s < e && d.units[s].r == ' ' {
		s++
	}
	for e > s && d.units[e-1].r == ' ' {
		e--
	}
	return s, e
}

func (d *Document) equalAt(s, e int, needle []rune) bool {
	if e-s != len(needle) {
		return false
	}
	for i, r := range needle {
		if d.units[s+i].r != r {
			return false
		}
	}
	return true
}

// find returns the start index of every occurrence, overlapping included
func (d *Document) find(needle []rune) []int {
	var out []int
	for i := 0; i+len(needle) <= len(d.units); i++ {
		if d.equalAt(i, i+len(needle), needle) {
			out = append(out, i)
		}
	}
	return out
}
