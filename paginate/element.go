// Package paginate re-flows an ordered sequence of screenplay elements
// into fixed-height pages, in parallel across a worker pool with a
// sequential fallback.
package paginate

type ElementType string

// the known screenplay element types. The set is open: unknown types
// paginate with the default height multiplier.
const (
	ElementSceneHeading  ElementType = "scene_heading"
	ElementAction        ElementType = "action"
	ElementCharacter     ElementType = "character"
	ElementDialogue      ElementType = "dialogue"
	ElementParenthetical ElementType = "parenthetical"
	ElementTransition    ElementType = "transition"
	ElementShot          ElementType = "shot"
)

// Element is one screenplay unit. Position is the element's offset in
// the authoritative document; pagination preserves it and never mutates
// it.
type Element struct {
	Type    ElementType `json:"type"`
	Content string      `json:"content"`
	// paired side-by-side dialogue
	Dual     bool `json:"dual,omitempty"`
	Position int  `json:"position"`
}

// Page holds elements whose cumulative estimated height fits the budget,
// except that a page always holds at least one element: an element taller
// than the whole budget gets a page of its own, never split or dropped.
type Page struct {
	Elements []Element `json:"elements"`
	// cumulative estimated height, for diagnostics
	Height int `json:"height"`
}

// Result is the ordered page list of one pagination run. Pages are
// rebuilt wholesale on every run.
type Result struct {
	Pages []Page `json:"pages"`
}

func (self *Result) ElementCount() int {
	n := 0
	for _, page := range self.Pages {
		n += len(page.Elements)
	}
	return n
}

// Elements returns the result flattened back to document order.
func (self *Result) Elements() []Element {
	elements := make([]Element, 0, self.ElementCount())
	for _, page := range self.Pages {
		elements = append(elements, page.Elements...)
	}
	return elements
}
