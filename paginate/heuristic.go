package paginate

import (
	"unicode/utf8"
)

// Layout heuristic shared by the parallel and fallback paths. Heights are
// estimates in points; the renderer owns exact metrics.

const (
	LineHeight     = 12
	CharsPerLine   = 55
	ElementSpacing = 12
	// 55 lines, the usual screenplay page
	DefaultPageHeight = 660
)

type HeightFunc func(element Element) int

// EstimateHeight computes one element's height contribution:
// line height x wrapped line count x type multiplier, plus inter-element
// spacing. Scene headings and character names reserve extra vertical
// space in the rendered layout.
func EstimateHeight(element Element) int {
	chars := utf8.RuneCountInString(element.Content)
	lines := (chars + CharsPerLine - 1) / CharsPerLine
	if lines < 1 {
		lines = 1
	}
	return LineHeight*lines*typeMultiplier(element.Type) + ElementSpacing
}

func typeMultiplier(elementType ElementType) int {
	switch elementType {
	case ElementSceneHeading, ElementCharacter:
		return 2
	default:
		return 1
	}
}
