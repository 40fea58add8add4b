package paginate

import (
	"strings"
	"testing"

	"github.com/go-playground/assert/v2"
)

func TestEstimateHeight(t *testing.T) {
	// one wrapped line, default multiplier
	action := Element{Type: ElementAction, Content: "He runs."}
	assert.Equal(t, LineHeight+ElementSpacing, EstimateHeight(action))

	// 200 chars wrap to 4 lines at 55 chars per line
	long := Element{Type: ElementAction, Content: strings.Repeat("A", 200)}
	assert.Equal(t, 4*LineHeight+ElementSpacing, EstimateHeight(long))

	// scene headings and character names reserve double height
	sceneHeading := Element{Type: ElementSceneHeading, Content: "INT. HOUSE"}
	assert.Equal(t, 2*LineHeight+ElementSpacing, EstimateHeight(sceneHeading))

	character := Element{Type: ElementCharacter, Content: "MARGO"}
	assert.Equal(t, 2*LineHeight+ElementSpacing, EstimateHeight(character))

	// empty content still occupies one line
	empty := Element{Type: ElementAction, Content: ""}
	assert.Equal(t, LineHeight+ElementSpacing, EstimateHeight(empty))

	// unknown types paginate with the default multiplier
	unknown := Element{Type: ElementType("lyric"), Content: "la la la"}
	assert.Equal(t, LineHeight+ElementSpacing, EstimateHeight(unknown))

	// heights count runes, not bytes
	unicode := Element{Type: ElementAction, Content: strings.Repeat("é", 55)}
	assert.Equal(t, LineHeight+ElementSpacing, EstimateHeight(unicode))
}
