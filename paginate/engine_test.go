package paginate

import (
	"context"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-playground/assert/v2"
)

func testSettings(workerCount int) *EngineSettings {
	return &EngineSettings{
		WorkerCount:  workerCount,
		ChunkTimeout: 10 * time.Second,
		Height:       EstimateHeight,
	}
}

func testElements(n int) []Element {
	types := []ElementType{
		ElementSceneHeading,
		ElementAction,
		ElementCharacter,
		ElementDialogue,
		ElementParenthetical,
		ElementTransition,
	}
	elements := make([]Element, n)
	for i := 0; i < n; i += 1 {
		elements[i] = Element{
			Type:     types[i%len(types)],
			Content:  strings.Repeat("x", 1+(i*37)%180),
			Position: i,
		}
	}
	return elements
}

func assertCoverage(t *testing.T, elements []Element, result *Result) {
	assert.Equal(t, len(elements), result.ElementCount())
	flattened := result.Elements()
	for i, element := range flattened {
		assert.Equal(t, elements[i].Position, element.Position)
		assert.Equal(t, elements[i].Content, element.Content)
	}
}

func TestCoverageAndOrder(t *testing.T) {
	cancelCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	elements := testElements(500)

	for _, workerCount := range []int{0, 1, 8} {
		engine := NewEngine(cancelCtx, testSettings(workerCount))
		defer engine.Close()

		result, err := engine.Paginate(cancelCtx, elements, DefaultPageHeight)
		assert.Equal(t, nil, err)
		// every element exactly once, in document order, for the
		// fallback and for any pool size
		assertCoverage(t, elements, result)
	}
}

func TestSingleChunkMatchesFallback(t *testing.T) {
	cancelCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	elements := testElements(120)

	parallel := NewEngine(cancelCtx, testSettings(1))
	defer parallel.Close()
	fallback := NewEngine(cancelCtx, testSettings(0))
	defer fallback.Close()

	parallelResult, err := parallel.Paginate(cancelCtx, elements, DefaultPageHeight)
	assert.Equal(t, nil, err)
	fallbackResult, err := fallback.Paginate(cancelCtx, elements, DefaultPageHeight)
	assert.Equal(t, nil, err)

	// a single chunk reproduces the reference semantics exactly
	assert.Equal(t, fallbackResult.Pages, parallelResult.Pages)
}

func TestIdempotentBoundaries(t *testing.T) {
	cancelCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	elements := testElements(300)
	engine := NewEngine(cancelCtx, testSettings(8))
	defer engine.Close()

	first, err := engine.Paginate(cancelCtx, elements, DefaultPageHeight)
	assert.Equal(t, nil, err)
	second, err := engine.Paginate(cancelCtx, elements, DefaultPageHeight)
	assert.Equal(t, nil, err)

	assert.Equal(t, first.Pages, second.Pages)
}

func TestEmptyInput(t *testing.T) {
	cancelCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	engine := NewEngine(cancelCtx, testSettings(4))
	defer engine.Close()

	result, err := engine.Paginate(cancelCtx, []Element{}, DefaultPageHeight)
	assert.Equal(t, nil, err)
	assert.Equal(t, 0, len(result.Pages))
}

func TestOversizedElementOwnPage(t *testing.T) {
	cancelCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	short := Element{Type: ElementAction, Content: "He runs.", Position: 0}
	// far taller than the budget; never split, never dropped
	oversized := Element{Type: ElementAction, Content: strings.Repeat("y", 1000), Position: 1}
	trailing := Element{Type: ElementAction, Content: "He stops.", Position: 2}

	engine := NewEngine(cancelCtx, testSettings(0))
	defer engine.Close()

	budget := 100
	assert.Equal(t, true, budget < EstimateHeight(oversized))

	result, err := engine.Paginate(cancelCtx, []Element{short, oversized, trailing}, budget)
	assert.Equal(t, nil, err)
	assert.Equal(t, 3, len(result.Pages))
	assert.Equal(t, 1, len(result.Pages[1].Elements))
	assert.Equal(t, oversized.Position, result.Pages[1].Elements[0].Position)
}

func TestSceneHeadingActionSplit(t *testing.T) {
	cancelCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sceneHeading := Element{Type: ElementSceneHeading, Content: "INT. HOUSE", Position: 0}
	action := Element{Type: ElementAction, Content: strings.Repeat("A", 200), Position: 1}
	elements := []Element{sceneHeading, action}

	// each fits alone, together they overflow: the greedy rule closes
	// the page after the heading and never splits the action
	budget := 80
	assert.Equal(t, true, EstimateHeight(sceneHeading) <= budget)
	assert.Equal(t, true, EstimateHeight(action) <= budget)
	assert.Equal(t, true, budget < EstimateHeight(sceneHeading)+EstimateHeight(action))

	for _, workerCount := range []int{0, 1} {
		engine := NewEngine(cancelCtx, testSettings(workerCount))
		defer engine.Close()

		result, err := engine.Paginate(cancelCtx, elements, budget)
		assert.Equal(t, nil, err)
		assert.Equal(t, 2, len(result.Pages))
		assert.Equal(t, []Element{sceneHeading}, result.Pages[0].Elements)
		assert.Equal(t, []Element{action}, result.Pages[1].Elements)
	}
}

func TestChunkTimeoutPartialMerge(t *testing.T) {
	cancelCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// elements in the second chunk hang their worker past the chunk
	// timeout; the first chunk's pages still merge
	elements := testElements(20)
	for i := 10; i < 20; i += 1 {
		elements[i].Type = ElementAction
		elements[i].Content = "SLOW"
	}

	settings := &EngineSettings{
		WorkerCount:  2,
		ChunkTimeout: 50 * time.Millisecond,
		Height: func(element Element) int {
			if element.Content == "SLOW" {
				time.Sleep(200 * time.Millisecond)
			}
			return EstimateHeight(element)
		},
	}
	engine := NewEngine(cancelCtx, settings)
	defer engine.Close()

	result, err := engine.Paginate(cancelCtx, elements, DefaultPageHeight)
	assert.Equal(t, nil, err)

	// the hung chunk is dropped for this run
	assert.Equal(t, 10, result.ElementCount())
	flattened := result.Elements()
	for i, element := range flattened {
		assert.Equal(t, i, element.Position)
	}
}

func TestAllChunksFailFallback(t *testing.T) {
	cancelCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	elements := testElements(10)

	// each chunk dies on its first height call; the fallback run sees
	// later calls and succeeds
	calls := &atomic.Int32{}
	settings := &EngineSettings{
		WorkerCount:  2,
		ChunkTimeout: 10 * time.Second,
		Height: func(element Element) int {
			if n := calls.Add(1); n <= 2 {
				panic("synthetic worker failure")
			}
			return EstimateHeight(element)
		},
	}
	engine := NewEngine(cancelCtx, settings)
	defer engine.Close()

	result, err := engine.Paginate(cancelCtx, elements, DefaultPageHeight)
	assert.Equal(t, nil, err)
	assertCoverage(t, elements, result)
}

func TestClosedEngine(t *testing.T) {
	cancelCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	engine := NewEngine(cancelCtx, testSettings(2))
	engine.Close()

	_, err := engine.Paginate(cancelCtx, testElements(10), DefaultPageHeight)
	assert.NotEqual(t, nil, err)
}
