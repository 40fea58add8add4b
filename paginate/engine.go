package paginate

import (
	"context"
	"sync"
	"time"

	"github.com/golang/glog"
	"golang.org/x/exp/slices"
)

type EngineSettings struct {
	// 0 disables the pool; every run takes the sequential path
	WorkerCount int
	// independent timeout per chunk, so one hung worker cannot hold up
	// the merge of its siblings
	ChunkTimeout time.Duration
	Height       HeightFunc
}

func DefaultEngineSettings() *EngineSettings {
	return &EngineSettings{
		WorkerCount:  4,
		ChunkTimeout: 10 * time.Second,
		Height:       EstimateHeight,
	}
}

// Engine partitions an element sequence into count-equal contiguous
// chunks, packs each chunk on a pool worker, and merges the chunk pages
// back into document order. Any worker failure is isolated to its chunk;
// if every chunk fails the full input is repacked sequentially.
type Engine struct {
	ctx    context.Context
	cancel context.CancelFunc

	settings *EngineSettings
	requests chan *chunkRequest
}

func NewEngineWithDefaults(ctx context.Context) *Engine {
	return NewEngine(ctx, DefaultEngineSettings())
}

func NewEngine(ctx context.Context, settings *EngineSettings) *Engine {
	cancelCtx, cancel := context.WithCancel(ctx)
	engine := &Engine{
		ctx:      cancelCtx,
		cancel:   cancel,
		settings: settings,
		requests: make(chan *chunkRequest),
	}
	for workerId := 0; workerId < settings.WorkerCount; workerId += 1 {
		go engine.worker(workerId)
	}
	return engine
}

// Paginate flows the elements into pages within the height budget.
// Input order is always preserved; the result never depends on worker
// completion order. Chunks that fail or time out are dropped from the
// merge for this run.
func (self *Engine) Paginate(ctx context.Context, elements []Element, pageHeight int) (*Result, error) {
	if err := self.ctx.Err(); err != nil {
		return nil, err
	}
	if len(elements) == 0 || self.settings.WorkerCount == 0 {
		return self.sequential(elements, pageHeight), nil
	}

	chunkCount := min(self.settings.WorkerCount, len(elements))
	chunkSize := len(elements) / chunkCount

	results := make([]*chunkResult, chunkCount)
	wg := &sync.WaitGroup{}
	for i := 0; i < chunkCount; i += 1 {
		start := i * chunkSize
		end := start + chunkSize
		if i == chunkCount-1 {
			// last chunk absorbs the remainder
			end = len(elements)
		}
		request := &chunkRequest{
			elements:   elements[start:end],
			startIndex: start,
			chunkCount: chunkCount,
			pageHeight: pageHeight,
			reply:      make(chan *chunkResult, 1),
		}

		wg.Add(1)
		go func(i int, request *chunkRequest) {
			defer wg.Done()

			timeout := time.NewTimer(self.settings.ChunkTimeout)
			defer timeout.Stop()

			select {
			case self.requests <- request:
			case <-timeout.C:
				glog.Infof("[p]chunk dispatch timeout start=%d\n", request.startIndex)
				return
			case <-self.ctx.Done():
				return
			case <-ctx.Done():
				return
			}

			select {
			case result := <-request.reply:
				results[i] = result
			case <-timeout.C:
				glog.Infof("[p]chunk timeout start=%d\n", request.startIndex)
			case <-self.ctx.Done():
			case <-ctx.Done():
			}
		}(i, request)
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	successes := []*chunkResult{}
	for _, result := range results {
		switch {
		case result == nil:
			// timed out, logged at the await site
		case !result.ok:
			glog.Infof("[p]chunk failed start=%d = %s\n", result.startIndex, result.err)
		default:
			successes = append(successes, result)
		}
	}

	if len(successes) == 0 {
		glog.Infof("[p]all %d chunks failed, sequential fallback\n", chunkCount)
		return self.sequential(elements, pageHeight), nil
	}

	// document order comes from the chunk start index, not from the
	// workers' own page numbering, which is only approximate
	slices.SortFunc(successes, func(a *chunkResult, b *chunkResult) int {
		return a.startIndex - b.startIndex
	})

	pages := []Page{}
	for _, result := range successes {
		pages = append(pages, result.pages...)
	}
	if len(successes) < chunkCount {
		glog.Infof("[p]merged %d/%d chunks\n", len(successes), chunkCount)
	}
	return &Result{Pages: pages}, nil
}

// sequential is the reference semantics; the parallel path reproduces it
// exactly when run as a single chunk.
func (self *Engine) sequential(elements []Element, pageHeight int) *Result {
	return &Result{
		Pages: packElements(elements, pageHeight, self.settings.Height),
	}
}

// Close stops the pool. In-flight chunk replies are abandoned; workers
// never block on them.
func (self *Engine) Close() {
	self.cancel()
}
