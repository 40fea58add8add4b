package paginate

import (
	"fmt"

	"github.com/golang/glog"
)

// Worker protocol: one request per contiguous chunk, one reply per
// request. Workers run in isolation and only talk to the dispatcher.

type chunkRequest struct {
	elements   []Element
	startIndex int
	chunkCount int
	pageHeight int
	// buffered so an abandoned (timed out) chunk never blocks the worker
	reply chan *chunkResult
}

type chunkResult struct {
	ok         bool
	err        error
	pages      []Page
	startIndex int
	chunkCount int
}

func (self *Engine) worker(workerId int) {
	for {
		select {
		case <-self.ctx.Done():
			return
		case request := <-self.requests:
			request.reply <- self.runChunk(request)
		}
	}
}

func (self *Engine) runChunk(request *chunkRequest) (result *chunkResult) {
	defer func() {
		if r := recover(); r != nil {
			glog.Infof("[p]chunk panic start=%d = %v\n", request.startIndex, r)
			result = &chunkResult{
				err:        fmt.Errorf("chunk panic: %v", r),
				startIndex: request.startIndex,
				chunkCount: request.chunkCount,
			}
		}
	}()

	pages := packElements(request.elements, request.pageHeight, self.settings.Height)
	return &chunkResult{
		ok:         true,
		pages:      pages,
		startIndex: request.startIndex,
		chunkCount: request.chunkCount,
	}
}

// packElements is the sequential bin packer, identical on the fallback
// path and inside every worker: close the page before an element that
// would overflow a non-empty page; an element taller than the budget
// stands alone on its own page.
func packElements(elements []Element, pageHeight int, height HeightFunc) []Page {
	pages := []Page{}
	current := Page{}
	for _, element := range elements {
		h := height(element)
		if 0 < len(current.Elements) && pageHeight < current.Height+h {
			pages = append(pages, current)
			current = Page{}
		}
		current.Elements = append(current.Elements, element)
		current.Height += h
	}
	if 0 < len(current.Elements) {
		pages = append(pages, current)
	}
	return pages
}
