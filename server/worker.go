package server

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

var errWorkerStopped = errors.New("worker stopped")

// Workspace holds the analysis of every open document.
type Workspace struct {
	docs map[string]*Analysis
}

// NewWorkspace returns an empty workspace.
func NewWorkspace() *Workspace {
	return &Workspace{docs: make(map[string]*Analysis)}
}

// Update re-analyzes the document at uri.
func (ws *Workspace) Update(uri, text string) *Analysis {
	a := Analyze(text)
	ws.docs[uri] = a
	return a
}

// Get returns the analysis of an open document.
func (ws *Workspace) Get(uri string) (*Analysis, bool) {
	a, ok := ws.docs[uri]
	return a, ok
}

// Close forgets a document.
func (ws *Workspace) Close(uri string) {
	delete(ws.docs, uri)
}

// URIs lists the open documents, sorted.
func (ws *Workspace) URIs() []string {
	uris := make([]string, 0, len(ws.docs))
	for uri := range ws.docs {
		uris = append(uris, uri)
	}
	sort.Strings(uris)
	return uris
}

// request is a unit of work to be executed on the worker goroutine.
type request struct {
	fn   func(*Workspace) interface{}
	done chan result
}

// result holds the return value from a workspace operation.
type result struct {
	value interface{}
	err   error
}

// Worker serializes all workspace access through a single goroutine.
// glsp dispatches notifications and requests concurrently.
type Worker struct {
	ws       *Workspace
	requests chan request
	quit     chan struct{}
	stop     sync.Once
}

// NewWorker creates a Worker and starts the processing goroutine.
func NewWorker(ws *Workspace) *Worker {
	w := &Worker{
		ws:       ws,
		requests: make(chan request, 64),
		quit:     make(chan struct{}),
	}
	go w.loop()
	return w
}

func (w *Worker) loop() {
	for {
		select {
		case req := <-w.requests:
			req.done <- w.execute(req.fn)
		case <-w.quit:
			return
		}
	}
}

// execute runs fn on the workspace, recovering from panics.
func (w *Worker) execute(fn func(*Workspace) interface{}) result {
	var r result
	func() {
		defer func() {
			if p := recover(); p != nil {
				r.err = fmt.Errorf("%v", p)
			}
		}()
		r.value = fn(w.ws)
	}()
	return r
}

// Do submits fn for execution on the worker goroutine and blocks until it
// completes. Returns the result and any error (including panics).
func (w *Worker) Do(fn func(*Workspace) interface{}) (interface{}, error) {
	select {
	case <-w.quit:
		return nil, errWorkerStopped
	default:
	}

	req := request{
		fn:   fn,
		done: make(chan result, 1),
	}
	select {
	case w.requests <- req:
	case <-w.quit:
		return nil, errWorkerStopped
	}
	select {
	case r := <-req.done:
		return r.value, r.err
	case <-w.quit:
		return nil, errWorkerStopped
	}
}

// Stop shuts down the worker goroutine. It is safe to call more than once.
func (w *Worker) Stop() {
	w.stop.Do(func() { close(w.quit) })
}
