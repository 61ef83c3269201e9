// Package worker bounds how many submissions run at the same time.
package worker

import (
	"context"
	"errors"
	"runtime"
	"sync"
)

const maxWaiting = 512

// ErrShutdown is returned for requests submitted after Shutdown
var ErrShutdown = errors.New("worker: shut down")

// Config defines worker configuration
type Config struct {
	Executor     Executor
	Parallelism  int
	ExecObserver func(Response)
}

// Worker defines interface for executor
type Worker interface {
	Start()
	Submit(context.Context, *Request) <-chan Response
	Execute(context.Context, *Request) <-chan Response
	Shutdown()
}

type worker struct {
	executor     Executor
	parallelism  int
	execObserver func(Response)

	startOnce sync.Once
	stopOnce  sync.Once
	wg        sync.WaitGroup
	workCh    chan workRequest
	done      chan struct{}

	// held for reading while a request is being queued
	submitMu sync.RWMutex
}

type workRequest struct {
	*Request
	context.Context
	resultCh chan<- Response
}

// New creates new worker, parallelism defaults to the number of CPUs
func New(conf Config) Worker {
	p := conf.Parallelism
	if p <= 0 {
		p = runtime.NumCPU()
	}
	return &worker{
		executor:     conf.Executor,
		parallelism:  p,
		execObserver: conf.ExecObserver,
		workCh:       make(chan workRequest, maxWaiting),
		done:         make(chan struct{}),
	}
}

// Start starts worker loops with given parallelism
func (w *worker) Start() {
	w.startOnce.Do(func() {
		w.wg.Add(w.parallelism)
		for range w.parallelism {
			go w.loop()
		}
	})
}

// Submit queues a single request. The request waits for a free slot until
// ctx is done.
func (w *worker) Submit(ctx context.Context, req *Request) <-chan Response {
	ch := make(chan Response, 1)
	w.submitMu.RLock()
	defer w.submitMu.RUnlock()
	select {
	case <-w.done:
		ch <- Response{RequestID: req.RequestID, Error: ErrShutdown}
		return ch
	default:
	}
	select {
	case w.workCh <- workRequest{Request: req, Context: ctx, resultCh: ch}:
	case <-ctx.Done():
		ch <- Response{RequestID: req.RequestID, Error: ctx.Err()}
	case <-w.done:
		ch <- Response{RequestID: req.RequestID, Error: ErrShutdown}
	}
	return ch
}

// Execute will execute the request in new goroutine (bypass the parallelism limit)
func (w *worker) Execute(ctx context.Context, req *Request) <-chan Response {
	ch := make(chan Response, 1)
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		w.workDoCmd(workRequest{Request: req, Context: ctx, resultCh: ch})
	}()
	return ch
}

// Shutdown waits all running requests to finish, queued requests are
// answered with ErrShutdown
func (w *worker) Shutdown() {
	w.stopOnce.Do(func() {
		close(w.done)
		w.submitMu.Lock()
		w.submitMu.Unlock()
		w.wg.Wait()
		for {
			select {
			case req := <-w.workCh:
				req.resultCh <- Response{RequestID: req.RequestID, Error: ErrShutdown}
			default:
				return
			}
		}
	})
}

func (w *worker) loop() {
	defer w.wg.Done()
	for {
		select {
		case req := <-w.workCh:
			w.workDoCmd(req)
		case <-w.done:
			return
		}
	}
}

func (w *worker) workDoCmd(req workRequest) {
	var rt Response
	if err := req.Context.Err(); err != nil {
		// gave up while queued
		rt.Error = err
	} else {
		rt.Result, rt.Error = w.executor.Run(req.Context, req.Request)
	}
	rt.RequestID = req.RequestID
	if w.execObserver != nil {
		w.execObserver(rt)
	}
	req.resultCh <- rt
}
