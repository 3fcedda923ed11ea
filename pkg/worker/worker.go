package worker

import (
	"context"
	"sync"

	"github.com/nimasrn/cashback-ledger/pkg/logger"
)

type WorkerHandler = func(workerIndex int, job interface{})

// WorkerManager distributes jobs published with Enqueue over a fixed pool of
// goroutines. Workers run until Exit is called or the context given to Start
// is cancelled.
type WorkerManager struct {
	bufferSize     int
	jobChannel     chan interface{}
	numberOfWorker int
	quit           chan struct{}
	quitOnce       sync.Once
	do             WorkerHandler
	waiter         *sync.WaitGroup
}

// NewWorkerManager creates a pool of numberOfWorkers workers. When
// jobChannel is nil a channel of bufferSize is created. An external channel
// is never closed by the manager.
func NewWorkerManager(bufferSize, numberOfWorkers int, jobChannel chan interface{}) *WorkerManager {
	if numberOfWorkers <= 0 {
		numberOfWorkers = 1
	}
	if jobChannel == nil {
		jobChannel = make(chan interface{}, bufferSize)
	}

	return &WorkerManager{
		bufferSize:     bufferSize,
		numberOfWorker: numberOfWorkers,
		jobChannel:     jobChannel,
		quit:           make(chan struct{}),
		waiter:         &sync.WaitGroup{},
	}
}

func (w *WorkerManager) GetUnreadCount() int64 {
	return int64(len(w.jobChannel))
}

func (w *WorkerManager) Size() int {
	return w.numberOfWorker
}

func (w *WorkerManager) SetWorker(worker WorkerHandler) {
	w.do = worker
}

// Enqueue publishes a job. It blocks while the buffer is full and gives up
// when ctx is done or the manager has exited.
func (w *WorkerManager) Enqueue(ctx context.Context, val interface{}) error {
	select {
	case <-w.quit:
		return ErrExited
	default:
	}

	select {
	case w.jobChannel <- val:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-w.quit:
		return ErrExited
	}
}

// Start runs the workers and blocks until they all stop.
func (w *WorkerManager) Start(ctx context.Context) error {
	w.waiter.Add(w.numberOfWorker)
	for i := 0; i < w.numberOfWorker; i++ {
		go func(index int) {
			defer w.waiter.Done()
			for {
				select {
				case job := <-w.jobChannel:
					w.do(index, job)
				case <-w.quit:
					return
				case <-ctx.Done():
					return
				}
			}
		}(i)
	}
	w.waiter.Wait()

	return ErrExited
}

// Exit stops every worker after its current job.
func (w *WorkerManager) Exit() {
	w.quitOnce.Do(func() {
		logger.Info("worker manager is shutting down", "workers", w.numberOfWorker)
		close(w.quit)
	})
}
