package worker

import (
	"errors"
	"sync"

	"github.com/oneclick/wa-gateway/pkg/logger"
)

type WorkerHandler = func(workerIndex int, job interface{})

// WorkerManager fans jobs out over a fixed pool of goroutines. Publish
// with Enqueue; the pool runs until Exit is called. The job channel may
// be shared with other producers, so Exit never closes it.
type WorkerManager struct {
	jobChannel     chan interface{}
	numberOfWorker int
	stop           chan struct{}
	stopOnce       sync.Once
	do             WorkerHandler
	waiter         sync.WaitGroup
}

func NewWorkerManager(bufferSize, numberOfWorkers int, jobChannel chan interface{}) *WorkerManager {
	if jobChannel == nil {
		jobChannel = make(chan interface{}, bufferSize)
	}
	return &WorkerManager{
		numberOfWorker: numberOfWorkers,
		jobChannel:     jobChannel,
		stop:           make(chan struct{}),
	}
}

func (w *WorkerManager) SetWorker(worker WorkerHandler) {
	w.do = worker
}

// Enqueue publishes a job onto the channel. Blocks when the buffer is
// full, which backpressures the queue consumers.
func (w *WorkerManager) Enqueue(val interface{}) {
	w.jobChannel <- val
}

// Start runs the pool and blocks until Exit is called.
func (w *WorkerManager) Start() error {
	w.waiter.Add(w.numberOfWorker)
	for i := 0; i < w.numberOfWorker; i++ {
		go func(index int) {
			defer w.waiter.Done()
			for {
				select {
				case job := <-w.jobChannel:
					w.do(index, job)
				case <-w.stop:
					return
				}
			}
		}(i)
	}
	w.waiter.Wait()

	return errors.New("workers terminated")
}

// Exit stops every worker after its current job.
func (w *WorkerManager) Exit() {
	w.stopOnce.Do(func() {
		logger.Info("worker manager shutting down", "workers", w.numberOfWorker)
		close(w.stop)
	})
}
