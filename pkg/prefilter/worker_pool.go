package prefilter

import (
	"errors"
	"fmt"
	"runtime"
	"sync"

	"github.com/df07/go-ibl-baker/pkg/core"
)

// ErrNonFinite is reported when a kernel produces NaN or infinite radiance
var ErrNonFinite = errors.New("non-finite texel value")

// TexelKernel computes the color for one cubemap direction
type TexelKernel func(dir core.Vec3) core.Vec3

// levelJob is one cubemap level being filled in
type levelJob struct {
	faces  core.FaceSet
	size   int
	kernel TexelKernel
}

// RowTask represents one face row for the worker pool
type RowTask struct {
	job    *levelJob
	Face   core.CubeFace
	Row    int
	TaskID int // For matching results to submissions
}

// RowResult contains the result from rasterizing a row
type RowResult struct {
	TaskID int
	Texels int
	Error  error
}

// WorkerPool manages parallel row rasterization
type WorkerPool struct {
	taskQueue   chan RowTask
	resultQueue chan RowResult
	workers     []*Worker
	numWorkers  int
	wg          sync.WaitGroup
}

// Worker handles individual row tasks
type Worker struct {
	ID          int
	taskQueue   chan RowTask
	resultQueue chan RowResult
}

// NewWorkerPool creates a worker pool with the specified number of workers.
// maxTasks bounds the number of tasks that may be queued before results are read.
func NewWorkerPool(numWorkers, maxTasks int) *WorkerPool {
	if numWorkers <= 0 {
		numWorkers = runtime.NumCPU()
	}

	wp := &WorkerPool{
		taskQueue:   make(chan RowTask, maxTasks),
		resultQueue: make(chan RowResult, maxTasks),
		numWorkers:  numWorkers,
	}

	for i := 0; i < numWorkers; i++ {
		wp.workers = append(wp.workers, &Worker{
			ID:          i,
			taskQueue:   wp.taskQueue,
			resultQueue: wp.resultQueue,
		})
	}

	return wp
}

// Start begins all workers
func (wp *WorkerPool) Start() {
	for _, worker := range wp.workers {
		wp.wg.Add(1)
		go worker.run(&wp.wg)
	}
}

// Stop gracefully shuts down all workers
func (wp *WorkerPool) Stop() {
	close(wp.taskQueue) // No more tasks
	wp.wg.Wait()        // Wait for workers to finish
	close(wp.resultQueue)
}

// SubmitTask submits a row task to the worker pool
func (wp *WorkerPool) SubmitTask(task RowTask) {
	wp.taskQueue <- task
}

// GetResult retrieves a completed row result
func (wp *WorkerPool) GetResult() (RowResult, bool) {
	result, ok := <-wp.resultQueue
	return result, ok
}

// GetNumWorkers returns the number of workers in the pool
func (wp *WorkerPool) GetNumWorkers() int {
	return wp.numWorkers
}

// run is the main worker loop
func (w *Worker) run(wg *sync.WaitGroup) {
	defer wg.Done()

	for task := range w.taskQueue {
		// Each task owns one row of one face, so writes never overlap
		face := task.job.faces[task.Face]
		size := task.job.size
		var err error
		for x := 0; x < size; x++ {
			dir := core.TexelDirection(task.Face, x, task.Row, size)
			color := task.job.kernel(dir)
			if !color.IsFinite() && err == nil {
				err = fmt.Errorf("face %s texel (%d,%d): %w", task.Face, x, task.Row, ErrNonFinite)
			}
			face.Set(x, task.Row, color)
		}

		w.resultQueue <- RowResult{
			TaskID: task.TaskID,
			Texels: size,
			Error:  err,
		}
	}
}

// rasterize fills every texel of job using the pool and returns the texel count
func (wp *WorkerPool) rasterize(job *levelJob) (int, error) {
	tasks := 0
	for _, face := range core.Faces() {
		for row := 0; row < job.size; row++ {
			wp.SubmitTask(RowTask{job: job, Face: face, Row: row, TaskID: tasks})
			tasks++
		}
	}

	texels := 0
	var firstErr error
	for i := 0; i < tasks; i++ {
		result, ok := wp.GetResult()
		if !ok {
			break
		}
		if result.Error != nil && firstErr == nil {
			firstErr = result.Error
		}
		texels += result.Texels
	}
	return texels, firstErr
}
