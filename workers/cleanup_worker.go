package workers

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// CleanupTask removes expired state and reports how many items it removed.
type CleanupTask struct {
	Name        string
	Description string
	Interval    time.Duration
	Function    func(ctx context.Context) (int, error)

	lastRun time.Time
	nextRun time.Time
}

type CleanupWorkerStats struct {
	TasksExecuted int64     `json:"tasks_executed"`
	TasksFailed   int64     `json:"tasks_failed"`
	ItemsRemoved  int64     `json:"items_removed"`
	LastCleanupAt time.Time `json:"last_cleanup_at"`
	StartTime     time.Time `json:"start_time"`
}

// CleanupWorker runs cleanup tasks on their own intervals from a single
// scheduler goroutine.
type CleanupWorker struct {
	tasks []CleanupTask
	tick  time.Duration

	// Worker state
	isRunning bool
	mutex     sync.RWMutex

	// Context for shutdown
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	stats      CleanupWorkerStats
	statsMutex sync.RWMutex
}

// NewCleanupWorker checks for due tasks every tick.
func NewCleanupWorker(tick time.Duration, tasks ...CleanupTask) *CleanupWorker {
	ctx, cancel := context.WithCancel(context.Background())

	now := time.Now()
	for i := range tasks {
		tasks[i].nextRun = now.Add(tasks[i].Interval)
	}

	return &CleanupWorker{
		tasks:  tasks,
		tick:   tick,
		ctx:    ctx,
		cancel: cancel,
		stats: CleanupWorkerStats{
			StartTime: now,
		},
	}
}

func (cw *CleanupWorker) Start() {
	cw.mutex.Lock()
	defer cw.mutex.Unlock()

	if cw.isRunning {
		return
	}
	cw.isRunning = true

	cw.wg.Add(1)
	go cw.taskScheduler()

	logrus.Infof("Cleanup Worker started with %d tasks", len(cw.tasks))
}

func (cw *CleanupWorker) Stop() {
	cw.mutex.Lock()
	defer cw.mutex.Unlock()

	if !cw.isRunning {
		return
	}

	cw.cancel()
	cw.isRunning = false
	cw.wg.Wait()

	logrus.Info("Cleanup Worker stopped")
}

func (cw *CleanupWorker) GetStats() CleanupWorkerStats {
	cw.statsMutex.RLock()
	defer cw.statsMutex.RUnlock()
	return cw.stats
}

func (cw *CleanupWorker) taskScheduler() {
	defer cw.wg.Done()

	ticker := time.NewTicker(cw.tick)
	defer ticker.Stop()

	for {
		select {
		case now := <-ticker.C:
			cw.executeScheduledTasks(now)

		case <-cw.ctx.Done():
			return
		}
	}
}

func (cw *CleanupWorker) executeScheduledTasks(now time.Time) {
	for i := range cw.tasks {
		task := &cw.tasks[i]
		if now.Before(task.nextRun) {
			continue
		}

		removed, err := task.Function(cw.ctx)
		task.lastRun = now
		task.nextRun = now.Add(task.Interval)

		cw.statsMutex.Lock()
		cw.stats.TasksExecuted++
		cw.stats.ItemsRemoved += int64(removed)
		cw.stats.LastCleanupAt = now
		if err != nil {
			cw.stats.TasksFailed++
		}
		cw.statsMutex.Unlock()

		entry := logrus.WithFields(logrus.Fields{
			"task":    task.Name,
			"removed": removed,
		})
		if err != nil {
			entry.WithError(err).Error("Cleanup task failed")
			continue
		}
		if removed > 0 {
			entry.Info("Cleanup task completed")
		}
	}
}
