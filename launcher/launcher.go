// Package launcher hosts a process's workers and health endpoint, the way
// pipe.go hosts streams in the teacher repository. It performs no cluster
// bootstrap and wires no network connections to its workers.
package launcher

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"sync"
	"time"

	fiber "github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/sirupsen/logrus"

	timely "github.com/flowmesh/timely"
)

var defaultLogger = &logrus.Logger{
	Out:       os.Stderr,
	Formatter: new(logrus.TextFormatter),
	Hooks:     make(logrus.LevelHooks),
	Level:     logrus.WarnLevel,
}

// WorkerHealth is the health snapshot of one worker reported at /health.
type WorkerHealth struct {
	Index         int       `json:"index"`
	DataflowCount int       `json:"dataflow_count"`
	LastStep      time.Time `json:"last_step"`
	mtx           sync.Mutex
}

// Launcher runs a fixed set of workers on this process and a /health
// endpoint reporting their progress. It does not call Bootstrap or connect
// this process to its peers; the workers run with whatever allocators the
// caller wired into them (spec.md §6, §9's Open Question resolution
// splitting Bootstrap from wiring).
type Launcher[T comparable, S any] struct {
	id      string
	app     *fiber.App
	logger  *logrus.Logger
	workers []*timely.Worker[T, S]
	health  []*WorkerHealth
}

// New builds a launcher hosting the given workers. If logger is nil, a
// warn-level stderr logger is used.
func New[T comparable, S any](id string, workers []*timely.Worker[T, S], logger *logrus.Logger, config ...fiber.Config) *Launcher[T, S] {
	if logger == nil {
		logger = defaultLogger
	}

	l := &Launcher[T, S]{
		id:      id,
		app:     fiber.New(config...),
		logger:  logger,
		workers: workers,
		health:  make([]*WorkerHealth, len(workers)),
	}

	for i, w := range workers {
		l.health[i] = &WorkerHealth{Index: w.Index}
	}

	l.app.Use(recover.New())
	l.app.Get("/health", func(c *fiber.Ctx) error {
		return c.Status(http.StatusOK).JSON(map[string]interface{}{
			"launcher_id": l.id,
			"workers":     l.health,
		})
	})

	return l
}

// Run starts one scheduling goroutine per worker, each looping
// StepOrPark until ctx is cancelled, and blocks serving /health on addr
// until the process is asked to shut down.
func (l *Launcher[T, S]) Run(ctx context.Context, addr string, parkTimeout time.Duration) error {
	if len(l.workers) == 0 {
		return fmt.Errorf("launcher: no workers configured")
	}

	var wg sync.WaitGroup
	for i, w := range l.workers {
		wg.Add(1)
		go func(i int, w *timely.Worker[T, S]) {
			defer wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				default:
				}
				w.StepOrPark(parkTimeout)

				l.health[i].mtx.Lock()
				l.health[i].DataflowCount = w.DataflowCount()
				l.health[i].LastStep = time.Now()
				l.health[i].mtx.Unlock()
			}
		}(i, w)
	}

	go func() {
		<-ctx.Done()
		if err := l.app.Shutdown(); err != nil {
			l.logger.Error(err)
		}
	}()

	err := l.app.Listen(addr)
	wg.Wait()
	return err
}
