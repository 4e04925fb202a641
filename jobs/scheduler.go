// Package jobs запускает фоновые проверки по расписанию (gocron) и по команде `jobs run`.
package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/Sarvesh28D/FragsHub-sub000/services"
	"github.com/go-co-op/gocron/v2"
)

const (
	ExpireOrders = "expire-orders"
	AutoStart    = "auto-start"
	Reminders    = "reminders"
	RefundQueue  = "refund-queue"
)

// Одна итерация не должна висеть дольше этого.
const jobTimeout = 10 * time.Minute

var ErrUnknownJob = errors.New("unknown job")

type job struct {
	name       string
	definition gocron.JobDefinition
	run        func(ctx context.Context) error
}

type Runner struct {
	jobs     map[string]job
	notifier services.NotificationService
	logger   *slog.Logger
}

func NewRunner(
	payments services.PaymentService,
	tournaments services.TournamentService,
	reminders services.ReminderService,
	notifier services.NotificationService,
	logger *slog.Logger,
) *Runner {
	r := &Runner{jobs: make(map[string]job), notifier: notifier, logger: logger}

	r.add(ExpireOrders, gocron.DurationJob(time.Hour), func(ctx context.Context) error {
		n, err := payments.ExpireStaleOrders(ctx)
		if err != nil {
			return err
		}
		logger.InfoContext(ctx, "stale orders expired", slog.Int("count", n))
		return nil
	})

	r.add(AutoStart, gocron.DurationJob(30*time.Minute), func(ctx context.Context) error {
		report, err := tournaments.AutoStartTournaments(ctx)
		if report != nil {
			logger.InfoContext(ctx, "auto-start finished",
				slog.Any("started", report.Started), slog.Any("postponed", report.Postponed))
		}
		return err
	})

	r.add(Reminders, gocron.DailyJob(1, gocron.NewAtTimes(gocron.NewAtTime(10, 0, 0))), func(ctx context.Context) error {
		sent, err := reminders.SendReminders(ctx)
		logger.InfoContext(ctx, "reminders sent", slog.Int("count", sent))
		return err
	})

	r.add(RefundQueue, gocron.DurationJob(15*time.Minute), func(ctx context.Context) error {
		report, err := payments.ProcessRefundQueue(ctx)
		if report != nil {
			logger.InfoContext(ctx, "refund queue processed",
				slog.Int("processed", report.Processed), slog.Int("failed", report.Failed), slog.Int("deferred", report.Deferred))
		}
		return err
	})

	return r
}

func (r *Runner) add(name string, def gocron.JobDefinition, run func(ctx context.Context) error) {
	r.jobs[name] = job{name: name, definition: def, run: run}
}

// Names возвращает имена задач в алфавитном порядке.
func (r *Runner) Names() []string {
	names := make([]string, 0, len(r.jobs))
	for name := range r.jobs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// RunNow выполняет задачу один раз. Ошибка уходит в уведомления админки и возвращается вызывающему.
func (r *Runner) RunNow(ctx context.Context, name string) error {
	j, ok := r.jobs[name]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownJob, name)
	}

	ctx, cancel := context.WithTimeout(ctx, jobTimeout)
	defer cancel()

	started := time.Now()
	err := j.run(ctx)
	if err != nil {
		r.logger.ErrorContext(ctx, "job failed", slog.String("job", name), slog.Any("error", err))
		r.notifier.Notify(ctx, services.NotifyJobFailure, fmt.Sprintf("Job %s failed", name), err.Error())
		return fmt.Errorf("job %s: %w", name, err)
	}
	r.logger.InfoContext(ctx, "job finished", slog.String("job", name), slog.Duration("took", time.Since(started)))
	return nil
}

// Start регистрирует все задачи в gocron и запускает планировщик.
// Ежедневные задачи считаются в loc. Остановка через Shutdown у возвращённого планировщика.
func (r *Runner) Start(ctx context.Context, loc *time.Location) (gocron.Scheduler, error) {
	if loc == nil {
		loc = time.UTC
	}
	sched, err := gocron.NewScheduler(gocron.WithLocation(loc), gocron.WithLogger(r.logger))
	if err != nil {
		return nil, fmt.Errorf("failed to create scheduler: %w", err)
	}

	for _, name := range r.Names() {
		name := name
		_, err := sched.NewJob(
			r.jobs[name].definition,
			gocron.NewTask(func() {
				// Ошибка уже залогирована и отправлена в уведомления.
				_ = r.RunNow(ctx, name)
			}),
			gocron.WithName(name),
			gocron.WithSingletonMode(gocron.LimitModeReschedule),
		)
		if err != nil {
			_ = sched.Shutdown()
			return nil, fmt.Errorf("failed to schedule job %s: %w", name, err)
		}
	}

	sched.Start()
	r.logger.Info("scheduler started", slog.Any("jobs", r.Names()), slog.String("location", loc.String()))
	return sched, nil
}
