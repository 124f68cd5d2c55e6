// Package scheduler fans commands out across targets with a bounded worker
// pool and assembles one HostResult per target in input order.
package scheduler

import (
	"context"
	"sync"
	"time"

	ferrors "fleetrun/internal/errors"
	"fleetrun/internal/logging"
	"fleetrun/internal/result"
	"fleetrun/internal/session"
	"fleetrun/internal/transport"
)

// canceledMarker is recorded for targets whose work never ran because the
// run context was canceled first.
const canceledMarker = "run canceled"

// Target is one host and its ordered command list.
type Target struct {
	Name     string
	Commands []string
}

// Config holds the fan-out parameters.
type Config struct {
	// Workers caps pool size; the effective pool is min(Workers, targets)
	// and never below 1.
	Workers int

	// Delay is slept between consecutive dispatches to pace connection
	// storms against shared infrastructure.
	Delay time.Duration

	// VerifyFirstLogin runs the first target alone; if its connect fails
	// with a password-class error the remaining targets run serially so a
	// bad password cannot trip lockout thresholds fleet-wide.
	VerifyFirstLogin bool

	// Session is the per-target session template; Target is filled in per
	// host.
	Session session.Config
}

// Scheduler runs targets through a worker pool. Each worker owns one session
// at a time; sessions are never shared across targets.
type Scheduler struct {
	cfg    Config
	tr     transport.Transport
	logger *logging.Logger

	// OnHostDone, when set, is called once per completed target.
	OnHostDone func(name string, failed bool)
}

// New creates a scheduler.
func New(cfg Config, tr transport.Transport, logger *logging.Logger) *Scheduler {
	return &Scheduler{cfg: cfg, tr: tr, logger: logger}
}

type job struct {
	index  int
	target Target
}

// Run executes every target's commands and returns exactly one HostResult per
// target, indexed in input order regardless of completion order. Run returns
// only after every worker has finished (or the context is canceled and the
// in-flight work has been ended best-effort).
func (s *Scheduler) Run(ctx context.Context, targets []Target) []result.HostResult {
	if len(targets) == 0 {
		return nil
	}

	start := time.Now()
	results := make([]result.HostResult, len(targets))

	var failures sync.Map
	first := 0
	workers := poolSize(s.cfg.Workers, len(targets))

	if s.logger != nil {
		s.logger.LogDispatch(len(targets), workers, countCommands(targets))
	}

	if s.cfg.VerifyFirstLogin && len(targets) > 1 {
		res, failed := s.runTarget(ctx, targets[0])
		results[0] = res
		s.hostDone(targets[0].Name, failed, &failures)
		first = 1

		if failed && s.passwordRejected(res) {
			workers = 1
			if s.logger != nil {
				s.logger.Info("first login rejected, continuing serially",
					"host", targets[0].Name,
				)
			}
		}
	}

	jobs := make(chan job)
	var wg sync.WaitGroup

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := range jobs {
				res, failed := s.runTarget(ctx, j.target)
				results[j.index] = res
				s.hostDone(j.target.Name, failed, &failures)
			}
		}()
	}

	// dispatcher: one job per target, paced by the configured delay
	for i := first; i < len(targets); i++ {
		select {
		case jobs <- job{index: i, target: targets[i]}:
		case <-ctx.Done():
			// fill every undispatched target so the result slice stays
			// complete
			for k := i; k < len(targets); k++ {
				results[k] = canceledResult(targets[k].Name)
				s.hostDone(targets[k].Name, true, &failures)
			}
			i = len(targets)
		}

		if s.cfg.Delay > 0 && i < len(targets)-1 {
			select {
			case <-time.After(s.cfg.Delay):
			case <-ctx.Done():
			}
		}
	}
	close(jobs)
	wg.Wait()

	if s.logger != nil {
		s.logger.LogRunComplete(len(targets), countFailures(&failures), time.Since(start))
	}
	return results
}

// runTarget drives one session through the target's command list. Connect
// failures yield a single synthetic entry; otherwise the result carries one
// entry per command in issue order.
func (s *Scheduler) runTarget(ctx context.Context, t Target) (result.HostResult, bool) {
	sess := session.New(s.sessionConfig(t.Name), s.tr, s.logger)
	defer sess.End()

	if err := sess.Connect(ctx); err != nil {
		return result.HostResult{
			Name: t.Name,
			Results: []result.CommandResult{
				{Command: "login", Output: ferrors.KindOf(err).Message()},
			},
		}, true
	}

	failed := false
	entries := make([]result.CommandResult, 0, len(t.Commands))
	for _, command := range t.Commands {
		if ctx.Err() != nil {
			entries = append(entries, result.CommandResult{Command: command, Output: canceledMarker})
			failed = true
			continue
		}

		output, err := sess.Run(ctx, command)
		if err != nil {
			output = ferrors.KindOf(err).Message()
			failed = true
		}
		entries = append(entries, result.CommandResult{Command: command, Output: output})
	}

	if sess.State() == session.Closed {
		failed = true
	}
	return result.HostResult{Name: t.Name, Results: entries}, failed
}

func (s *Scheduler) sessionConfig(name string) session.Config {
	cfg := s.cfg.Session
	cfg.Target = name
	return cfg
}

func (s *Scheduler) hostDone(name string, failed bool, failures *sync.Map) {
	if failed {
		failures.Store(name, true)
	}
	if s.OnHostDone != nil {
		s.OnHostDone(name, failed)
	}
}

// passwordRejected reports whether a verify-first result failed on a
// password-class error.
func (s *Scheduler) passwordRejected(res result.HostResult) bool {
	if len(res.Results) != 1 || res.Results[0].Command != "login" {
		return false
	}
	switch res.Results[0].Output {
	case ferrors.KindPasswordDenied.Message(),
		ferrors.KindPermissionDenied.Message(),
		ferrors.KindUnexpectedPasswordPrompt.Message():
		return true
	}
	return false
}

func canceledResult(name string) result.HostResult {
	return result.HostResult{
		Name: name,
		Results: []result.CommandResult{
			{Command: "login", Output: canceledMarker},
		},
	}
}

// poolSize bounds the worker pool to min(configured, targets), at least 1.
func poolSize(configured, targets int) int {
	if configured < 1 {
		configured = 1
	}
	if targets > 0 && configured > targets {
		return targets
	}
	return configured
}

func countCommands(targets []Target) int {
	total := 0
	for _, t := range targets {
		total += len(t.Commands)
	}
	return total
}

func countFailures(failures *sync.Map) int {
	count := 0
	failures.Range(func(_, _ any) bool {
		count++
		return true
	})
	return count
}
