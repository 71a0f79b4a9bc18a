package handler

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
)

// SchedulerConfig tunes the background task periods. cmd/server always
// runs with DefaultSchedulerConfig; there is no separate, shorter
// status period for debug builds.
type SchedulerConfig struct {
	StatusInterval time.Duration
	VacuumInterval time.Duration
}

// DefaultSchedulerConfig returns hourly status logging and a 12h
// client-store/user-cache vacuum.
func DefaultSchedulerConfig() SchedulerConfig {
	return SchedulerConfig{
		StatusInterval: time.Hour,
		VacuumInterval: 12 * time.Hour,
	}
}

// Scheduler drives the periodic, server-wide tasks set up at launch:
// status logging, a client-store/user-cache vacuum, and (when
// scripting is active) a per-tick heartbeat over every session
// registered for one. There is no buffer pool, so nothing is shrunk.
type Scheduler struct {
	shared *Shared
	cfg    SchedulerConfig
	log    *logrus.Entry
}

// NewScheduler creates a scheduler over shared's registries.
func NewScheduler(shared *Shared, cfg SchedulerConfig) *Scheduler {
	return &Scheduler{shared: shared, cfg: cfg, log: logrus.WithField("component", "scheduler")}
}

// Run blocks, driving all scheduled tasks on their own tickers until
// ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) {
	statusTicker := time.NewTicker(s.cfg.StatusInterval)
	defer statusTicker.Stop()

	vacuumTicker := time.NewTicker(s.cfg.VacuumInterval)
	defer vacuumTicker.Stop()

	var heartbeatTicker *time.Ticker
	var heartbeatC <-chan time.Time
	if s.shared.Config.Tickrate > 0 {
		heartbeatTicker = time.NewTicker(time.Second / time.Duration(s.shared.Config.Tickrate))
		defer heartbeatTicker.Stop()
		heartbeatC = heartbeatTicker.C
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-statusTicker.C:
			s.logStatus()
		case <-vacuumTicker.C:
			s.vacuum()
		case <-heartbeatC:
			s.heartbeat()
		}
	}
}

func (s *Scheduler) logStatus() {
	s.log.WithFields(logrus.Fields{
		"clients":  s.shared.Clients.Len(),
		"sessions": s.shared.Sessions.Len(),
	}).Info("status")
}

func (s *Scheduler) vacuum() {
	removedClients := s.shared.Clients.Vacuum()

	keep := make(map[int32]struct{})
	for _, id := range s.shared.Clients.IDs() {
		keep[id] = struct{}{}
	}
	removedUsers := s.shared.Users.Vacuum(keep)

	s.log.WithFields(logrus.Fields{
		"removed_clients": removedClients,
		"removed_users":   removedUsers,
	}).Info("vacuum complete")
}

func (s *Scheduler) heartbeat() {
	for _, sess := range s.shared.Sessions.Heartbeats() {
		engine, ok := sess.Scripting()
		if !ok {
			continue
		}
		if err := engine.Heartbeat(sess.ID); err != nil {
			s.log.WithError(err).WithField("session", sess.ID).Warn("script heartbeat failed")
		}
	}
}
