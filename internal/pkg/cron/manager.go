package cron

import (
	log "log/slog"

	"github.com/robfig/cron/v3"

	"Parley/internal/job"
)

type Manager struct {
	engine      *cron.Cron
	heartbeat   string
	presenceJob *job.PresenceJob
}

func NewCronManager(heartbeat string, presenceJob *job.PresenceJob) *Manager {
	return &Manager{
		engine:      cron.New(cron.WithSeconds()),
		heartbeat:   heartbeat,
		presenceJob: presenceJob,
	}
}

// RegisterJobs 注册定时任务
func (s *Manager) RegisterJobs() error {
	if _, err := s.engine.AddJob(s.heartbeat, cron.NewChain(cron.SkipIfStillRunning(cron.DiscardLogger)).Then(s.presenceJob)); err != nil {
		return err
	}
	return nil
}

func (s *Manager) Start() {
	log.Info("Cron engine started", "jobs", len(s.engine.Entries()))
	s.engine.Start()
}

func (s *Manager) Stop() {
	log.Info("Cron engine stopping")
	<-s.engine.Stop().Done()
}
