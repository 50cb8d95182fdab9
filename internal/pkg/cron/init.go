package cron

import log "log/slog"

// InitCron 注册在线心跳并启动调度；启动时先刷新一次 lastSeen，不等第一个周期
func InitCron(mgr *Manager) error {
	if mgr == nil {
		return nil
	}
	if err := mgr.RegisterJobs(); err != nil {
		return err
	}
	log.Info("Presence heartbeat scheduled", "spec", mgr.heartbeat)
	mgr.presenceJob.Run()
	mgr.Start()
	return nil
}
