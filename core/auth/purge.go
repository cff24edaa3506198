package auth

import (
	"context"

	"github.com/robfig/cron/v3"

	"afk-admin/config"
	"afk-admin/core/store"
	"afk-admin/core/utils"
)

// SessionPurger deletes expired sessions on a cron schedule so stale
// rows never pile up in the sessions table.
type SessionPurger struct {
	c        *cron.Cron
	sessions store.SessionStore
	cfg      *config.AppConfig
	logger   *utils.Logger
}

func NewSessionPurger(sessions store.SessionStore, cfg *config.AppConfig, logger *utils.Logger) *SessionPurger {
	return &SessionPurger{
		c:        cron.New(),
		sessions: sessions,
		cfg:      cfg,
		logger:   logger,
	}
}

func (p *SessionPurger) Start(ctx context.Context) error {
	spec := "@every 10m"
	if p.cfg != nil && p.cfg.Scheduler.SessionPurgeSpec != "" {
		spec = p.cfg.Scheduler.SessionPurgeSpec
	}
	_, err := p.c.AddFunc(spec, func() {
		n, err := p.sessions.DeleteExpired(ctx, utils.NowUTC())
		if err != nil {
			p.logger.Errorf("session purge: %v", err)
			return
		}
		if n > 0 {
			p.logger.Printf("session purge: removed %d expired sessions", n)
		}
	})
	if err != nil {
		return err
	}
	p.c.Start()
	return nil
}

func (p *SessionPurger) Stop() {
	stopCtx := p.c.Stop()
	<-stopCtx.Done()
}
