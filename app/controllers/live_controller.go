package controllers

import (
	"time"

	"github.com/invictusops/invictus/app/services"
	"github.com/invictusops/invictus/internal/live"
	"github.com/invictusops/invictus/pkg/ctx"
	"github.com/invictusops/invictus/pkg/logger"
	"github.com/invictusops/invictus/pkg/metrics"
	"github.com/invictusops/invictus/pkg/sse"
)

const heartbeat = 25 * time.Second

// LiveController pushes the dashboard to a logged-in client whenever a
// snapshot changes, and delivers queued messages as toasts.
type LiveController struct {
	cache *live.Cache
	mail  *services.NotificationService
}

func NewLiveController(cache *live.Cache, mail *services.NotificationService) *LiveController {
	return &LiveController{cache: cache, mail: mail}
}

// Stream serves GET /api/live as Server-Sent Events:
//
//	event: view   data: <dashboard>
//	event: toast  data: ["message", ...]
func (lc *LiveController) Stream(c *ctx.Context) {
	uid := c.UserID()
	log := logger.WithCtx(c.Context()).With("user_id", uid)

	stream, err := sse.New(c.W, c.R)
	if err != nil {
		return
	}
	metrics.LiveStreams.WithLabelValues("sse").Inc()
	defer metrics.LiveStreams.WithLabelValues("sse").Dec()

	// One pending slot: bursts of snapshots collapse into a single push.
	changed := make(chan struct{}, 1)
	stop := lc.cache.Watch(func(live.Change) {
		select {
		case changed <- struct{}{}:
		default:
		}
	})
	defer stop()

	ticker := time.NewTicker(heartbeat)
	defer ticker.Stop()

	push := func() error {
		if lc.cache.Ready() {
			if err := stream.Send("view", lc.cache.Dashboard(uid)); err != nil {
				return err
			}
		}
		if !services.HasPending(lc.cache.Mailboxes(), uid) {
			return nil
		}
		msgs, err := lc.mail.Drain(c.Context(), uid)
		if err != nil {
			log.Warn("live: mailbox drain failed", "error", err)
			return nil
		}
		if len(msgs) == 0 {
			return nil
		}
		return stream.Send("toast", msgs)
	}

	if err := stream.Retry(3000); err != nil {
		return
	}
	if err := push(); err != nil {
		return
	}
	for {
		select {
		case <-stream.Done():
			return
		case <-ticker.C:
			if err := stream.Comment("ping"); err != nil {
				return
			}
		case <-changed:
			if err := push(); err != nil {
				log.Debug("live: stream closed", "error", err)
				return
			}
		}
	}
}
