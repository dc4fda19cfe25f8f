// Package supervisor wires the listener and the background sweepers into a
// single run group (grounded on the corpus's actor-group usage for exactly
// this "several independent long-running loops, first error cancels all"
// shape): a fatal listener error cleanly stops the sweepers, and vice versa.
package supervisor

import (
	"context"
	"net"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/oklog/run"
	"github.com/sirupsen/logrus"

	"github.com/streamhub/videoproxy/internal/metacache"
)

const sweepInterval = time.Minute

// Sweepers bundles the TTL-indexed caches the background sweeper walks once
// per tick. ttlcache.Cache already expires lazily on Get, so this loop only
// exists to log live entry counts; Stop() (invoked by the caller at shutdown)
// is what actually halts each cache's own background goroutine.
type Sweepers struct {
	Metadata *metacache.MetadataCache
	Redirect *metacache.RedirectCache
	Preload  *metacache.PreloadCache
}

// Run starts the Fiber listener and the TTL sweep ticker as run-group actors,
// blocking until either exits or ctx is cancelled.
func Run(ctx context.Context, logger *logrus.Logger, app *fiber.App, listenAddr string, sweepers Sweepers) error {
	var g run.Group

	{
		ln, err := net.Listen("tcp", listenAddr)
		if err != nil {
			return err
		}
		g.Add(
			func() error {
				logger.WithField("action", "listen").Info("listening on " + listenAddr)
				return app.Listener(ln)
			},
			func(error) {
				_ = app.Shutdown()
				_ = ln.Close()
			},
		)
	}

	{
		stop := make(chan struct{})
		g.Add(
			func() error {
				ticker := time.NewTicker(sweepInterval)
				defer ticker.Stop()
				for {
					select {
					case <-ticker.C:
						logSweep(logger, sweepers)
					case <-stop:
						return nil
					}
				}
			},
			func(error) {
				close(stop)
			},
		)
	}

	{
		g.Add(
			func() error {
				<-ctx.Done()
				return ctx.Err()
			},
			func(error) {},
		)
	}

	return g.Run()
}

func logSweep(logger *logrus.Logger, s Sweepers) {
	fields := logrus.Fields{"action": "ttl_sweep"}
	if s.Metadata != nil {
		fields["metadata_entries"] = s.Metadata.Len()
	}
	if s.Redirect != nil {
		fields["redirect_entries"] = s.Redirect.Len()
	}
	if s.Preload != nil {
		fields["preload_entries"] = s.Preload.Len()
	}
	logger.WithFields(fields).Debug("ttl_sweep_tick")
}
