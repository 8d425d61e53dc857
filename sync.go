package main

import (
	"context"
	"fmt"
	"net"
	"os/signal"
	"syscall"
	"time"

	"github.com/pkg/group"
	"github.com/socially-app/socially/gateway"
	"github.com/socially-app/socially/models"
	"github.com/socially-app/socially/syncer"
	"gorm.io/gorm"
)

type SyncCmd struct {
	BaseURL  string        `required:"" help:"base URL of the remote API" env:"SOCIALLY_API"`
	Token    string        `required:"" help:"bearer token for the remote API" env:"SOCIALLY_TOKEN"`
	Interval time.Duration `help:"period between drain passes" default:"15m"`
	Once     bool          `help:"run a single drain pass and exit"`
}

func (s *SyncCmd) Run(ctx *Context) error {
	db, err := gorm.Open(ctx.Dialector, &ctx.Config)
	if err != nil {
		return err
	}
	if err := configureDB(db); err != nil {
		return err
	}

	engine := syncer.New(
		models.NewPendingActions(db),
		gateway.NewClient(s.BaseURL, s.Token),
		ctx.Logger,
	)

	if s.Once {
		result, err := engine.Drain(context.Background())
		if err != nil {
			return err
		}
		fmt.Printf("applied: %d, dropped: %d, requeued: %d, exhausted: %d\n",
			result.Applied, result.Dropped, result.Requeued, result.Exhausted)
		return nil
	}

	base, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	g := group.New(base)
	g.Add(syncer.NewProcessor(engine, syncer.Options{
		Interval: s.Interval,
		Online:   online,
	}))
	return g.Wait()
}

// online probes connectivity by resolving the root name servers. Good
// enough as a gate: a pass skipped on a false negative runs next period.
func online(ctx context.Context) bool {
	var r net.Resolver
	probe, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	_, err := r.LookupHost(probe, "a.root-servers.net")
	return err == nil
}
