package main

import (
	"context"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/pkg/group"
	"github.com/socially-app/socially/api"
	"github.com/socially-app/socially/media"
	"github.com/socially-app/socially/models"
	"gorm.io/gorm"
)

type ServeCmd struct {
	Addr      string `help:"address to listen" default:"127.0.0.1:8080" env:"SOCIALLY_ADDR"`
	MediaDir  string `help:"directory for uploaded media" default:"media" env:"SOCIALLY_MEDIA_DIR"`
	JWTSecret string `required:"" help:"secret for signing bearer tokens" env:"SOCIALLY_JWT_SECRET"`
}

func (s *ServeCmd) Run(ctx *Context) error {
	db, err := gorm.Open(ctx.Dialector, &ctx.Config)
	if err != nil {
		return err
	}
	if err := configureDB(db); err != nil {
		return err
	}

	env := &api.Env{
		Env: &models.Env{
			DB:     db,
			Logger: ctx.Logger,
		},
		Media:     media.NewStorage(s.MediaDir),
		JWTSecret: []byte(s.JWTSecret),
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
	}))

	r.Mount("/api", api.Router(env))
	fs := http.StripPrefix("/media/", http.FileServer(http.Dir(s.MediaDir)))
	r.Get("/media/*", fs.ServeHTTP)

	svr := &http.Server{
		Addr:         s.Addr,
		Handler:      r,
		WriteTimeout: 15 * time.Second,
		ReadTimeout:  15 * time.Second,
	}

	base, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	g := group.New(base)
	g.Add(func(gctx context.Context) error {
		go func() {
			<-gctx.Done()
			shutdown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			svr.Shutdown(shutdown)
		}()
		ctx.Logger.Info("listening", "addr", s.Addr)
		if err := svr.ListenAndServe(); err != http.ErrServerClosed {
			return err
		}
		return nil
	})
	g.Add(newSweeper(db, ctx))
	return g.Wait()
}

// newSweeper periodically removes rows past their lifetime: expired
// stories and old message tombstones. Expiry is otherwise lazy, so the
// sweeper only reclaims space; active queries never see expired rows.
func newSweeper(db *gorm.DB, ctx *Context) func(context.Context) error {
	return func(gctx context.Context) error {
		ctx.Logger.Info("sweeper started")
		defer ctx.Logger.Info("sweeper stopped")

		db := db.WithContext(gctx)
		for {
			select {
			case <-gctx.Done():
				return nil
			case <-time.After(time.Hour):
			}
			n, err := models.NewStories(db).DeleteExpired(time.Now())
			if err != nil {
				return err
			}
			if n > 0 {
				ctx.Logger.Info("deleted expired stories", "count", n)
			}
		}
	}
}
