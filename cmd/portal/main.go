package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/template/django/v3"
	portal "github.com/goliatone/go-portal"
	"github.com/pressly/goose/v3"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
)

func main() {
	cfg, err := portal.LoadConfig()
	if err != nil {
		log.Fatal(err)
	}

	portal.SetBcryptCost(cfg.Auth.BcryptCost)

	db, err := openDatabase(cfg)
	if err != nil {
		log.Fatal(err)
	}
	defer db.Close()

	ctx := context.Background()
	if err := migrate(ctx, db); err != nil {
		log.Fatal(err)
	}

	repo := portal.NewRepositoryManager(db)
	repo.MustValidate()

	storage := portal.NewSessionStorage(db)
	sessions := portal.NewSessionManager(
		portal.NewSessionStore(storage, cfg.Session.CookieName, cfg.Session.TTL),
	)

	auth := portal.NewAuthenticator(repo.Users())
	profile := portal.NewProfileService(repo.Users())

	app := newServer(cfg)

	portal.RegisterRoutes(app,
		portal.NewAuthController(auth, sessions, portal.WithAuthDebug(cfg.Debug)),
		portal.NewProfileController(profile, sessions),
		portal.NewAdminController(auth, sessions),
		sessions,
	)

	go sweepSessions(ctx, storage)

	go func() {
		if err := app.Listen(cfg.Server.Address); err != nil {
			log.Fatal(err)
		}
	}()

	waitExitSignal()

	if err := app.Shutdown(); err != nil {
		log.Printf("shutdown error: %v", err)
	}
}

func openDatabase(cfg *portal.Config) (*bun.DB, error) {
	sqldb, err := sql.Open(sqliteshim.ShimName, cfg.Database.DSN)
	if err != nil {
		return nil, err
	}

	return bun.NewDB(sqldb, sqlitedialect.New()), nil
}

func migrate(ctx context.Context, db *bun.DB) error {
	goose.SetBaseFS(portal.GetMigrationsFS())

	if err := goose.SetDialect("sqlite3"); err != nil {
		return err
	}

	return goose.UpContext(ctx, db.DB, "data/sql/migrations")
}

func newServer(cfg *portal.Config) *fiber.App {
	engine := django.NewFileSystem(http.FS(portal.GetViewsFS()), ".html")

	return fiber.New(fiber.Config{
		Views:             engine,
		PassLocalsToViews: true,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
			}
			return c.Status(code).Render("errors/500", fiber.Map{
				"message": "Something went wrong. Try again.",
			})
		},
	})
}

// sweepSessions drops expired session rows once an hour; reads already
// treat expired rows as absent, this just keeps the table small.
func sweepSessions(ctx context.Context, storage *portal.SessionStorage) {
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n, err := storage.Cleanup(ctx); err != nil {
				log.Printf("session cleanup error: %v", err)
			} else if n > 0 {
				log.Printf("session cleanup removed %d rows", n)
			}
		}
	}
}

func waitExitSignal() {
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
}
