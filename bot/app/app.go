// Package app wires the bot together: configuration, database, storage,
// the checking-service client, the event router with its flows, and the
// Telegram transport on top.
package app

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/thertxnetworktwo/toolkit/bot/flows"
	"github.com/thertxnetworktwo/toolkit/bot/frozen"
	"github.com/thertxnetworktwo/toolkit/bot/ingest"
	"github.com/thertxnetworktwo/toolkit/bot/router"
	"github.com/thertxnetworktwo/toolkit/bot/storage"
	"github.com/thertxnetworktwo/toolkit/core/bootstrap"
	"github.com/thertxnetworktwo/toolkit/core/telegram/commands"
	tgrouter "github.com/thertxnetworktwo/toolkit/core/telegram/router"

	coretelegram "github.com/thertxnetworktwo/toolkit/core/telegram"
)

// App holds the assembled application.
type App struct {
	cfg    *Config
	db     *sqlx.DB
	repo   *storage.Repo
	router *router.Router
}

// Bootstrap initializes infrastructure and assembles the router with all
// flows registered.
func Bootstrap(cfg *Config) (*App, error) {
	res, err := bootstrap.Run(bootstrap.Options{
		Config:   &cfg.Core,
		Database: cfg.Database,
	})
	if err != nil {
		return nil, err
	}

	repo := storage.NewRepo(res.DB, cfg.FrozenCacheTTL())
	checker := frozen.NewClient(cfg.Frozen, repo, nil)

	r := router.New(router.Options{
		Classifier: ingest.NewClassifier(cfg.Ingest),
		Limits:     cfg.Archive.Limits(),
	})
	flows.Register(r, flows.Deps{
		Store:    repo,
		Checker:  checker,
		AdminIDs: cfg.AdminIDs,
	})

	return &App{cfg: cfg, db: res.DB, repo: repo, router: r}, nil
}

// Router exposes the event router, mainly for tests.
func (a *App) Router() *router.Router { return a.router }

// TelegramRunOptions builds the Telegram runtime configuration: registry,
// middlewares, and the callback/text/document routes bridged into the router.
func (a *App) TelegramRunOptions() (coretelegram.RunOptions, error) {
	b := &bridge{app: a}
	reg := coretelegram.NewRegistry()

	reg.RegisterCommand("/start", commands.Command{
		Handler:     b.action(flows.ActMainMenu),
		Description: "Open the main menu",
		Aliases:     []string{"menu"},
	})
	reg.RegisterCommand("/help", commands.Command{
		Handler:     b.action(flows.ActHelp),
		Description: "How the bot works",
	})
	reg.RegisterCommand("/status", commands.Command{
		Handler:     b.action(flows.ActStatus),
		Description: "Your account status",
	})
	reg.RegisterCommand("/admin", commands.Command{
		Handler:     b.action(flows.ActAdminUsers),
		Description: "Admin panel",
		AdminOnly:   true,
		Hidden:      true,
	})

	for _, act := range flows.Actions() {
		if err := reg.RegisterCallback(act, b.callback); err != nil {
			return coretelegram.RunOptions{}, err
		}
	}
	reg.SetTextFallback(b.UnknownText())
	reg.SetCallbackNotFound(b.UnknownCallback())

	routes := []coretelegram.Route{
		tgrouter.CallbackRoute(reg, tgrouter.CallbackOptions{NotFound: b.UnknownCallback()}),
	}
	routes = append(routes, tgrouter.CommandRoutes(reg, tgrouter.CommandRouteOptions{
		AdminID: a.cfg.Core.Telegram.AdminID,
	})...)
	routes = append(routes, tgrouter.TextRoutes(b, reg, tgrouter.TextOptions{
		UnknownText:     b.UnknownText(),
		UnknownDocument: b.UnknownDocument(),
	})...)

	return coretelegram.RunOptions{
		Config:      &a.cfg.Core,
		Registry:    reg,
		Middlewares: coretelegram.DefaultMiddlewares(&a.cfg.Core, nil),
		Routes:      routes,
		OnStop: func(ctx context.Context, rt coretelegram.Runtime) error {
			return a.db.Close()
		},
	}, nil
}
