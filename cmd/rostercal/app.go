package main

import (
	"fmt"
	"time"

	"rostercal/internal/api"
	"rostercal/internal/calendar"
	"rostercal/internal/config"
	appLog "rostercal/internal/log"
	"rostercal/internal/normalize"
	"rostercal/internal/roster"
)

// app is everything a subcommand needs, built from the config file.
type app struct {
	cfg     *config.Config
	loc     *time.Location
	norm    *normalize.Normalizer
	client  *api.Client
	ctrl    *roster.Controller
	tracker *calendar.Tracker
}

func newApp(path string) (*app, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("load config %s: %w", path, err)
	}
	if listenAddr != "" {
		cfg.Listen = listenAddr
	}
	appLog.SetLevel(appLog.ParseLevel(cfg.LogLevel))

	loc, err := cfg.Location()
	if err != nil {
		appLog.Error("failed to load timezone; falling back to local", err, "name", cfg.Timezone)
	}

	norm := normalize.New(normalize.ParseDateOrder(cfg.DateOrder), loc)
	normalize.SetDefault(norm)

	client := api.NewClient(api.Options{
		BaseURL:      cfg.BaseURL,
		TeamResource: cfg.TeamResource,
		Timeout:      cfg.HTTPTimeout(),
	})
	ctrl := roster.New(client, roster.Options{
		PollInterval: cfg.PollInterval(),
		Locale:       cfg.Locale,
		Normalizer:   norm,
	})

	tracker := calendar.NewTracker(loc, nil)
	pinned, ok, err := cfg.PinnedMonth(loc)
	if err != nil {
		return nil, fmt.Errorf("reference_month %q: %w", cfg.ReferenceMonth, err)
	}
	if ok {
		tracker.Pin(pinned)
	}

	appLog.Info("effective config",
		"listen", cfg.Listen,
		"timezone", loc.String(),
		"base_url_set", cfg.BaseURL != "",
		"team_resource", cfg.TeamResource,
		"poll_interval", cfg.PollInterval().String(),
		"date_order", cfg.DateOrder,
		"locale", cfg.Locale,
		"reference_month", cfg.ReferenceMonth,
		"basic_auth", cfg.BasicAuth != nil,
	)

	return &app{
		cfg:     cfg,
		loc:     loc,
		norm:    norm,
		client:  client,
		ctrl:    ctrl,
		tracker: tracker,
	}, nil
}
