package api

import (
	"github.com/lysyi3m/scrape-comb/app/database"
	"github.com/lysyi3m/scrape-comb/app/engine"
	"github.com/lysyi3m/scrape-comb/app/scraper"
)

type LauncherInterface interface {
	Launch(params scraper.LaunchParams) (*engine.Session, error)
	LaunchProfile(profile *scraper.Profile) (*engine.Session, error)
	Stop(sessionID string) error
}

var _ LauncherInterface = (*scraper.Launcher)(nil)

type Handler struct {
	hub         *engine.Hub
	launcher    LauncherInterface
	scanRepo    database.ScanRepository
	resultRepo  database.ResultRepository
	configCache *scraper.ConfigCache
}
