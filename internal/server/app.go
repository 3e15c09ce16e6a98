package server

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"casgate/internal/audit"
	"casgate/internal/auth"
	"casgate/internal/claim"
	"casgate/internal/config"
	"casgate/internal/constants"
	"casgate/internal/dag"
	"casgate/internal/database"
	"casgate/internal/depot"
	"casgate/internal/logger"
	"casgate/internal/proof"
)

// App holds all application state and dependencies.
type App struct {
	Config    *config.Config
	Logger    *logger.Logger
	DB        *sql.DB
	StartedAt time.Time

	AuthStore   *auth.Store
	AuthService *auth.Service
	AuthMW      *auth.Middleware
	Verifier    auth.BootstrapVerifier
	Nodes       *dag.Store
	Depots      *depot.Service
	Claims      *claim.Service
	Proofs      *proof.Validator
	Audit       *audit.Trail
}

// NewApp wires the full application: store database, capability layer,
// node graph, proof validator, and audit trail.
func NewApp(cfg *config.Config, log *logger.Logger) (*App, error) {
	if cfg.Auth.BootstrapSecret == "" {
		return nil, fmt.Errorf("auth.bootstrap_secret is not configured (set CASGATE_BOOTSTRAP_SECRET)")
	}
	if err := os.MkdirAll(cfg.DataDirectory, constants.DirPermissions); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	db, err := database.InitStore(filepath.Join(cfg.DataDirectory, constants.StoreDB))
	if err != nil {
		return nil, fmt.Errorf("failed to open store database: %w", err)
	}

	app := &App{
		Config:    cfg,
		Logger:    log,
		DB:        db,
		StartedAt: time.Now(),
	}

	app.AuthStore = auth.NewStore(db)
	app.AuthService = auth.NewService(app.AuthStore, cfg.Auth.AccessTokenTTL(), log)
	app.Verifier = auth.NewJWTVerifier(cfg.Auth.BootstrapSecret)
	app.AuthMW = auth.NewMiddleware(app.AuthStore, app.AuthStore, app.Verifier, log)

	app.Nodes = dag.NewStore(db)
	app.Depots = depot.NewService(depot.NewStore(db), log)
	app.Claims = claim.NewService(app.Nodes, claim.NewStore(db), log)
	app.Proofs = proof.NewValidator(app.Nodes, app.Claims.Ownership(), app.Depots.Store(), log)
	app.Audit = audit.NewTrail(db, cfg.Audit.MaxLogSizeBytes, cfg.Audit.PurgePercentage, log)

	return app, nil
}

// SeedAdminRoles grants the admin role to every configured subject.
// Idempotent; called once at startup.
func (a *App) SeedAdminRoles() error {
	for _, subject := range a.Config.Auth.AdminSubjects {
		if err := a.AuthStore.SetRole(subject, constants.RoleAdmin); err != nil {
			return fmt.Errorf("failed to seed admin role for %s: %w", subject, err)
		}
		a.Logger.Info("auth: seeded admin role for subject %s", subject)
	}
	return nil
}

// Close releases the store database.
func (a *App) Close() {
	if a.DB != nil {
		a.DB.Close()
	}
}
