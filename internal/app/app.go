// Package app builds the object graph shared by the server and the admin CLI.
package app

import (
	"context"
	"fmt"

	"usos/internal/config"
	"usos/internal/database"
	"usos/internal/log"
	"usos/internal/notify"
	"usos/internal/repository"
	"usos/internal/security"
	"usos/internal/service"
	"usos/internal/sheets"
	"usos/internal/sheets/google"
)

// App holds the database, repositories and services of one process
type App struct {
	Config *config.Config
	Logger *log.Logger
	DB     *database.DB

	Families  *repository.FamilyRepository
	Users     *repository.UserRepository
	Requests  *repository.JoinRequestRepository
	Expenses  *repository.ExpenseRepository
	Goals     *repository.SavingsGoalRepository
	AdminRepo *repository.AdminRepository

	Tokens *security.TokenService
	// AMQP is nil unless AMQP_URL is set
	AMQP *notify.AMQPClient

	Profiles *service.ProfileService
	Pairing  *service.PairingService
	Ledger   *service.LedgerService
	Admin    *service.AdminService
	Backup   *service.BackupService
}

// Open connects to the database (running migrations) and the broker.
// Services are not usable until Wire is called.
func Open(cfg *config.Config, logger *log.Logger) (*App, error) {
	db, err := database.InitializeWithConfig(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	tokens, err := security.NewTokenService(cfg.JWTSecret, cfg.JWTIssuer, cfg.TokenDuration)
	if err != nil {
		db.Close()
		return nil, err
	}

	a := &App{
		Config:    cfg,
		Logger:    logger,
		DB:        db,
		Families:  repository.NewFamilyRepository(db),
		Users:     repository.NewUserRepository(db),
		Requests:  repository.NewJoinRequestRepository(db),
		Expenses:  repository.NewExpenseRepository(db),
		Goals:     repository.NewSavingsGoalRepository(db),
		AdminRepo: repository.NewAdminRepository(db),
		Tokens:    tokens,
	}

	if cfg.AMQPURL != "" {
		a.AMQP, err = notify.NewAMQPClient(cfg.AMQPURL, cfg.AMQPExchange, logger)
		if err != nil {
			db.Close()
			return nil, err
		}
	}
	return a, nil
}

// Wire builds the services. With a broker configured they publish there and
// local is only fed by a consumer; otherwise they notify local directly.
func (a *App) Wire(local notify.Notifier) {
	var publisher notify.Notifier = local
	if a.AMQP != nil {
		publisher = a.AMQP
	}

	a.Profiles = service.NewProfileService(a.Users, publisher, a.Logger)
	a.Pairing = service.NewPairingService(a.DB, a.Families, a.Users, a.Requests, publisher, a.Logger,
		service.WithJoinRequestTTL(a.Config.JoinRequestTTL))
	a.Ledger = service.NewLedgerService(a.DB, a.Families, a.Users, a.Expenses, a.Goals, publisher, a.Logger)
	a.Admin = service.NewAdminService(a.DB, a.AdminRepo, a.Families, a.Users, a.Profiles, publisher, a.Logger)
	a.Backup = service.NewBackupService(a.DB, a.AdminRepo, a.Logger)
}

// Subscribers builds the out-of-process reactions to events: join request
// email through SES and the expense spreadsheet. Each is skipped when not
// configured.
func (a *App) Subscribers(ctx context.Context) ([]notify.Notifier, error) {
	var subs []notify.Notifier

	if a.Config.SESFromEmail != "" {
		client, err := notify.NewSESClient(ctx, a.Config.AWSRegion)
		if err != nil {
			return nil, err
		}
		subs = append(subs, notify.NewEmailNotifier(client, notify.EmailConfig{
			AWSRegion:  a.Config.AWSRegion,
			FromEmail:  a.Config.SESFromEmail,
			FromName:   a.Config.SESFromName,
			AppBaseURL: a.Config.AppBaseURL,
		}, a.Requests, a.Users, a.Users, a.Logger))
	} else {
		a.Logger.Info("SES_FROM_EMAIL not set, join request emails disabled")
	}

	if a.Config.GoogleSpreadsheetID != "" {
		creds, err := google.CredentialsOption(ctx, a.Config.GoogleServiceAccountFile, a.Config.GoogleServiceAccountJSON)
		if err != nil {
			return nil, err
		}
		client, err := google.New(ctx, a.Config.GoogleSpreadsheetID, a.Config.GoogleSheetName, creds)
		if err != nil {
			return nil, err
		}
		subs = append(subs, sheets.NewExporter(client, a.Expenses, a.Users, a.Logger))
		a.Logger.Info("Spreadsheet export enabled", log.FieldSpreadsheetID, a.Config.GoogleSpreadsheetID)
	}

	return subs, nil
}

// Close releases the broker connection and the database
func (a *App) Close() error {
	if a.AMQP != nil {
		if err := a.AMQP.Close(); err != nil {
			a.Logger.Warn("Failed to close AMQP connection", log.FieldError, err)
		}
	}
	return a.DB.Close()
}
