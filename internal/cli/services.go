package cli

import (
	"caja/internal/commands"
	"caja/internal/log"
	"caja/internal/services"
	"caja/internal/storage"
)

// Services is the full set of ledger services over one gateway.
type Services struct {
	Sessions   *services.SessionService
	Categories *services.CategoryService
	Ledger     *services.LedgerService
	Summary    *services.SummaryService
	Backups    *services.BackupService
}

// NewServices wires every service to gw. A nil publisher disables events.
func NewServices(gw *storage.Gateway, logger *log.Logger, publisher services.Publisher, backupDir string) *Services {
	opts := []services.Option{services.WithLogger(logger)}
	if publisher != nil {
		opts = append(opts, services.WithPublisher(publisher))
	}
	sessions := services.NewSessionService(gw, opts...)
	categories := services.NewCategoryService(gw, opts...)
	return &Services{
		Sessions:   sessions,
		Categories: categories,
		Ledger:     services.NewLedgerService(gw, sessions, categories, opts...),
		Summary:    services.NewSummaryService(gw, sessions, opts...),
		Backups:    services.NewBackupService(gw, backupDir, opts...),
	}
}

// Dispatcher exposes the services through the command envelope.
func (s *Services) Dispatcher(currency string, logger *log.Logger) *commands.Dispatcher {
	return &commands.Dispatcher{
		Sessions:   s.Sessions,
		Ledger:     s.Ledger,
		Categories: s.Categories,
		Summary:    s.Summary,
		Backups:    s.Backups,
		Currency:   currency,
		Logger:     logger.WithComponent(log.ComponentCommands),
	}
}
