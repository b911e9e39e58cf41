package factory

import (
	"github.com/mikey/inbox-triage/internal/adapters/gmail"
	"github.com/mikey/inbox-triage/internal/config"
	"github.com/mikey/inbox-triage/internal/core"
	"go.uber.org/zap"
)

// MailFactory creates the mail provider factory for bearer tokens
type MailFactory struct {
	cfg    *config.Config
	logger *zap.Logger
}

// NewMailFactory creates a new mail factory
func NewMailFactory(cfg *config.Config, logger *zap.Logger) *MailFactory {
	return &MailFactory{
		cfg:    cfg,
		logger: logger,
	}
}

// CreateProviderFactory creates the Gmail provider factory
func (f *MailFactory) CreateProviderFactory() core.MailProviderFactory {
	gcfg := f.cfg.GetGmail()
	return gmail.NewFactory(gmail.Config{
		Format:         gcfg.Format,
		QuotaPerSecond: gcfg.QuotaPerSecond,
		Endpoint:       gcfg.Endpoint,
	}, f.logger.Named("gmail"))
}
