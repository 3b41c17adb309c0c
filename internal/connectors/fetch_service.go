package connectors

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"nutridoc/internal/config"
	gmailconnector "nutridoc/internal/connectors/gmail"
	imapconnector "nutridoc/internal/connectors/imap"
	"nutridoc/internal/metrics"
	"nutridoc/internal/storage"
)

type FetchService struct {
	provider  string
	connector MailConnector
	store     *MailStoreService
	metrics   *metrics.Recorder
	log       *zap.Logger
}

type FetchResult struct {
	Fetched int
	Stored  int
}

func NewFetchService(db *storage.DB, inboxDir, provider string, connector MailConnector, rec *metrics.Recorder, log *zap.Logger) *FetchService {
	if log == nil {
		log = zap.NewNop()
	}
	return &FetchService{
		provider:  provider,
		connector: connector,
		store:     NewMailStoreService(db, inboxDir),
		metrics:   rec,
		log:       log.With(zap.String("provider", provider)),
	}
}

func (s *FetchService) FetchAndStore(ctx context.Context, label string, max int) (FetchResult, error) {
	messages, err := s.connector.FetchInbox(ctx, label, max)
	if err != nil {
		return FetchResult{}, fmt.Errorf("fetch %s: %w", s.provider, err)
	}

	res := FetchResult{Fetched: len(messages)}
	for _, msg := range messages {
		row, isNew, err := s.store.Store(msg)
		if err != nil {
			return res, fmt.Errorf("store %s: %w", msg.MessageID, err)
		}
		if !isNew {
			s.log.Debug("message already stored", zap.String("message_id", msg.MessageID))
			continue
		}
		res.Stored++
		s.log.Info("message stored", zap.String("subject", row.Subject), zap.String("path", row.RawRef))
	}
	if s.metrics != nil {
		s.metrics.AddMail(s.provider, res.Stored)
	}
	return res, nil
}

// NewConnector builds the connector named by MAIL_PROVIDER.
func NewConnector(ctx context.Context, cfg config.Config) (MailConnector, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.MailProvider)) {
	case "gmail":
		return gmailconnector.NewConnector(ctx, cfg)
	case "imap":
		return imapconnector.NewConnector(cfg)
	default:
		return nil, fmt.Errorf("unsupported mail provider: %s", cfg.MailProvider)
	}
}
