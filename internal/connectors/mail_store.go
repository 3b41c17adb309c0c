package connectors

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"nutridoc/internal"
	"nutridoc/internal/storage"
)

const maxNameLength = 80

// MailStoreService writes fetched messages into the inbox directory and
// records them in the emails table.
type MailStoreService struct {
	db       *storage.DB
	inboxDir string
}

func NewMailStoreService(db *storage.DB, inboxDir string) *MailStoreService {
	return &MailStoreService{db: db, inboxDir: inboxDir}
}

// Store returns isNew=false when the provider message was stored before.
func (s *MailStoreService) Store(msg internal.FetchedMailMessage) (row internal.EmailRow, isNew bool, err error) {
	existing, err := s.db.GetEmailByProviderMessageID(msg.Provider, msg.MessageID)
	if err != nil {
		return internal.EmailRow{}, false, err
	}
	if existing != nil {
		return *existing, false, nil
	}

	sum := sha256.Sum256(msg.Raw)
	hash := hex.EncodeToString(sum[:])

	if err := os.MkdirAll(s.inboxDir, 0o755); err != nil {
		return internal.EmailRow{}, false, fmt.Errorf("create inbox dir: %w", err)
	}
	rawPath := filepath.Join(s.inboxDir, MessageFileName(msg.Subject, hash))
	if _, err := os.Stat(rawPath); os.IsNotExist(err) {
		if err := os.WriteFile(rawPath, msg.Raw, 0o644); err != nil {
			return internal.EmailRow{}, false, fmt.Errorf("write message: %w", err)
		}
	}

	row, err = s.db.UpsertEmail(msg.Provider, msg.MessageID, msg.Subject, msg.From, msg.ReceivedAt, hash, rawPath, "fetched")
	if err != nil {
		return internal.EmailRow{}, false, err
	}
	return row, true, nil
}

// MessageFileName keeps the subject in the file name so that kind detection
// by file name still works for mailed documents.
func MessageFileName(subject, hash string) string {
	repl := strings.NewReplacer("<", "_", ">", "_", ":", "_", "/", "_", "\\", "_", "|", "_", "?", "_", "*", "_", "\"", "_", " ", "_")
	name := strings.Trim(repl.Replace(strings.TrimSpace(subject)), "_.")
	if len(name) > maxNameLength {
		name = strings.TrimRight(name[:maxNameLength], "_")
	}
	short := hash
	if len(short) > 12 {
		short = short[:12]
	}
	if name == "" {
		return short + ".eml"
	}
	return name + "_" + short + ".eml"
}
