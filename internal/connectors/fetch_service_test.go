package connectors

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"nutridoc/internal"
	"nutridoc/internal/config"
	"nutridoc/internal/metrics"
	"nutridoc/internal/storage"
)

type fakeConnector struct {
	messages []internal.FetchedMailMessage
	err      error
}

func (f fakeConnector) FetchInbox(ctx context.Context, label string, max int) ([]internal.FetchedMailMessage, error) {
	return f.messages, f.err
}

func openDB(t *testing.T) *storage.DB {
	t.Helper()
	db, err := storage.Open(filepath.Join(t.TempDir(), "nutridoc.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestFetchAndStoreWritesInbox(t *testing.T) {
	db := openDB(t)
	inbox := filepath.Join(t.TempDir(), "inbox")
	rec := metrics.New()
	conn := fakeConnector{messages: []internal.FetchedMailMessage{
		{Provider: "imap", MessageID: "<1@x>", Subject: "Almuerzos semana 3", From: "a@x", ReceivedAt: "2026-02-01T00:00:00Z", Raw: []byte("Subject: Almuerzos\r\n\r\nuno")},
		{Provider: "imap", MessageID: "<2@x>", Subject: "", From: "b@x", ReceivedAt: "2026-02-01T00:00:00Z", Raw: []byte("Subject:\r\n\r\ndos")},
	}}
	svc := NewFetchService(db, inbox, "imap", conn, rec, nil)

	res, err := svc.FetchAndStore(context.Background(), "INBOX", 10)
	if err != nil {
		t.Fatal(err)
	}
	if res.Fetched != 2 || res.Stored != 2 {
		t.Fatalf("result = %+v", res)
	}

	entries, err := os.ReadDir(inbox)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 2 {
		t.Fatalf("inbox has %d files", len(entries))
	}
	var named bool
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), "Almuerzos_semana_3_") && strings.HasSuffix(e.Name(), ".eml") {
			named = true
		}
	}
	if !named {
		t.Fatalf("subject not kept in file names: %v", entries)
	}

	row, err := db.GetEmailByProviderMessageID("imap", "<1@x>")
	if err != nil || row == nil {
		t.Fatalf("email not recorded: %v", err)
	}
	if row.Status != "fetched" {
		t.Fatalf("status = %s", row.Status)
	}

	// A second fetch of the same messages stores nothing new.
	res, err = svc.FetchAndStore(context.Background(), "INBOX", 10)
	if err != nil {
		t.Fatal(err)
	}
	if res.Stored != 0 {
		t.Fatalf("duplicates stored: %+v", res)
	}
	prom := filepath.Join(t.TempDir(), "metrics.prom")
	if err := rec.WriteTextfile(prom); err != nil {
		t.Fatal(err)
	}
	blob, err := os.ReadFile(prom)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(blob), `nutridoc_mail_messages_total{provider="imap"} 2`) {
		t.Fatalf("mail metric missing:\n%s", blob)
	}
}

func TestFetchAndStorePropagatesErrors(t *testing.T) {
	boom := errors.New("connection refused")
	svc := NewFetchService(openDB(t), t.TempDir(), "gmail", fakeConnector{err: boom}, nil, nil)
	if _, err := svc.FetchAndStore(context.Background(), "INBOX", 5); !errors.Is(err, boom) {
		t.Fatalf("err = %v", err)
	}
}

func TestMessageFileName(t *testing.T) {
	cases := map[string]string{
		"Recetas: desayunos/meriendas": "Recetas__desayunos_meriendas_0123456789ab.eml",
		"  ":                           "0123456789ab.eml",
		"<Equivalencias>":              "Equivalencias_0123456789ab.eml",
	}
	for subject, want := range cases {
		if got := MessageFileName(subject, "0123456789abcdef"); got != want {
			t.Fatalf("MessageFileName(%q) = %s, want %s", subject, got, want)
		}
	}
	long := MessageFileName(strings.Repeat("a", 200), "0123456789abcdef")
	if len(long) > maxNameLength+len("_0123456789ab.eml") {
		t.Fatalf("name too long: %d", len(long))
	}
}

func TestNewConnectorRejectsUnknownProvider(t *testing.T) {
	if _, err := NewConnector(context.Background(), config.Config{MailProvider: "pop3"}); err == nil {
		t.Fatal("expected error")
	}
}
