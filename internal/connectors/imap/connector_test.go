package imap

import (
	"reflect"
	"testing"
	"time"

	"github.com/emersion/go-imap"

	"nutridoc/internal/config"
)

func TestNewConnectorRequiresCredentials(t *testing.T) {
	if _, err := NewConnector(config.Config{IMAPHost: "mail.example.org"}); err == nil {
		t.Fatal("expected missing IMAP_USER error")
	}
	c, err := NewConnector(config.Config{IMAPHost: "mail.example.org", IMAPPort: 993, IMAPUser: "u", IMAPPassword: "p"})
	if err != nil {
		t.Fatal(err)
	}
	if c.addr != "mail.example.org:993" {
		t.Fatalf("addr = %s", c.addr)
	}
}

func TestNewest(t *testing.T) {
	ids := []uint32{1, 2, 3, 4, 5}
	if got := newest(ids, 2); !reflect.DeepEqual(got, []uint32{4, 5}) {
		t.Fatalf("newest = %v", got)
	}
	if got := newest(ids, 0); len(got) != 5 {
		t.Fatalf("max 0 should keep all, got %v", got)
	}
}

func TestToFetched(t *testing.T) {
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	msg := &imap.Message{
		Uid: 42,
		Envelope: &imap.Envelope{
			Subject: "Desayunos",
			From:    []*imap.Address{{PersonalName: "Ana", MailboxName: "ana", HostName: "example.org"}, nil, {MailboxName: "b", HostName: "example.org"}},
		},
	}
	got := toFetched(msg, []byte("raw"), now)
	if got.MessageID != "imap-42" || got.Subject != "Desayunos" {
		t.Fatalf("unexpected %+v", got)
	}
	if got.From != "Ana <ana@example.org>, b@example.org" {
		t.Fatalf("from = %q", got.From)
	}
	if got.ReceivedAt != "2026-03-01T00:00:00Z" {
		t.Fatalf("received = %s", got.ReceivedAt)
	}
}
