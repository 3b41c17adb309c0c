// Package connectors pulls emailed nutrition documents into the input
// directory so the pipeline picks them up as .eml files.
package connectors

import (
	"context"

	"nutridoc/internal"
)

type MailConnector interface {
	FetchInbox(ctx context.Context, label string, max int) ([]internal.FetchedMailMessage, error)
}
