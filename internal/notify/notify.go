// Package notify delivers change events to the user. The SMTP notifier is
// the only production implementation; Notifier keeps the checker decoupled
// from the transport.
package notify

import (
	"context"

	"github.com/sells-group/pricewatch/internal/model"
)

// Notifier delivers one cycle's change events as a single message.
type Notifier interface {
	Notify(ctx context.Context, events []model.ChangeEvent) error
}
