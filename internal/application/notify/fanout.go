// backend/internal/application/notify/fanout.go
package notify

import (
	"context"
	"errors"
	"fmt"
	"log"

	notifdom "assetmarket/internal/domain/notification"
)

// Channel is one delivery medium (mail / push / event bus).
type Channel interface {
	Name() string
	Deliver(ctx context.Context, to notifdom.Recipient, n notifdom.Notification) error
}

// Fanout resolves the recipient once and hands the notification to every
// channel. A failing channel does not stop the others.
type Fanout struct {
	Directory notifdom.RecipientDirectory
	Channels  []Channel
}

func NewFanout(dir notifdom.RecipientDirectory, channels ...Channel) *Fanout {
	var cs []Channel
	for _, c := range channels {
		if c != nil {
			cs = append(cs, c)
		}
	}
	return &Fanout{Directory: dir, Channels: cs}
}

func (f *Fanout) Send(ctx context.Context, n notifdom.Notification) error {
	if f == nil || len(f.Channels) == 0 {
		log.Printf("[notify] no channels configured kind=%s recipient=%q", n.Kind, n.Recipient)
		return nil
	}

	to := notifdom.Recipient{WalletAddress: n.Recipient}
	if f.Directory != nil {
		r, err := f.Directory.Lookup(ctx, n.Recipient)
		switch {
		case err == nil:
			to = r
			if to.WalletAddress == "" {
				to.WalletAddress = n.Recipient
			}
		case errors.Is(err, notifdom.ErrRecipientNotFound):
			// channels that do not need contact data (event bus) still deliver
		default:
			return fmt.Errorf("notify: lookup recipient: %w", err)
		}
	}

	var errs []error
	for _, c := range f.Channels {
		err := c.Deliver(ctx, to, n)
		if err == nil {
			continue
		}
		if errors.Is(err, notifdom.ErrChannelUnavailable) {
			log.Printf("[notify] skip channel=%s recipient=%q reason=no address", c.Name(), n.Recipient)
			continue
		}
		errs = append(errs, fmt.Errorf("%s: %w", c.Name(), err))
	}
	return errors.Join(errs...)
}
