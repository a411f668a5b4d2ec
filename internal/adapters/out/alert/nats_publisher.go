// backend/internal/adapters/out/alert/nats_publisher.go
package alert

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/nats-io/nats.go"

	notifdom "assetmarket/internal/domain/notification"
)

const DefaultSubjectPrefix = "assetmarket.notifications"

// Conn is the part of *nats.Conn the publisher needs.
type Conn interface {
	Publish(subject string, data []byte) error
}

// Event is the wire form published on the bus.
type Event struct {
	Kind      string            `json:"kind"`
	Recipient string            `json:"recipient"`
	Payload   map[string]string `json:"payload"`
	CreatedAt time.Time         `json:"createdAt"`
}

// NATSPublisher publishes every notification to <prefix>.<kind>.
// It does not need contact data, so it reaches wallets missing from the directory.
type NATSPublisher struct {
	conn   Conn
	prefix string
}

func NewNATSPublisher(conn Conn, prefix string) *NATSPublisher {
	prefix = strings.Trim(strings.TrimSpace(prefix), ".")
	if prefix == "" {
		prefix = DefaultSubjectPrefix
	}
	return &NATSPublisher{conn: conn, prefix: prefix}
}

// Connect dials NATS with the same reconnect behaviour for every process.
func Connect(url, name string) (*nats.Conn, error) {
	nc, err := nats.Connect(
		url,
		nats.Name(name),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				log.Printf("[nats] disconnected err=%v", err)
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			log.Printf("[nats] reconnected url=%s", c.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("nats connect %s: %w", url, err)
	}
	return nc, nil
}

func (p *NATSPublisher) Name() string { return "nats" }

func (p *NATSPublisher) Subject(kind notifdom.Kind) string {
	return p.prefix + "." + string(kind)
}

func (p *NATSPublisher) Deliver(_ context.Context, to notifdom.Recipient, n notifdom.Notification) error {
	recipient := to.WalletAddress
	if recipient == "" {
		recipient = n.Recipient
	}
	b, err := json.Marshal(Event{
		Kind:      string(n.Kind),
		Recipient: recipient,
		Payload:   n.Payload,
		CreatedAt: n.CreatedAt,
	})
	if err != nil {
		return fmt.Errorf("alert: marshal event: %w", err)
	}

	subject := p.Subject(n.Kind)
	if err := p.conn.Publish(subject, b); err != nil {
		return fmt.Errorf("alert: publish %s: %w", subject, err)
	}
	log.Printf("[nats] published %d bytes to %s", len(b), subject)
	return nil
}
