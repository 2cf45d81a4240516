// Package matrix connects Hibiki to its homeserver: a syncing client that
// relays the operator's messages inward and replies outward. Only messages
// from the configured operator are ever handled.
package matrix

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"maunium.net/go/mautrix"
	"maunium.net/go/mautrix/event"
	"maunium.net/go/mautrix/id"

	"github.com/dmoraru/hibiki/internal/hibiki/store"
)

// Config holds Matrix connection settings.
type Config struct {
	Homeserver  string
	UserID      string
	AccessToken string
	// OperatorMXID is the single user whose messages are handled. Everyone
	// else is ignored.
	OperatorMXID string
	// Rooms the bot joins on startup. Messages from the operator are also
	// accepted in rooms not listed here (e.g. a fresh DM).
	Rooms []string
	// Store persists the sync position across restarts. When nil the
	// default in-memory store is used and history replays on every start.
	Store *store.Store
}

// MessageHandler processes one inbound text message from the operator.
type MessageHandler func(ctx context.Context, evt *event.Event)

// Client wraps the mautrix client.
type Client struct {
	client  *mautrix.Client
	config  *Config
	stopCh  chan struct{}
	handler MessageHandler
}

// New creates a Matrix client.
func New(config *Config) (*Client, error) {
	mc, err := mautrix.NewClient(config.Homeserver, id.UserID(config.UserID), config.AccessToken)
	if err != nil {
		return nil, fmt.Errorf("create matrix client: %w", err)
	}

	if config.Store != nil {
		mc.Store = newSyncStore(config.Store)
	} else {
		slog.Warn("no persistent sync store configured; room history will replay on restart")
	}

	return &Client{
		client: mc,
		config: config,
		stopCh: make(chan struct{}),
	}, nil
}

// Start joins the configured rooms and begins syncing in the background,
// reconnecting with exponential backoff when sync drops.
func (c *Client) Start(ctx context.Context, handler MessageHandler) error {
	c.handler = handler

	syncer := c.client.Syncer.(*mautrix.DefaultSyncer)
	syncer.OnEventType(event.EventMessage, c.handleMessage)

	for _, roomID := range c.config.Rooms {
		if err := c.joinRoom(id.RoomID(roomID)); err != nil {
			return fmt.Errorf("join room %s: %w", roomID, err)
		}
	}

	go func() {
		const (
			backoffMin = 2 * time.Second
			backoffMax = 5 * time.Minute
		)
		backoff := backoffMin
		for {
			if err := c.client.Sync(); err != nil {
				select {
				case <-c.stopCh:
					return
				default:
				}
				slog.Error("matrix sync dropped; reconnecting", "error", err, "backoff", backoff)
				select {
				case <-c.stopCh:
					return
				case <-time.After(backoff):
				}
				backoff *= 2
				if backoff > backoffMax {
					backoff = backoffMax
				}
				continue
			}
			// Sync returned nil: clean StopSync.
			return
		}
	}()

	return nil
}

// Stop terminates the sync loop.
func (c *Client) Stop() {
	close(c.stopCh)
	c.client.StopSync()
}

// SendMessage sends a plain text message to a room.
func (c *Client) SendMessage(roomID, message string) error {
	if _, err := c.client.SendText(context.Background(), id.RoomID(roomID), message); err != nil {
		return fmt.Errorf("send message: %w", err)
	}
	return nil
}

// SendFormattedMessage sends HTML with a plain-text fallback.
func (c *Client) SendFormattedMessage(roomID, html, plaintext string) error {
	content := event.MessageEventContent{
		MsgType:       event.MsgText,
		Body:          plaintext,
		Format:        event.FormatHTML,
		FormattedBody: html,
	}
	if _, err := c.client.SendMessageEvent(context.Background(), id.RoomID(roomID), event.EventMessage, &content); err != nil {
		return fmt.Errorf("send formatted message: %w", err)
	}
	return nil
}

// SetTyping toggles the typing indicator while a message is being processed.
func (c *Client) SetTyping(roomID string, typing bool, timeout time.Duration) error {
	if _, err := c.client.UserTyping(context.Background(), id.RoomID(roomID), typing, timeout); err != nil {
		return fmt.Errorf("set typing: %w", err)
	}
	return nil
}

// handleMessage filters inbound events down to text messages from the
// operator and hands them to the registered handler.
func (c *Client) handleMessage(ctx context.Context, evt *event.Event) {
	if evt.Sender == id.UserID(c.config.UserID) {
		return
	}

	content := evt.Content.AsMessage()
	if content == nil || content.MsgType != event.MsgText {
		return
	}

	if evt.Sender.String() != c.config.OperatorMXID {
		slog.Debug("ignoring message from non-operator", "sender", evt.Sender)
		return
	}

	if c.handler != nil {
		c.handler(ctx, evt)
	}
}

func (c *Client) joinRoom(roomID id.RoomID) error {
	if _, err := c.client.JoinRoomByID(context.Background(), roomID); err != nil {
		// M_FORBIDDEN usually means the bot is already a member.
		if errors.Is(err, mautrix.MForbidden) {
			slog.Warn("room join forbidden, continuing", "room", roomID)
			return nil
		}
		return err
	}
	return nil
}
