package ws

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"kidoku/internal/content"
	"kidoku/internal/notify"
	"kidoku/internal/session"
	"kidoku/internal/transcript"
)

type wsConnection interface {
	Close() error
	WriteJSON(v interface{}) error
	ReadJSON(v interface{}) error
}

// ChatSession is the part of *session.Session a connection drives.
type ChatSession interface {
	Run(ctx context.Context) error
	Watch() (<-chan transcript.View, func())
	Login(ctx context.Context, email, password string) error
	Logout(ctx context.Context) error
	SaveNickname(ctx context.Context, nickname string) error
	Send(ctx context.Context, text string) error
	Signal(sig session.Signal)
	ActivateNotification()
}

// Connection bridges one browser page to one session.
type Connection struct {
	ws      wsConnection
	session ChatSession
	browser *browserNotifier
	push    *notify.WebPush // nil when Web Push is off

	fromClient chan ClientMessage
	outbox     chan ServerMessage
	errorCh    chan error
	commands   sync.WaitGroup
}

// NewConnection wires a session to ws. newSession receives the notifier
// the session must use.
func NewConnection(
	ws wsConnection,
	newSession func(notify.Notifier) ChatSession,
	shared notify.Notifier,
	push *notify.WebPush,
) *Connection {
	outbox := make(chan ServerMessage, 16)
	browser := newBrowserNotifier(outbox)

	notifiers := notify.Fanout{browser}
	if shared != nil {
		notifiers = append(notifiers, shared)
	}
	if push != nil {
		notifiers = append(notifiers, push)
	}

	return &Connection{
		ws:         ws,
		session:    newSession(notifiers),
		browser:    browser,
		push:       push,
		fromClient: make(chan ClientMessage),
		outbox:     outbox,
		errorCh:    make(chan error, 3),
	}
}

func (c *Connection) Handle(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	views, stopWatching := c.session.Watch()
	defer stopWatching()

	var wg sync.WaitGroup
	wg.Go(func() {
		c.errorCh <- c.session.Run(ctx)
		cancel()
	})

	wg.Go(func() {
		c.errorCh <- c.pumpMessages(ctx)
		cancel()
	})

	wg.Go(func() {
		c.errorCh <- c.mainLoop(ctx, views)
		cancel()
	})

	var err error
	select {
	case err = <-c.errorCh:
	case <-ctx.Done():
	}
	cancel()
	c.ws.Close()
	wg.Wait()
	c.commands.Wait()

	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}

	return nil
}

func (c *Connection) pumpMessages(ctx context.Context) error {
	for {
		var msg ClientMessage
		if err := c.ws.ReadJSON(&msg); err != nil {
			return err
		}
		select {
		case c.fromClient <- msg:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (c *Connection) mainLoop(ctx context.Context, views <-chan transcript.View) error {
	var lastStatus transcript.Status
	for {
		select {
		case msg := <-c.fromClient:
			c.processClientMessage(ctx, msg)
		case msg := <-c.outbox:
			if err := c.ws.WriteJSON(msg); err != nil {
				return err
			}
		case v, ok := <-views:
			if !ok {
				return nil
			}
			if err := c.ws.WriteJSON(ServerMessage{Type: ServerMessageTypeView, View: &v}); err != nil {
				return err
			}
			if v.Status == transcript.StatusNeedsProfile && lastStatus != transcript.StatusNeedsProfile {
				if err := c.ws.WriteJSON(ServerMessage{Type: ServerMessageTypeSetupProfile}); err != nil {
					return err
				}
			}
			lastStatus = v.Status
		case <-ctx.Done():
			return nil
		}
	}
}

func (c *Connection) processClientMessage(ctx context.Context, msg ClientMessage) {
	switch msg.Type {
	case ClientMessageTypeFocus:
		c.session.Signal(session.SignalFocus)
	case ClientMessageTypeBlur:
		c.session.Signal(session.SignalBlur)
	case ClientMessageTypeVisibility:
		if msg.Visible {
			c.session.Signal(session.SignalVisible)
		} else {
			c.session.Signal(session.SignalHidden)
		}
	case ClientMessageTypeNotificationClick:
		c.session.ActivateNotification()
	case ClientMessageTypePermission:
		c.browser.setPermission(msg.Permission)
	case ClientMessageTypePushSubscription:
		if c.push == nil {
			slog.Debug("push subscription ignored, web push is off")
			return
		}
		if err := c.push.SetSubscription(msg.Subscription); err != nil {
			slog.Warn("invalid push subscription", "error", err)
		}
	case ClientMessageTypeLogin, ClientMessageTypeLogout, ClientMessageTypeNickname, ClientMessageTypeSend:
		// These wait on the backend; the loop keeps serving views meanwhile.
		c.commands.Go(func() { c.runCommand(ctx, msg) })
	default:
		slog.Debug("unknown client message", "type", msg.Type)
	}
}

func (c *Connection) runCommand(ctx context.Context, msg ClientMessage) {
	var err error
	switch msg.Type {
	case ClientMessageTypeLogin:
		err = c.session.Login(ctx, msg.Email, msg.Password)
	case ClientMessageTypeLogout:
		err = c.session.Logout(ctx)
	case ClientMessageTypeNickname:
		err = c.session.SaveNickname(ctx, msg.Nickname)
	case ClientMessageTypeSend:
		err = c.session.Send(ctx, msg.Text)
	}
	if err == nil || ctx.Err() != nil {
		return
	}

	alert := ServerMessage{Type: ServerMessageTypeAlert}
	switch {
	case errors.Is(err, session.ErrSendInFlight), errors.Is(err, session.ErrEmptyMessage):
		return
	case errors.Is(err, session.ErrAuthFailure):
		alert.Text = "Login failed. Check your email and password."
	case errors.Is(err, session.ErrSendFailure):
		alert.Text = "Message could not be sent."
		alert.Input = msg.Text
	case errors.Is(err, content.ErrInvalidNickname):
		alert.Text = fmt.Sprintf("A nickname needs 1 to %d characters and no control characters.", content.MaxNicknameLength)
	default:
		alert.Text = err.Error()
		if msg.Type == ClientMessageTypeSend {
			alert.Input = msg.Text
		}
	}

	select {
	case c.outbox <- alert:
	case <-ctx.Done():
	}
}
