// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package commands implements the slash command core for the palaver TUI.
package commands

import (
	"context"
	"errors"
)

// =============================================================================
// DISPATCH TYPES
// =============================================================================

// SessionRef is an opaque reference to the remote session: an identifier
// plus a liveness flag. It is owned by the surrounding application; the
// dispatcher only reads it.
type SessionRef struct {
	ID   string
	Live bool
}

// Outcome is the transient result of one dispatch. It is consumed
// immediately by the UI layer (shown as a toast, then discarded).
type Outcome struct {
	// OK is true when the command executed successfully.
	OK bool

	// Message carries the user-facing failure message when OK is false.
	Message string

	// Canceled marks an outcome produced by context cancellation. The
	// caller treats a canceled outcome as a no-op, not a failure.
	Canceled bool
}

// CallResult is the interpreted response of one remote call: a success
// indicator and an optional server-provided message.
type CallResult struct {
	OK      bool
	Message string
}

// Caller is the remote call channel consumed by the dispatcher. The
// surrounding application supplies it; the dispatcher never sees the wire
// format.
type Caller interface {
	Call(ctx context.Context, sessionID, method string, params map[string]string) (CallResult, error)
}

// Sender forwards a literal string through the ordinary message-send path of
// the surrounding conversation pipeline.
type Sender func(ctx context.Context, text string) error

// Fallback messages for failures with no server-provided detail.
const (
	msgNoSession     = "No active session. Start a session before running this command."
	msgCallFailed    = "Command failed. Please try again."
	msgSendFailed    = "Could not send message. Please try again."
	msgNotConfigured = "Command channel is not configured."
)

// =============================================================================
// DISPATCHER
// =============================================================================

// Dispatcher executes confirmed commands. It is stateless and safe for
// concurrent use: the registry is read-only and the session reference is
// supplied per call.
//
// Every failure mode terminates here. Transport errors, malformed responses,
// and explicit server failures are all converted to a failure Outcome;
// nothing propagates past the dispatcher.
type Dispatcher struct {
	caller Caller
	send   Sender
}

// NewDispatcher creates a dispatcher over the given remote call channel and
// message-send path. Either capability may be nil; commands needing a
// missing capability fail with a user-facing outcome.
func NewDispatcher(caller Caller, send Sender) *Dispatcher {
	return &Dispatcher{caller: caller, send: send}
}

// Dispatch executes cmd against the given session and returns the outcome.
// On success the caller is responsible for clearing the input and closing
// any open palette. Dispatch never retries; the user must re-invoke the
// command after a failure.
func (d *Dispatcher) Dispatch(ctx context.Context, cmd Descriptor, sess SessionRef, params map[string]string) Outcome {
	if cmd.RequiresSession && (sess.ID == "" || !sess.Live) {
		return Outcome{OK: false, Message: msgNoSession}
	}

	switch cmd.Kind {
	case KindRemoteCall:
		return d.dispatchRemote(ctx, cmd, sess, params)
	case KindSendMessage:
		return d.dispatchSend(ctx, cmd)
	default:
		return Outcome{OK: false, Message: msgCallFailed}
	}
}

// ErrNoSender is returned by Send when no message-send path is configured.
var ErrNoSender = errors.New("commands: no send path configured")

// Send forwards ordinary (non-command) input through the message-send path.
// Unlike Dispatch it returns the raw error; the caller decides presentation.
func (d *Dispatcher) Send(ctx context.Context, text string) error {
	if d.send == nil {
		return ErrNoSender
	}
	return d.send(ctx, text)
}

// dispatchRemote invokes the remote method and interprets the response.
func (d *Dispatcher) dispatchRemote(ctx context.Context, cmd Descriptor, sess SessionRef, params map[string]string) Outcome {
	if d.caller == nil {
		return Outcome{OK: false, Message: msgNotConfigured}
	}

	res, err := d.caller.Call(ctx, sess.ID, cmd.RemoteMethod, params)
	if err != nil {
		if isCanceled(ctx, err) {
			return Outcome{Canceled: true}
		}
		// Transport-level failure: timeout, disconnect, malformed response.
		return Outcome{OK: false, Message: msgCallFailed}
	}

	if !res.OK {
		msg := res.Message
		if msg == "" {
			msg = msgCallFailed
		}
		return Outcome{OK: false, Message: msg}
	}

	return Outcome{OK: true}
}

// dispatchSend forwards the command's trigger text as a user message.
func (d *Dispatcher) dispatchSend(ctx context.Context, cmd Descriptor) Outcome {
	if d.send == nil {
		return Outcome{OK: false, Message: msgNotConfigured}
	}

	if err := d.send(ctx, cmd.Trigger); err != nil {
		if isCanceled(ctx, err) {
			return Outcome{Canceled: true}
		}
		return Outcome{OK: false, Message: msgSendFailed}
	}

	return Outcome{OK: true}
}

// isCanceled reports whether a failure came from context cancellation rather
// than the transport itself. Caller-side deadline expiry is a real failure
// and is not treated as cancellation.
func isCanceled(ctx context.Context, err error) bool {
	return ctx.Err() == context.Canceled || errors.Is(err, context.Canceled)
}
