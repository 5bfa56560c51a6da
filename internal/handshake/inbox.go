// Package handshake implements the logout rendezvous between a short-lived
// logout command and the long-running session supervisor.
//
// Two filesystem sockets are involved. The supervisor listens on the inbox;
// a requester binds its own outbox, sends Logout to the inbox and waits for
// the supervisor to connect back and send Ack. Every message is one byte.
package handshake

import (
	"context"
	"errors"
	"io"
	"net"
	"sync"
	"time"

	"golang.org/x/sys/unix"

	"github.com/turtacn/Vigil/internal/monitor"
	"github.com/turtacn/Vigil/internal/resource"
	verrors "github.com/turtacn/Vigil/pkg/errors"
	"github.com/turtacn/Vigil/pkg/logger"
	"github.com/turtacn/Vigil/pkg/protocol"
)

// Action tells Serve whether to keep accepting after a message.
type Action int

const (
	Continue Action = iota
	Stop
)

// Handler processes one decoded message. A returned error is logged and the
// loop continues.
type Handler func(msg protocol.Message) (Action, error)

const acceptBackoff = 50 * time.Millisecond

// Inbox is a bound listening endpoint owned by the session user.
type Inbox struct {
	path     string
	listener *net.UnixListener
	verbose  bool
	log      logger.Logger

	closeOnce sync.Once
	closeErr  error
}

// Bind creates the inbox at path and hands the socket file to uid/gid so an
// unprivileged logout request from that user can reach it. Both steps are
// fatal on failure; nothing is left bound.
func Bind(path string, uid, gid int, verbose bool) (*Inbox, error) {
	l, err := resource.BindUnix(path)
	if err != nil {
		return nil, err
	}
	if err := resource.Chown(path, uid, gid); err != nil {
		l.Close()
		return nil, err
	}

	in := &Inbox{
		path:     path,
		listener: l,
		verbose:  verbose,
		log:      logger.Log.With("component", "inbox", "path", path),
	}
	if verbose {
		in.log.Info("Inbox bound", "uid", uid, "gid", gid)
	}
	return in, nil
}

func (in *Inbox) Path() string { return in.path }

// Close stops the listener and unlinks the socket file. Safe to call twice.
func (in *Inbox) Close() error {
	in.closeOnce.Do(func() {
		in.closeErr = in.listener.Close()
	})
	return in.closeErr
}

// Serve accepts connections until handler returns Stop, ctx is cancelled or
// the listener fails for good. Each connection carries one message read
// without a deadline; malformed reads are logged and dropped.
func (in *Inbox) Serve(ctx context.Context, handler Handler) error {
	stop := context.AfterFunc(ctx, func() { in.Close() })
	defer stop()

	for {
		conn, err := in.listener.AcceptUnix()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if errors.Is(err, net.ErrClosed) {
				return verrors.New(verrors.ErrCodeHandleLogout, "Serve", "inbox listener closed", err)
			}
			in.debugf("Failed to accept connection", "err", err)
			time.Sleep(acceptBackoff)
			continue
		}

		msg, err := in.receive(conn)
		conn.Close()
		if err != nil {
			in.debugf("Dropped handshake connection", "err", err)
			continue
		}

		monitor.HandshakeMessages.WithLabelValues(msg.String()).Inc()
		if in.verbose {
			in.log.Info("Received handshake message", "message", msg.String())
		}

		action, err := handler(msg)
		if err != nil {
			in.debugf("Failed to handle incoming message", "message", msg.String(), "err", err)
			continue
		}
		if action == Stop {
			return nil
		}
	}
}

func (in *Inbox) receive(conn *net.UnixConn) (protocol.Message, error) {
	if in.verbose {
		if uid, err := peerUID(conn); err == nil {
			in.log.Info("Incoming connection", "peer_uid", uid)
		}
	}
	buf, err := readMessage(conn)
	if err != nil {
		return 0, err
	}
	return protocol.Decode(buf)
}

func (in *Inbox) debugf(msg string, args ...any) {
	if in.verbose {
		in.log.Warn(msg, args...)
	}
}

// readMessage returns whatever the first read delivers, at most two bytes.
// A peer that keeps its end open after writing is still answered, and two
// bytes are enough to tell a valid message from an oversized one.
func readMessage(conn net.Conn) ([]byte, error) {
	buf := make([]byte, 2)
	n, err := conn.Read(buf)
	if n > 0 {
		return buf[:n], nil
	}
	if err == nil || err == io.EOF {
		return nil, nil
	}
	return nil, err
}

func peerUID(conn *net.UnixConn) (uint32, error) {
	raw, err := conn.SyscallConn()
	if err != nil {
		return 0, err
	}
	var cred *unix.Ucred
	var credErr error
	if err := raw.Control(func(fd uintptr) {
		cred, credErr = unix.GetsockoptUcred(int(fd), unix.SOL_SOCKET, unix.SO_PEERCRED)
	}); err != nil {
		return 0, err
	}
	if credErr != nil {
		return 0, credErr
	}
	return cred.Uid, nil
}

// Personal.AI order the ending
