package handshake

import (
	"errors"
	"fmt"
	"io/fs"
	"net"
	"os"
	"time"

	"golang.org/x/sys/unix"

	"github.com/turtacn/Vigil/internal/resource"
	"github.com/turtacn/Vigil/pkg/consts"
	verrors "github.com/turtacn/Vigil/pkg/errors"
	"github.com/turtacn/Vigil/pkg/protocol"
)

// Client is the requesting side of the handshake.
type Client struct {
	InboxPath  string
	OutboxPath string
	// Timeout bounds accepting the reply and reading Ack. It is a single
	// window, not a retry budget.
	Timeout time.Duration
}

func NewClient(inboxPath, outboxPath string) *Client {
	return &Client{
		InboxPath:  inboxPath,
		OutboxPath: outboxPath,
		Timeout:    consts.LogoutAckTimeout,
	}
}

// RequestLogout asks the supervisor listening on the inbox to end its session
// and waits for the acknowledgement.
//
// Permission failures carry ErrCodePermissionDenied; a missing Ack carries
// ErrCodeTimeout.
func (c *Client) RequestLogout() error {
	l, err := resource.BindUnix(c.OutboxPath)
	if err != nil {
		return wrapIO("BindOutbox", err)
	}
	defer l.Close()

	if err := Send(c.InboxPath, protocol.MessageLogout); err != nil {
		return err
	}

	deadline := time.Now().Add(c.Timeout)
	if err := l.SetDeadline(deadline); err != nil {
		return err
	}
	conn, err := l.AcceptUnix()
	if err != nil {
		return wrapIO("AwaitAck", err)
	}
	defer conn.Close()

	if err := conn.SetReadDeadline(deadline); err != nil {
		return err
	}
	buf, err := readMessage(conn)
	if err != nil {
		return wrapIO("AwaitAck", err)
	}
	msg, err := protocol.Decode(buf)
	if err != nil {
		return err
	}
	if msg != protocol.MessageAck {
		return verrors.New(verrors.ErrCodeProtocol, "AwaitAck", fmt.Sprintf("expected ack but got %s", msg), nil)
	}
	return nil
}

// Send connects to path, writes msg and returns without waiting for a reply.
func Send(path string, msg protocol.Message) error {
	conn, err := net.DialTimeout("unix", path, consts.LogoutAckTimeout)
	if err != nil {
		return wrapIO("Send", err)
	}
	defer conn.Close()

	if _, err := conn.Write(msg.Encode()); err != nil {
		return wrapIO("Send", err)
	}
	return nil
}

func wrapIO(op string, err error) error {
	switch {
	case resource.IsPermission(err):
		if verrors.HasCode(err, verrors.ErrCodePermissionDenied) {
			return err
		}
		return verrors.New(verrors.ErrCodePermissionDenied, op, "permission denied", err)
	case errors.Is(err, os.ErrDeadlineExceeded):
		return verrors.New(verrors.ErrCodeTimeout, op, "no acknowledgement within timeout", err)
	case errors.Is(err, fs.ErrNotExist), errors.Is(err, unix.ECONNREFUSED):
		return verrors.New(verrors.ErrCodeHandleLogout, op, "no running session", err)
	}
	return err
}

// Personal.AI order the ending
