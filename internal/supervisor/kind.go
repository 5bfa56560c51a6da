package supervisor

import (
	"context"

	"github.com/turtacn/Vigil/internal/auth"
	"github.com/turtacn/Vigil/internal/catalog"
	"github.com/turtacn/Vigil/internal/handshake"
	"github.com/turtacn/Vigil/internal/xorg"
	verrors "github.com/turtacn/Vigil/pkg/errors"
	"github.com/turtacn/Vigil/pkg/fsm"
	"github.com/turtacn/Vigil/pkg/logger"
	"github.com/turtacn/Vigil/pkg/protocol"
)

// Kind is what a session variant must provide to be supervised.
type Kind interface {
	Name() string
	// Prepare validates the session before anything is bound or started.
	Prepare(id *auth.Identity) error
	// Start launches the session processes, reporting each stage reached.
	Start(id *auth.Identity, stage func(fsm.Event)) error
	// Await blocks until the user asks to log out.
	Await(ctx context.Context, inbox *handshake.Inbox, outboxPath string) error
	// Teardown stops whatever Start launched, newest first. Best-effort.
	Teardown()
}

// Backend starts the display server and desktop of a graphical session.
type Backend interface {
	StartDisplayServer(id *auth.Identity) (xorg.Handle, error)
	StartDesktop(server xorg.Handle, id *auth.Identity, script string) (xorg.Handle, error)
}

// KindFor returns the supervised implementation of entry.
func KindFor(entry catalog.Entry, backend Backend) Kind {
	switch entry.Kind {
	case catalog.KindX:
		return &xSession{backend: backend, script: entry.Path}
	default:
		return unsupported{kind: entry.Kind}
	}
}

type xSession struct {
	backend Backend
	script  string
	server  xorg.Handle
	desktop xorg.Handle
}

func (x *xSession) Name() string { return catalog.KindX.String() }

func (x *xSession) Prepare(*auth.Identity) error {
	if x.script == "" {
		return verrors.New(verrors.ErrCodeDesktop, "Prepare", "no init script selected", nil)
	}
	return nil
}

func (x *xSession) Start(id *auth.Identity, stage func(fsm.Event)) error {
	server, err := x.backend.StartDisplayServer(id)
	if err != nil {
		return verrors.New(verrors.ErrCodeDisplayServer, "Start", "display server setup failed", err)
	}
	x.server = server
	stage(eventDisplay)

	desktop, err := x.backend.StartDesktop(server, id, x.script)
	if err != nil {
		return verrors.New(verrors.ErrCodeDesktop, "Start", "desktop start failed", err)
	}
	x.desktop = desktop
	stage(eventDesktop)
	return nil
}

func (x *xSession) Await(ctx context.Context, inbox *handshake.Inbox, outboxPath string) error {
	return AwaitLogout(ctx, inbox, outboxPath)
}

func (x *xSession) Teardown() {
	if x.desktop != nil {
		if err := x.desktop.Stop(); err != nil {
			logger.Log.Warn("Supervisor: Failed to stop desktop", "err", err)
		}
	}
	if x.server != nil {
		if err := x.server.Stop(); err != nil {
			logger.Log.Warn("Supervisor: Failed to stop display server", "err", err)
		}
	}
}

// unsupported stands in for session variants without an implementation.
type unsupported struct {
	kind catalog.Kind
}

func (u unsupported) Name() string { return u.kind.String() }

func (u unsupported) Prepare(*auth.Identity) error {
	return verrors.New(verrors.ErrCodeNotSupported, "Prepare", u.kind.String()+" sessions are not supported", nil)
}

func (u unsupported) Start(*auth.Identity, func(fsm.Event)) error { return u.Prepare(nil) }

func (u unsupported) Await(context.Context, *handshake.Inbox, string) error { return u.Prepare(nil) }

func (u unsupported) Teardown() {}

// AwaitLogout serves inbox until a Logout arrives, acknowledges it on
// outboxPath and returns. Other messages are ignored.
func AwaitLogout(ctx context.Context, inbox *handshake.Inbox, outboxPath string) error {
	return inbox.Serve(ctx, func(msg protocol.Message) (handshake.Action, error) {
		if msg != protocol.MessageLogout {
			return handshake.Continue, nil
		}
		// Logout proceeds even when the requester is gone.
		if err := handshake.Send(outboxPath, protocol.MessageAck); err != nil {
			logger.Log.Warn("Supervisor: Failed to acknowledge logout", "outbox", outboxPath, "err", err)
		}
		return handshake.Stop, nil
	})
}

// Personal.AI order the ending
