package supervisor

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/Vigil/internal/auth"
	"github.com/turtacn/Vigil/internal/catalog"
	"github.com/turtacn/Vigil/internal/handshake"
	"github.com/turtacn/Vigil/internal/xorg"
	"github.com/turtacn/Vigil/pkg/consts"
	verrors "github.com/turtacn/Vigil/pkg/errors"
	"github.com/turtacn/Vigil/pkg/protocol"
	"github.com/turtacn/Vigil/pkg/secret"
)

type recorder struct {
	mu    sync.Mutex
	calls []string
}

func (r *recorder) add(call string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, call)
}

func (r *recorder) list() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.calls...)
}

type fakeEnv struct {
	rec *recorder
	err error
}

func (e *fakeEnv) Apply(username, home, shell string, uid, tty int, extra map[string]string) error {
	e.rec.add("env")
	return e.err
}

func (e *fakeEnv) Restore() error {
	e.rec.add("env.restore")
	return nil
}

type fakeHandle struct {
	rec  *recorder
	name string
}

func (h *fakeHandle) Stop() error {
	h.rec.add(h.name + ".stop")
	return errors.New("stop is best-effort")
}

type fakeBackend struct {
	rec        *recorder
	serverErr  error
	desktopErr error
}

func (b *fakeBackend) StartDisplayServer(*auth.Identity) (xorg.Handle, error) {
	b.rec.add("server.start")
	if b.serverErr != nil {
		return nil, b.serverErr
	}
	return &fakeHandle{rec: b.rec, name: "server"}, nil
}

func (b *fakeBackend) StartDesktop(_ xorg.Handle, _ *auth.Identity, script string) (xorg.Handle, error) {
	b.rec.add("desktop.start")
	if b.desktopErr != nil {
		return nil, b.desktopErr
	}
	return &fakeHandle{rec: b.rec, name: "desktop"}, nil
}

type fakeSwitcher struct {
	rec *recorder
}

func (s *fakeSwitcher) Switch(tty int) error {
	s.rec.add("switch")
	return errors.New("no console")
}

type fixture struct {
	rec     *recorder
	env     *fakeEnv
	backend *fakeBackend
	sup     *Supervisor
	inbox   string
	outbox  string
}

func newFixture(t *testing.T) *fixture {
	dir := t.TempDir()
	rec := &recorder{}
	f := &fixture{
		rec:     rec,
		env:     &fakeEnv{rec: rec},
		backend: &fakeBackend{rec: rec},
		inbox:   filepath.Join(dir, "inbox"),
		outbox:  filepath.Join(dir, "outbox"),
	}
	f.sup = New(Config{TTY: 2, InboxPath: f.inbox, OutboxPath: f.outbox, Verbose: true},
		f.env, f.backend, &fakeSwitcher{rec: rec})
	return f
}

func newIdentity(t *testing.T) *auth.Identity {
	id := &auth.Identity{Username: "alice", Home: t.TempDir(), UID: os.Getuid(), GID: os.Getgid()}
	id.Attach(secret.FromString("hunter2"), nil)
	return id
}

var xEntry = catalog.Entry{Name: "bspwm", Kind: catalog.KindX, Path: "/etc/vigil/wms/bspwm"}

func startAsync(ctx context.Context, f *fixture, id *auth.Identity) <-chan error {
	done := make(chan error, 1)
	go func() { done <- f.sup.Start(ctx, xEntry, id) }()
	return done
}

func waitAwaiting(t *testing.T, f *fixture) {
	t.Helper()
	require.Eventually(t, func() bool {
		return f.sup.State() == consts.StateAwaitingLogout
	}, 2*time.Second, 10*time.Millisecond)
}

func TestStart_LogoutTearsDownInOrder(t *testing.T) {
	f := newFixture(t)
	id := newIdentity(t)
	assert.Equal(t, consts.StateIdle, f.sup.State())

	done := startAsync(context.Background(), f, id)
	waitAwaiting(t, f)
	assert.False(t, id.Invalidated())

	require.NoError(t, handshake.NewClient(f.inbox, f.outbox).RequestLogout())

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("supervisor did not return after logout")
	}

	assert.Equal(t, []string{
		"env", "server.start", "desktop.start",
		"switch", "desktop.stop", "server.stop", "env.restore",
	}, f.rec.list())
	assert.True(t, id.Invalidated())
	assert.Equal(t, consts.StateDone, f.sup.State())
	_, err := os.Stat(f.inbox)
	assert.True(t, os.IsNotExist(err), "inbox socket should be removed")
}

func TestStart_DesktopFailureStopsServer(t *testing.T) {
	f := newFixture(t)
	f.backend.desktopErr = errors.New("no such script")
	id := newIdentity(t)

	err := f.sup.Start(context.Background(), xEntry, id)
	require.Error(t, err)
	assert.True(t, verrors.HasCode(err, verrors.ErrCodeDesktop))
	assert.Equal(t, []string{"env", "server.start", "desktop.start", "switch", "server.stop", "env.restore"}, f.rec.list())
	assert.True(t, id.Invalidated())
	assert.Equal(t, consts.StateDone, f.sup.State())
}

func TestStart_DisplayServerFailure(t *testing.T) {
	f := newFixture(t)
	f.backend.serverErr = errors.New("no X")
	id := newIdentity(t)

	err := f.sup.Start(context.Background(), xEntry, id)
	assert.True(t, verrors.HasCode(err, verrors.ErrCodeDisplayServer))
	assert.Equal(t, []string{"env", "server.start", "switch", "env.restore"}, f.rec.list())
	assert.True(t, id.Invalidated())
}

func TestStart_InboxInUse(t *testing.T) {
	f := newFixture(t)
	other, err := handshake.Bind(f.inbox, os.Getuid(), os.Getgid(), false)
	require.NoError(t, err)
	defer other.Close()
	id := newIdentity(t)

	err = f.sup.Start(context.Background(), xEntry, id)
	assert.True(t, verrors.HasCode(err, verrors.ErrCodeInboxOpen))
	assert.True(t, verrors.HasCode(err, verrors.ErrCodeSocketInUse))
	// Nothing was started, so only the environment is put back.
	assert.Equal(t, []string{"env", "env.restore"}, f.rec.list())
	assert.True(t, id.Invalidated())
}

func TestStart_EnvironmentFailure(t *testing.T) {
	f := newFixture(t)
	f.env.err = errors.New("setenv failed")
	id := newIdentity(t)

	err := f.sup.Start(context.Background(), xEntry, id)
	assert.True(t, verrors.HasCode(err, verrors.ErrCodeEnvironment))
	assert.Equal(t, []string{"env"}, f.rec.list())
	assert.True(t, id.Invalidated())
}

func TestStart_UnsupportedKinds(t *testing.T) {
	for _, kind := range []catalog.Kind{catalog.KindWayland, catalog.KindShell} {
		t.Run(kind.String(), func(t *testing.T) {
			f := newFixture(t)
			id := newIdentity(t)

			err := f.sup.Start(context.Background(), catalog.Entry{Name: "x", Kind: kind, Path: "/s"}, id)
			assert.True(t, verrors.HasCode(err, verrors.ErrCodeNotSupported))
			assert.Empty(t, f.rec.list())
			assert.True(t, id.Invalidated())
		})
	}
}

func TestStart_MissingScript(t *testing.T) {
	f := newFixture(t)
	err := f.sup.Start(context.Background(), catalog.Entry{Name: "none", Kind: catalog.KindX}, newIdentity(t))
	assert.True(t, verrors.HasCode(err, verrors.ErrCodeDesktop))
	assert.Empty(t, f.rec.list())
}

func TestStart_ContextCancelTearsDown(t *testing.T) {
	f := newFixture(t)
	id := newIdentity(t)
	ctx, cancel := context.WithCancel(context.Background())

	done := startAsync(ctx, f, id)
	waitAwaiting(t, f)
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("supervisor did not return after cancel")
	}
	assert.Equal(t, []string{
		"env", "server.start", "desktop.start",
		"switch", "desktop.stop", "server.stop", "env.restore",
	}, f.rec.list())
	assert.True(t, id.Invalidated())
}

func TestStart_OneSessionAtATime(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := startAsync(ctx, f, newIdentity(t))
	waitAwaiting(t, f)

	second := newIdentity(t)
	err := f.sup.Start(context.Background(), xEntry, second)
	assert.True(t, verrors.HasCode(err, verrors.ErrCodeAttemptInFlight))
	assert.True(t, second.Invalidated())
	assert.Equal(t, consts.StateAwaitingLogout, f.sup.State())

	cancel()
	<-done
}

func TestAwaitLogout_IgnoresAck(t *testing.T) {
	dir := t.TempDir()
	inboxPath := filepath.Join(dir, "inbox")
	inbox, err := handshake.Bind(inboxPath, os.Getuid(), os.Getgid(), false)
	require.NoError(t, err)
	defer inbox.Close()

	done := make(chan error, 1)
	go func() { done <- AwaitLogout(context.Background(), inbox, filepath.Join(dir, "gone")) }()

	require.NoError(t, handshake.Send(inboxPath, protocol.MessageAck))
	select {
	case <-done:
		t.Fatal("Ack must not end the session")
	case <-time.After(100 * time.Millisecond):
	}

	// No requester is listening on the outbox; logout still completes.
	require.NoError(t, handshake.Send(inboxPath, protocol.MessageLogout))
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("AwaitLogout did not return after Logout")
	}
}
