// Package xorg starts and stops the X display server and the desktop
// process of a graphical session.
package xorg

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"golang.org/x/sys/unix"

	"github.com/turtacn/Vigil/internal/auth"
	"github.com/turtacn/Vigil/internal/process"
	"github.com/turtacn/Vigil/pkg/logger"
	"github.com/turtacn/Vigil/pkg/protocol"
)

const (
	maxDisplay   = 64
	pollInterval = 50 * time.Millisecond
	cookieBytes  = 16
)

// Handle is a started component that can be stopped best-effort.
type Handle interface {
	Stop() error
}

// Server is a running X server.
type Server struct {
	Display  int
	AuthFile string
	proc     *process.ProcessManager
	grace    time.Duration
}

// Name returns the DISPLAY value of the server, e.g. ":0".
func (s *Server) Name() string { return ":" + strconv.Itoa(s.Display) }

func (s *Server) Stop() error {
	logger.Log.Info("Xorg: Stopping display server", "display", s.Name())
	return s.proc.Stop(s.grace)
}

// Desktop is the user's desktop or window manager process.
type Desktop struct {
	proc  *process.ProcessManager
	grace time.Duration
}

func (d *Desktop) Stop() error {
	logger.Log.Info("Xorg: Stopping desktop", "pid", d.proc.Pid())
	return d.proc.Stop(d.grace)
}

// Backend launches X sessions according to an XConfig.
type Backend struct {
	cfg       protocol.XConfig
	tty       int
	lockDir   string
	socketDir string
	setenv    func(key, value string) error
}

// New returns a backend that starts servers on virtual terminal tty.
func New(cfg protocol.XConfig, tty int) *Backend {
	return &Backend{
		cfg:       cfg,
		tty:       tty,
		lockDir:   "/tmp",
		socketDir: "/tmp/.X11-unix",
		setenv:    os.Setenv,
	}
}

// StartDisplayServer picks a free display, writes an authorization cookie
// for id and waits until the server accepts connections. DISPLAY and
// XAUTHORITY are exported on success.
func (b *Backend) StartDisplayServer(id *auth.Identity) (Handle, error) {
	display, err := freeDisplay(b.lockDir, b.socketDir)
	if err != nil {
		return nil, err
	}

	var authFile string
	if b.cfg.XAuthPath != "" {
		authFile = filepath.Join(id.Home, ".Xauthority")
		if err := b.writeCookie(authFile, display, id); err != nil {
			return nil, fmt.Errorf("xauth: %w", err)
		}
	}

	proc := process.New("xserver")
	err = proc.Start(process.Spec{
		Path:   b.cfg.ServerPath,
		Args:   serverArgs(display, b.tty, authFile, b.cfg.ServerArgs),
		Stdout: os.Stderr,
		Stderr: os.Stderr,
	})
	if err != nil {
		return nil, err
	}
	srv := &Server{Display: display, AuthFile: authFile, proc: proc, grace: b.cfg.StopGrace}

	socket := filepath.Join(b.socketDir, "X"+strconv.Itoa(display))
	if err := waitReady(socket, proc.Exited(), b.cfg.StartupTimeout); err != nil {
		if serr := srv.Stop(); serr != nil {
			logger.Log.Warn("Xorg: Failed to stop unready server", "err", serr)
		}
		return nil, err
	}

	if err := b.setenv("DISPLAY", srv.Name()); err != nil {
		return nil, errors.Join(err, srv.Stop())
	}
	if authFile != "" {
		if err := b.setenv("XAUTHORITY", authFile); err != nil {
			return nil, errors.Join(err, srv.Stop())
		}
	}
	logger.Log.Info("Xorg: Display server ready", "display", srv.Name(), "pid", proc.Pid())
	return srv, nil
}

// StartDesktop runs script through the desktop shell as the user of id, in
// a session of its own rooted at the user's home.
func (b *Backend) StartDesktop(server Handle, id *auth.Identity, script string) (Handle, error) {
	if srv, ok := server.(*Server); ok {
		select {
		case <-srv.proc.Exited():
			return nil, fmt.Errorf("display server %s is not running", srv.Name())
		default:
		}
	}

	proc := process.New("desktop")
	err := proc.Start(process.Spec{
		Path:       b.cfg.DesktopShell,
		Args:       []string{script},
		Dir:        id.Home,
		Credential: credentialFor(id),
		NewSession: true,
	})
	if err != nil {
		return nil, err
	}
	return &Desktop{proc: proc, grace: b.cfg.StopGrace}, nil
}

// writeCookie stores a fresh cookie for display in file and hands the file
// to the user. The path lives in a directory the user controls, so links
// are never followed and ownership is changed through the open descriptor.
func (b *Backend) writeCookie(file string, display int, id *auth.Identity) error {
	cookie, err := newCookie()
	if err != nil {
		return err
	}

	if fi, err := os.Lstat(file); err == nil && !fi.Mode().IsRegular() {
		logger.Log.Warn("Xorg: Replacing non-regular authority file", "path", file, "mode", fi.Mode().String())
		if err := os.Remove(file); err != nil {
			return err
		}
	}
	f, err := os.OpenFile(file, os.O_CREATE|os.O_WRONLY|unix.O_NOFOLLOW|unix.O_CLOEXEC, 0o600)
	if err != nil {
		return err
	}
	defer f.Close()

	var st unix.Stat_t
	if err := unix.Fstat(int(f.Fd()), &st); err != nil {
		return err
	}
	if st.Mode&unix.S_IFMT != unix.S_IFREG || st.Nlink != 1 {
		return fmt.Errorf("refusing authority file %s with %d links", file, st.Nlink)
	}
	if err := f.Truncate(0); err != nil {
		return err
	}
	if err := unix.Fchown(int(f.Fd()), id.UID, id.GID); err != nil {
		return err
	}
	if err := unix.Fchmod(int(f.Fd()), 0o600); err != nil {
		return err
	}

	// The cookie goes through stdin so it never shows up in an argv.
	proc := process.New("xauth")
	err = proc.Start(process.Spec{
		Path:       b.cfg.XAuthPath,
		Args:       []string{"-q", "-f", file, "source", "-"},
		Dir:        id.Home,
		Credential: credentialFor(id),
		Stdin:      strings.NewReader("add :" + strconv.Itoa(display) + " . " + cookie + "\n"),
	})
	if err != nil {
		return err
	}
	return proc.Wait()
}

// credentialFor returns nil when the process already runs as the user.
func credentialFor(id *auth.Identity) *syscall.Credential {
	if id.UID == os.Getuid() {
		return nil
	}
	groups := make([]uint32, 0, len(id.Groups))
	for _, g := range id.Groups {
		groups = append(groups, uint32(g))
	}
	return &syscall.Credential{Uid: uint32(id.UID), Gid: uint32(id.GID), Groups: groups}
}

// freeDisplay returns the first display with neither a lock file nor a
// socket. A socket left by a crashed server would otherwise pass for a
// ready one.
func freeDisplay(lockDir, socketDir string) (int, error) {
	for n := 0; n < maxDisplay; n++ {
		lock := filepath.Join(lockDir, ".X"+strconv.Itoa(n)+"-lock")
		socket := filepath.Join(socketDir, "X"+strconv.Itoa(n))
		if missing(lock) && missing(socket) {
			return n, nil
		}
	}
	return 0, errors.New("no free display")
}

func missing(path string) bool {
	_, err := os.Lstat(path)
	return errors.Is(err, fs.ErrNotExist)
}

func serverArgs(display, tty int, authFile string, extra []string) []string {
	args := []string{":" + strconv.Itoa(display), "vt" + strconv.Itoa(tty)}
	if authFile != "" {
		args = append(args, "-auth", authFile)
	}
	return append(args, extra...)
}

func newCookie() (string, error) {
	buf := make([]byte, cookieBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

// waitReady polls for the server socket until it appears, the server
// exits, or timeout elapses.
func waitReady(socket string, exited <-chan struct{}, timeout time.Duration) error {
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	tick := time.NewTicker(pollInterval)
	defer tick.Stop()

	for {
		if _, err := os.Stat(socket); err == nil {
			return nil
		}
		select {
		case <-exited:
			return errors.New("display server exited during startup")
		case <-deadline.C:
			return fmt.Errorf("display server not ready after %s", timeout)
		case <-tick.C:
		}
	}
}

// Personal.AI order the ending
