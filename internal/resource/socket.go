package resource

import (
	"errors"
	"fmt"
	"io/fs"
	"net"
	"os"
	"time"

	"golang.org/x/sys/unix"

	verrors "github.com/turtacn/Vigil/pkg/errors"
	"github.com/turtacn/Vigil/pkg/logger"
)

const probeTimeout = 200 * time.Millisecond

// BindUnix binds a listening unix socket at path.
//
// A path that already has a live listener is reported as ErrCodeSocketInUse.
// A leftover socket file nobody listens on (a crashed previous owner) is
// removed and the bind retried once.
func BindUnix(path string) (*net.UnixListener, error) {
	l, err := listenUnix(path)
	if err == nil {
		return l, nil
	}
	if !errors.Is(err, unix.EADDRINUSE) {
		return nil, classify("BindUnix", path, err)
	}

	if live, probeErr := probe(path); live {
		return nil, verrors.New(verrors.ErrCodeSocketInUse, "BindUnix", fmt.Sprintf("%s is already bound", path), err)
	} else if !isStale(path, probeErr) {
		return nil, classify("BindUnix", path, err)
	}

	logger.Log.Warn("Removing stale socket", "path", path)
	if rmErr := os.Remove(path); rmErr != nil && !errors.Is(rmErr, fs.ErrNotExist) {
		return nil, classify("BindUnix", path, rmErr)
	}

	l, err = listenUnix(path)
	if err != nil {
		return nil, classify("BindUnix", path, err)
	}
	return l, nil
}

// Chown hands the socket file at path to uid/gid.
func Chown(path string, uid, gid int) error {
	if err := os.Chown(path, uid, gid); err != nil {
		return classify("Chown", path, err)
	}
	return nil
}

// IsPermission reports whether err stems from EACCES or EPERM.
func IsPermission(err error) bool {
	return errors.Is(err, fs.ErrPermission) || verrors.HasCode(err, verrors.ErrCodePermissionDenied)
}

func listenUnix(path string) (*net.UnixListener, error) {
	addr, err := net.ResolveUnixAddr("unix", path)
	if err != nil {
		return nil, err
	}
	return net.ListenUnix("unix", addr)
}

// probe reports whether something accepts connections at path.
func probe(path string) (bool, error) {
	conn, err := net.DialTimeout("unix", path, probeTimeout)
	if err != nil {
		return false, err
	}
	conn.Close()
	return true, nil
}

func isStale(path string, dialErr error) bool {
	if !errors.Is(dialErr, unix.ECONNREFUSED) {
		return false
	}
	fi, err := os.Lstat(path)
	if err != nil {
		return false
	}
	return fi.Mode()&fs.ModeSocket != 0
}

func classify(op, path string, err error) error {
	if errors.Is(err, fs.ErrPermission) {
		return verrors.New(verrors.ErrCodePermissionDenied, op, path, err)
	}
	return err
}

// Personal.AI order the ending
