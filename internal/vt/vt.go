// Package vt switches the active Linux virtual terminal.
package vt

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"

	"github.com/turtacn/Vigil/pkg/logger"
)

// ioctl requests from linux/vt.h.
const (
	vtActivate   = 0x5606
	vtWaitActive = 0x5607
)

const consolePath = "/dev/tty0"

// Switcher changes the foreground terminal.
type Switcher interface {
	Switch(tty int) error
}

// Console switches terminals through the console device. It needs root.
type Console struct {
	Path string
}

func NewConsole() *Console {
	return &Console{Path: consolePath}
}

// Switch activates tty and waits until the kernel has made it current.
func (c *Console) Switch(tty int) error {
	if tty < 1 || tty > 63 {
		return fmt.Errorf("vt: terminal %d out of range", tty)
	}
	f, err := os.OpenFile(c.Path, os.O_RDWR|unix.O_NOCTTY, 0)
	if err != nil {
		return err
	}
	defer f.Close()

	fd := int(f.Fd())
	if err := unix.IoctlSetInt(fd, vtActivate, tty); err != nil {
		return fmt.Errorf("vt: activate %d: %w", tty, err)
	}
	if err := unix.IoctlSetInt(fd, vtWaitActive, tty); err != nil {
		return fmt.Errorf("vt: wait for %d: %w", tty, err)
	}
	return nil
}

// SwitchOrWarn switches to tty and logs instead of failing.
func SwitchOrWarn(s Switcher, tty int) {
	logger.Log.Info("Switching to tty", "tty", tty)
	if err := s.Switch(tty); err != nil {
		logger.Log.Warn("Failed to switch tty", "tty", tty, "err", err)
	}
}

// Personal.AI order the ending
