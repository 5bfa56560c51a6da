package auth

import (
	"bufio"
	"fmt"
	"os"
	"os/user"
	"strconv"
	"strings"
)

const (
	passwdPath   = "/etc/passwd"
	defaultShell = "/bin/sh"
)

// LookupUser builds an Identity from the passwd and group databases.
func LookupUser(username string) (*Identity, error) {
	return lookupUser(username, passwdPath)
}

func lookupUser(username, passwd string) (*Identity, error) {
	u, err := user.Lookup(username)
	if err != nil {
		return nil, err
	}
	uid, err := strconv.Atoi(u.Uid)
	if err != nil {
		return nil, fmt.Errorf("invalid uid %q for %s: %w", u.Uid, username, err)
	}
	gid, err := strconv.Atoi(u.Gid)
	if err != nil {
		return nil, fmt.Errorf("invalid gid %q for %s: %w", u.Gid, username, err)
	}

	var groups []int
	if ids, err := u.GroupIds(); err == nil {
		for _, s := range ids {
			if g, err := strconv.Atoi(s); err == nil {
				groups = append(groups, g)
			}
		}
	}

	shell, err := lookupShell(passwd, username)
	if err != nil || shell == "" {
		shell = defaultShell
	}

	return &Identity{
		Username: u.Username,
		Home:     u.HomeDir,
		Shell:    shell,
		UID:      uid,
		GID:      gid,
		Groups:   groups,
	}, nil
}

// lookupShell returns the login shell field of username's passwd entry.
func lookupShell(passwd, username string) (string, error) {
	f, err := os.Open(passwd)
	if err != nil {
		return "", err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Split(line, ":")
		if len(fields) != 7 || fields[0] != username {
			continue
		}
		return fields[6], nil
	}
	if err := scanner.Err(); err != nil {
		return "", err
	}
	return "", fmt.Errorf("no passwd entry for %s", username)
}

// Personal.AI order the ending
