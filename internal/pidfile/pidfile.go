package pidfile

import (
	"os"
	"path/filepath"
	"strconv"
	"syscall"

	"github.com/mcp2everything/PID-agent/internal/errors"
)

const pidFile = "pidagentd.pid"

func path() string {
	return filepath.Join(os.TempDir(), pidFile)
}

// Write records the current process ID, refusing when another live
// daemon instance already holds the file. A stale file left by a dead
// process is overwritten.
func Write() error {
	errFactory := errors.New()

	if old, err := read(); err == nil && isRunning(old) {
		return errFactory.New(errors.ErrAlreadyRunning)
	}

	if err := os.WriteFile(path(), []byte(strconv.Itoa(os.Getpid())), 0o600); err != nil {
		return errFactory.Wrap(errors.ErrInternal, err)
	}

	return nil
}

// Remove deletes the PID file. Missing is not an error.
func Remove() error {
	if err := os.Remove(path()); err != nil && !os.IsNotExist(err) {
		return errors.New().Wrap(errors.ErrInternal, err)
	}

	return nil
}

func read() (int, error) {
	bytes, err := os.ReadFile(path())
	if err != nil {
		return 0, err
	}

	return strconv.Atoi(string(bytes))
}

func isRunning(pid int) bool {
	process, err := os.FindProcess(pid)
	if err != nil {
		return false
	}

	return process.Signal(syscall.Signal(0)) == nil
}
