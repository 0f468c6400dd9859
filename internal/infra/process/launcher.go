package process

import (
	"context"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"
)

// Argument template placeholders.
const (
	PlaceholderVolume = "{volume}"
	PlaceholderPath   = "{path}"
)

// DefaultArgs is the argument template for afplay.
var DefaultArgs = []string{"-v", PlaceholderVolume, PlaceholderPath}

// Launcher starts the external player for one file.
type Launcher interface {
	// Launch starts playback of path at volume (0-100) in the background and
	// returns the player's process id. A pid of 0 with a nil error means the
	// player was started but its id could not be determined.
	Launch(ctx context.Context, path string, volume int) (int, error)
}

// FormatVolume maps a 0-100 volume onto the player's 0.0-1.0 range.
func FormatVolume(volume int) string {
	return strconv.FormatFloat(float64(volume)/100, 'f', -1, 64)
}

// ExpandArgs substitutes the placeholders of an argument template.
func ExpandArgs(tmpl []string, path string, volume int) []string {
	r := strings.NewReplacer(PlaceholderVolume, FormatVolume(volume), PlaceholderPath, path)
	args := make([]string, len(tmpl))
	for i, a := range tmpl {
		args[i] = r.Replace(a)
	}
	return args
}

// ExecLauncher starts the player as a direct child and takes its id from the
// spawn call itself, so no process table lookup is needed.
type ExecLauncher struct {
	binary string
	args   []string
	env    []string
}

// NewExecLauncher creates a launcher for binary with the given argument template.
// env entries (KEY=VALUE) are appended to the inherited environment.
func NewExecLauncher(binary string, args []string, env []string) *ExecLauncher {
	return &ExecLauncher{binary: binary, args: args, env: env}
}

// Launch implements Launcher.
func (l *ExecLauncher) Launch(ctx context.Context, path string, volume int) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	// The child must outlive ctx; it is owned and reaped by the Controller.
	cmd := exec.Command(l.binary, ExpandArgs(l.args, path, volume)...)
	cmd.SysProcAttr = sysProcAttr()
	if len(l.env) > 0 {
		cmd.Env = append(os.Environ(), l.env...)
	}

	zlog.Debug().Msgf("process: running %s %s", l.binary, strings.Join(cmd.Args[1:], " "))
	if err := cmd.Start(); err != nil {
		return 0, errors.Wrapf(err, "failed to start %s", l.binary)
	}

	pid := cmd.Process.Pid
	// Reaping is done by pid through the Signaller.
	_ = cmd.Process.Release()
	return pid, nil
}

// Discoverer finds the id of an already running process.
type Discoverer interface {
	// Discover returns the id of the most recently started instance of name,
	// or 0 when none is running.
	Discover(ctx context.Context, name string) (int, error)
}

// ShellLauncher starts the player detached through a shell, the way a
// fire-and-forget `player args &` invocation would, and recovers its id by
// searching the process table. If several instances of the player run at
// once the wrong id may be picked up.
type ShellLauncher struct {
	shell      string
	binary     string
	args       []string
	settle     time.Duration
	discoverer Discoverer
}

// NewShellLauncher creates a detached launcher.
// settle is how long to wait before looking the player up.
func NewShellLauncher(shell, binary string, args []string, settle time.Duration, d Discoverer) *ShellLauncher {
	return &ShellLauncher{
		shell:      shell,
		binary:     binary,
		args:       args,
		settle:     settle,
		discoverer: d,
	}
}

// Command returns the shell command line used to start path.
func (l *ShellLauncher) Command(path string, volume int) string {
	parts := []string{shellQuote(l.binary)}
	for _, a := range ExpandArgs(l.args, path, volume) {
		parts = append(parts, shellQuote(a))
	}
	return strings.Join(parts, " ") + " &"
}

// Launch implements Launcher.
func (l *ShellLauncher) Launch(ctx context.Context, path string, volume int) (int, error) {
	line := l.Command(path, volume)
	zlog.Debug().Msgf("process: running %s -c %q", l.shell, line)

	if err := exec.CommandContext(ctx, l.shell, "-c", line).Run(); err != nil {
		return 0, errors.Wrapf(err, "failed to run %s", l.shell)
	}

	if l.settle > 0 {
		select {
		case <-ctx.Done():
			return 0, ctx.Err()
		case <-time.After(l.settle):
		}
	}

	pid, err := l.discoverer.Discover(ctx, baseName(l.binary))
	if err != nil {
		zlog.Warn().Err(err).Msgf("process: discovery failed for %s", l.binary)
		return 0, nil
	}
	return pid, nil
}

// shellQuote quotes s for a POSIX shell.
func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}

func baseName(binary string) string {
	if i := strings.LastIndex(binary, "/"); i >= 0 {
		return binary[i+1:]
	}
	return binary
}
