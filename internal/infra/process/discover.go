package process

import (
	"context"
	"os/exec"
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"
)

// PgrepDiscoverer looks processes up with pgrep(1).
type PgrepDiscoverer struct {
	pgrep string
}

// NewPgrepDiscoverer creates a discoverer using the given pgrep binary.
func NewPgrepDiscoverer(pgrep string) *PgrepDiscoverer {
	if pgrep == "" {
		pgrep = "pgrep"
	}
	return &PgrepDiscoverer{pgrep: pgrep}
}

// Discover implements Discoverer.
func (d *PgrepDiscoverer) Discover(ctx context.Context, name string) (int, error) {
	out, err := exec.CommandContext(ctx, d.pgrep, "-n", "-x", name).Output()
	if err != nil {
		var exitErr *exec.ExitError
		// pgrep exits with 1 when nothing matched.
		if errors.As(err, &exitErr) && exitErr.ExitCode() == 1 {
			return 0, nil
		}
		return 0, errors.Wrapf(err, "failed to run %s", d.pgrep)
	}
	return parsePID(out)
}

// parsePID parses the first line of pgrep output.
func parsePID(out []byte) (int, error) {
	line, _, _ := strings.Cut(strings.TrimSpace(string(out)), "\n")
	if line == "" {
		return 0, nil
	}
	pid, err := strconv.Atoi(strings.TrimSpace(line))
	if err != nil {
		return 0, errors.Wrapf(err, "unexpected pgrep output %q", line)
	}
	if pid <= 0 {
		return 0, errors.Newf("unexpected pid %d", pid)
	}
	return pid, nil
}
