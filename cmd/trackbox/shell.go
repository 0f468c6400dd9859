package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/chzyer/readline"

	"github.com/osa030/trackbox/internal/app/notification"
	"github.com/osa030/trackbox/internal/app/playback"
	"github.com/osa030/trackbox/internal/domain/track"
)

// shell executes interactive playback commands against a controller.
type shell struct {
	ctrl *playback.Controller
	out  io.Writer
}

func newShell(ctrl *playback.Controller, out io.Writer) *shell {
	return &shell{ctrl: ctrl, out: out}
}

const shellHelp = `Commands:
  load DIR    load the playable tracks of DIR
  list        list tracks
  play N      play track N
  next        play the next track
  prev        play the previous track
  pause       pause playback
  resume      resume playback
  stop        stop playback
  vol N       set volume (0-100)
  pitch F     set pitch
  seek F      shift position (not supported by the player)
  status      show playback status
  quit        stop and exit`

func completer() *readline.PrefixCompleter {
	return readline.NewPrefixCompleter(
		readline.PcItem("load"),
		readline.PcItem("list"),
		readline.PcItem("play"),
		readline.PcItem("next"),
		readline.PcItem("prev"),
		readline.PcItem("pause"),
		readline.PcItem("resume"),
		readline.PcItem("stop"),
		readline.PcItem("vol"),
		readline.PcItem("pitch"),
		readline.PcItem("seek"),
		readline.PcItem("status"),
		readline.PcItem("help"),
		readline.PcItem("quit"),
	)
}

// exec runs one command line. It returns true when the shell should exit.
func (s *shell) exec(line string) bool {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return false
	}
	cmd, args := strings.ToLower(fields[0]), fields[1:]

	switch cmd {
	case "quit", "exit":
		s.ctrl.Stop()
		return true

	case "help", "?":
		fmt.Fprintln(s.out, shellHelp)

	case "load":
		if len(args) == 0 {
			fmt.Fprintln(s.out, "usage: load DIR")
			return false
		}
		dir := strings.Join(args, " ")
		fmt.Fprintf(s.out, "%d tracks in %s\n", s.ctrl.LoadTracks(dir), dir)

	case "list", "ls":
		printTracks(s.out, s.ctrl.Tracks(), s.ctrl.CurrentTrackNo())

	case "play":
		n, ok := s.intArg(args, "play N")
		if !ok {
			return false
		}
		if !s.ctrl.PlayTrack(n) {
			fmt.Fprintf(s.out, "cannot play track %d (%d tracks)\n", n, s.ctrl.NumTracks())
			return false
		}
		s.printStatus()

	case "next":
		if s.ctrl.NextTrack() < 0 {
			fmt.Fprintln(s.out, "no tracks loaded")
			return false
		}
		s.printStatus()

	case "prev":
		if s.ctrl.PrevTrack() < 0 {
			fmt.Fprintln(s.out, "no tracks loaded")
			return false
		}
		s.printStatus()

	case "pause":
		s.ctrl.Pause()
		s.printStatus()

	case "resume", "unpause":
		s.ctrl.UnPause()
		s.printStatus()

	case "stop":
		s.ctrl.Stop()
		s.printStatus()

	case "vol", "volume":
		n, ok := s.intArg(args, "vol N")
		if !ok {
			return false
		}
		s.ctrl.SetVolume(n)
		fmt.Fprintf(s.out, "volume %d\n", s.ctrl.Volume())

	case "pitch":
		f, ok := s.floatArg(args, "pitch F")
		if !ok {
			return false
		}
		s.ctrl.SetPitch(f)
		fmt.Fprintf(s.out, "pitch %.2f\n", s.ctrl.Pitch())

	case "seek":
		f, ok := s.floatArg(args, "seek F")
		if !ok {
			return false
		}
		s.ctrl.ShiftPos(f)
		fmt.Fprintln(s.out, "seeking is not supported by the player")

	case "status":
		s.printStatus()

	default:
		fmt.Fprintf(s.out, "unknown command %q, type help\n", cmd)
	}

	return false
}

// notify prints track changes, including those made by auto-advance.
func (s *shell) notify(n notification.Notification) error {
	e := n.Event
	switch e.Type {
	case playback.EventTrackStarted:
		if e.Track != nil {
			_, err := fmt.Fprintf(s.out, "> [%d] %s\n", e.Index, e.Track.DisplayName())
			return err
		}
	case playback.EventTrackFinished:
		_, err := fmt.Fprintf(s.out, "finished [%d]\n", e.Index)
		return err
	}
	return nil
}

func (s *shell) intArg(args []string, usage string) (int, bool) {
	if len(args) != 1 {
		fmt.Fprintf(s.out, "usage: %s\n", usage)
		return 0, false
	}
	n, err := strconv.Atoi(args[0])
	if err != nil {
		fmt.Fprintf(s.out, "usage: %s\n", usage)
		return 0, false
	}
	return n, true
}

func (s *shell) floatArg(args []string, usage string) (float64, bool) {
	if len(args) != 1 {
		fmt.Fprintf(s.out, "usage: %s\n", usage)
		return 0, false
	}
	f, err := strconv.ParseFloat(args[0], 64)
	if err != nil {
		fmt.Fprintf(s.out, "usage: %s\n", usage)
		return 0, false
	}
	return f, true
}

func (s *shell) printStatus() {
	name := s.ctrl.CurrentTrackName()
	if name == "" {
		name = "-"
	}
	fmt.Fprintf(s.out, "%s track=%d/%d %s volume=%d pitch=%.2f\n",
		s.ctrl.State(), s.ctrl.CurrentTrackNo(), s.ctrl.NumTracks(), name, s.ctrl.Volume(), s.ctrl.Pitch())
}

// printTracks writes one line per track, marking current.
func printTracks(out io.Writer, tracks []track.Track, current int) {
	for i, t := range tracks {
		marker := " "
		if i == current {
			marker = "*"
		}
		fmt.Fprintf(out, "%s%3d  %s\n", marker, i, t.DisplayName())
	}
}
