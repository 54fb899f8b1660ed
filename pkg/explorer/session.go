// Package explorer implements an interactive shell over one connected
// smart card: a current DF, file addressing relative to it, and a small
// command set for reading, writing and managing card files.
//
// The shell mirrors the card's own notion of position. Every command
// that selects another file to do its work reselects the current DF
// before returning, so the position the prompt shows is the position
// the card is actually in.
package explorer

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/afero"

	"github.com/gregLibert/card-explorer/pkg/card"
	"github.com/gregLibert/card-explorer/pkg/hexutil"
)

// Session is one interactive exploration of a card's file system.
type Session struct {
	card *card.Card
	pad  *card.PinPad

	// current describes the selected file, nil until the first SELECT.
	current *card.File
	path    card.Path

	fs     afero.Fs
	out    io.Writer
	errOut io.Writer

	log        *slog.Logger
	level      *slog.LevelVar
	debugLevel int
}

// Config assembles a Session's collaborators. Zero fields fall back to
// process defaults, which keeps tests free to substitute any of them.
type Config struct {
	Card *card.Card
	Pad  *card.PinPad

	Fs     afero.Fs
	Out    io.Writer
	ErrOut io.Writer

	Log   *slog.Logger
	Level *slog.LevelVar

	// DebugLevel seeds the numeric level the debug command reports and
	// adjusts.
	DebugLevel int
}

// NewSession builds a Session around a connected card. The session
// starts with no file selected; callers follow up with SelectMaster or
// ChangeDirectory before entering the command loop.
func NewSession(cfg Config) *Session {
	s := &Session{
		card:       cfg.Card,
		pad:        cfg.Pad,
		fs:         cfg.Fs,
		out:        cfg.Out,
		errOut:     cfg.ErrOut,
		log:        cfg.Log,
		level:      cfg.Level,
		debugLevel: cfg.DebugLevel,
	}
	if s.fs == nil {
		s.fs = afero.NewOsFs()
	}
	if s.out == nil {
		s.out = os.Stdout
	}
	if s.errOut == nil {
		s.errOut = os.Stderr
	}
	if s.log == nil {
		s.log = slog.Default()
	}
	if s.level == nil {
		s.level = new(slog.LevelVar)
	}
	return s
}

// SelectMaster opens the MF and makes it the current DF.
func (s *Session) SelectMaster() error {
	p := card.MasterFile()
	file, err := s.card.Select(p)
	if err != nil {
		return err
	}
	s.path = p
	s.current = file
	return nil
}

// Prompt renders the shell prompt with the current position, identifier
// components separated by slashes and DF names as plain hex.
func (s *Session) Prompt() string {
	return fmt.Sprintf("card-explorer [%s]> ", s.path.String())
}

// Run reads commands from in until end of input or a quit command.
func (s *Session) Run(in io.Reader) error {
	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(s.out, s.Prompt())
		if !scanner.Scan() {
			break
		}
		tokens := tokenize(scanner.Text())
		if len(tokens) == 0 {
			continue
		}
		if err := s.dispatch(tokens); errors.Is(err, errQuit) {
			return nil
		}
	}
	return scanner.Err()
}

// reportError prints a failure on the error channel. When the card
// refused for lack of security status, the ACL gating the operation is
// shown so the operator knows which secret to present.
func (s *Session) reportError(context string, err error, op card.Operation, file *card.File) {
	fmt.Fprintf(s.errOut, "%s: %s\n", context, err)
	if errors.Is(err, card.ErrSecurityStatus) {
		var acl card.ACL
		if file != nil {
			acl = file.ACL
		}
		fmt.Fprintf(s.errOut, "ACL for operation: %s\n", acl.Describe(op))
	}
}

// restore reselects the current DF after a command selected elsewhere.
// A failure here means the shell's position no longer matches the
// card's; it is reported and the caller abandons whatever it was doing.
func (s *Session) restore() error {
	if s.path.IsEmpty() {
		return nil
	}
	if _, err := s.card.Select(s.path); err != nil {
		fmt.Fprintf(s.out, "unable to select parent DF: %s\n", err)
		return err
	}
	return nil
}

// printFile renders one listing line: the identifier bracketed for DFs,
// then type, size and any DF name.
func (s *Session) printFile(f *card.File) {
	format := " %02X%02X "
	if f.IsDF() {
		format = "[%02X%02X]"
	}
	fmt.Fprintf(s.out, format, byte(f.ID>>8), byte(f.ID))
	fmt.Fprintf(s.out, "\t%4s", f.Type)
	fmt.Fprintf(s.out, " %5d", f.Size)
	if len(f.Name) > 0 {
		fmt.Fprintf(s.out, "\tName: %s", hexutil.Printable(f.Name))
	}
	fmt.Fprintln(s.out)
}

// slashedHex renders path bytes the way info displays them, a slash
// before every 2-byte component after the first.
func slashedHex(b []byte) string {
	var sb strings.Builder
	for i, c := range b {
		if i%2 == 0 && i > 0 {
			sb.WriteByte('/')
		}
		fmt.Fprintf(&sb, "%02X", c)
	}
	return sb.String()
}
