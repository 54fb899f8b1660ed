package explorer

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// errQuit ends the command loop. It is the only handler outcome the
	// dispatcher acts on; everything else has already been reported.
	errQuit = errors.New("quit")

	// errUsage marks an invocation rejected before any card traffic, the
	// usage text already printed.
	errUsage = errors.New("bad usage")
)

// token is one word of a command line. Quoted tokens keep their text
// verbatim and are consumed as literal bytes where a command accepts
// both hex and string forms.
type token struct {
	text   string
	quoted bool
}

// tokenize splits a command line on blanks, honoring double quotes. An
// unterminated quote invalidates the whole line.
func tokenize(line string) []token {
	var tokens []token
	i := 0
	for {
		for i < len(line) && (line[i] == ' ' || line[i] == '\t' || line[i] == '\n') {
			i++
		}
		if i >= len(line) {
			return tokens
		}
		if line[i] == '"' {
			end := strings.IndexByte(line[i+1:], '"')
			if end < 0 {
				return nil
			}
			tokens = append(tokens, token{text: line[i+1 : i+1+end], quoted: true})
			i += end + 2
			continue
		}
		start := i
		for i < len(line) && line[i] != ' ' && line[i] != '\t' && line[i] != '\n' {
			i++
		}
		tokens = append(tokens, token{text: line[start:i]})
	}
}

// arg returns the i-th argument, a zero token when the line was shorter.
func arg(args []token, i int) token {
	if i >= len(args) {
		return token{}
	}
	return args[i]
}

type command struct {
	name string
	help string
	run  func(s *Session, args []token) error
}

var commands = []command{
	{"ls", "list all files in the current DF", (*Session).cmdLs},
	{"cd", "change to another DF", (*Session).cmdCd},
	{"cat", "print the contents of an EF", (*Session).cmdCat},
	{"info", "display attributes of card file", (*Session).cmdInfo},
	{"create", "create a new EF", (*Session).cmdCreate},
	{"delete", "remove an EF/DF", (*Session).cmdDelete},
	{"rm", "remove an EF/DF", (*Session).cmdDelete},
	{"verify", "present a PIN or key to the card", (*Session).cmdVerify},
	{"change", "change a PIN", (*Session).cmdChange},
	{"unblock", "unblock a PIN", (*Session).cmdUnblock},
	{"put", "copy a local file to the card", (*Session).cmdPut},
	{"get", "copy an EF to a local file", (*Session).cmdGet},
	{"do_get", "get a data object", (*Session).cmdGetData},
	{"do_put", "put a data object", (*Session).cmdPutData},
	{"mkdir", "create a DF", (*Session).cmdMkdir},
	{"erase", "erase card", (*Session).cmdErase},
	{"random", "obtain N random bytes from card", (*Session).cmdRandom},
	{"quit", "quit this program", (*Session).cmdQuit},
	{"exit", "quit this program", (*Session).cmdQuit},
	{"update_record", "update record", (*Session).cmdUpdateRecord},
	{"update_binary", "update binary", (*Session).cmdUpdateBinary},
	{"debug", "set the debug level", (*Session).cmdDebug},
	{"apdu", "send a custom apdu command", (*Session).cmdApdu},
	{"asn1", "decode an asn1 file", (*Session).cmdAsn1},
}

// match finds the command the given name abbreviates. Any unambiguous
// case-insensitive prefix works; an ambiguous one is called out and nil
// returned, as for no match at all.
func (s *Session) match(name string) *command {
	var last *command
	matches := 0
	for i := range commands {
		if len(name) <= len(commands[i].name) && strings.EqualFold(commands[i].name[:len(name)], name) {
			last = &commands[i]
			matches++
		}
	}
	if matches > 1 {
		fmt.Fprintf(s.out, "Ambiguous command: %s\n", name)
		return nil
	}
	return last
}

func (s *Session) usage() {
	fmt.Fprintf(s.out, "Supported commands:\n")
	for _, cmd := range commands {
		fmt.Fprintf(s.out, "  %-16s %s\n", cmd.name, cmd.help)
	}
}

func (s *Session) dispatch(tokens []token) error {
	cmd := s.match(tokens[0].text)
	if cmd == nil {
		s.usage()
		return nil
	}
	return cmd.run(s, tokens[1:])
}

func (s *Session) cmdQuit(args []token) error {
	return errQuit
}
