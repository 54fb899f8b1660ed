package explorer

import (
	"fmt"
	"io"
	"log/slog"
	"strconv"

	"github.com/gregLibert/card-explorer/pkg/hexutil"
	"github.com/gregLibert/card-explorer/pkg/iso7816"
)

func (s *Session) cmdApdu(args []token) error {
	if len(args) < 1 {
		fmt.Fprintf(s.out, "Usage: apdu [apdu:hex:codes:...]\n")
		return errUsage
	}

	raw := make([]byte, 0, 261)
	for _, a := range args {
		b, err := hexutil.DecodeString(a.text, 261-len(raw))
		if err != nil {
			fmt.Fprintf(s.errOut, "Invalid APDU: %s\n", err)
			return err
		}
		raw = append(raw, b...)
	}

	cmd, err := iso7816.ParseCommandAPDU(raw)
	if err != nil {
		fmt.Fprintf(s.errOut, "Invalid APDU: %s\n", err)
		return err
	}
	s.log.Debug("parsed command", "class", cmd.Class.Verbose(), "command", cmd.String())

	fmt.Fprintf(s.out, "Sending: ")
	for _, b := range raw {
		fmt.Fprintf(s.out, "%02X ", b)
	}
	fmt.Fprintln(s.out)

	resp, err := s.card.Send(cmd)
	if err != nil {
		fmt.Fprintf(s.errOut, "APDU transmit failed: %s\n", err)
		return err
	}

	sep := ""
	if len(resp.Data) > 0 {
		sep = ":"
	}
	fmt.Fprintf(s.out, "Received (SW1=0x%02X, SW2=0x%02X)%s\n",
		resp.Status.SW1(), resp.Status.SW2(), sep)
	if len(resp.Data) > 0 {
		hexutil.Dump(s.out, resp.Data, -1)
	}
	return nil
}

func (s *Session) cmdRandom(args []token) error {
	if len(args) != 1 {
		fmt.Fprintf(s.out, "Usage: random count\n")
		return errUsage
	}
	count, err := strconv.Atoi(args[0].text)
	if err != nil {
		count = 0
	}
	if count < 0 || count > 128 {
		fmt.Fprintf(s.out, "Number must be in range 0..128\n")
		return errUsage
	}
	if count == 0 {
		return nil
	}

	data, err := s.card.GetChallenge(count)
	if err != nil {
		fmt.Fprintf(s.out, "Failed to get random bytes: %s\n", err)
		return err
	}
	hexutil.Dump(s.out, data, 0)
	return nil
}

func (s *Session) cmdGetData(args []token) error {
	if len(args) < 1 || len(args) > 2 {
		fmt.Fprintf(s.out, "Usage: do_get hex_tag [dest_file]\n")
		return errUsage
	}
	n, err := strconv.ParseUint(args[0].text, 16, 16)
	if err != nil {
		n = 0
	}
	tag := uint16(n)

	data, err := s.card.GetData(tag)
	if err != nil {
		fmt.Fprintf(s.out, "Failed to get data object: %s\n", err)
		return err
	}

	if len(args) == 2 {
		filename := args[1].text
		f, err := s.fs.Create(filename)
		if err != nil {
			fmt.Fprintln(s.errOut, err)
			return err
		}
		defer f.Close()
		if _, err := f.Write(data); err != nil {
			fmt.Fprintln(s.errOut, err)
			return err
		}
	} else {
		fmt.Fprintf(s.out, "Object %04x:\n", tag)
		hexutil.Dump(s.out, data, 0)
	}
	return nil
}

func (s *Session) cmdPutData(args []token) error {
	if len(args) != 2 {
		fmt.Fprintf(s.out, "Usage: do_put hex_tag source_file\n")
		fmt.Fprintf(s.out, "or:    do_put hex_tag aa:bb:cc\n")
		fmt.Fprintf(s.out, "or:    do_put hex_tag \"foobar...\"\n")
		return errUsage
	}
	n, err := strconv.ParseUint(args[0].text, 16, 16)
	if err != nil {
		n = 0
	}
	tag := uint16(n)

	// An unquoted argument naming a readable file supplies the value
	// from that file, otherwise it is read as hex.
	src := args[1]
	var value []byte
	loaded := false
	if !src.quoted {
		if f, err := s.fs.Open(src.text); err == nil {
			data, rerr := io.ReadAll(f)
			f.Close()
			if rerr != nil {
				fmt.Fprintln(s.errOut, rerr)
				return rerr
			}
			value = data
			loaded = true
		}
	}
	if !loaded {
		var verr error
		value, verr = s.updateValue(src, 256)
		if verr != nil {
			return verr
		}
	}

	if err := s.card.PutData(tag, value); err != nil {
		fmt.Fprintf(s.out, "Failed to put data object: %s\n", err)
		return err
	}
	return nil
}

func (s *Session) cmdErase(args []token) error {
	if len(args) != 0 {
		fmt.Fprintf(s.out, "Usage: erase\n")
		return errUsage
	}
	if err := s.card.EraseCard(); err != nil {
		fmt.Fprintf(s.out, "Failed to erase card: %s\n", err)
		return err
	}
	return nil
}

func (s *Session) cmdDebug(args []token) error {
	if len(args) == 0 {
		fmt.Fprintf(s.out, "Current debug level is %d\n", s.debugLevel)
		return nil
	}
	n, err := strconv.Atoi(args[0].text)
	if err != nil {
		return err
	}
	fmt.Fprintf(s.out, "Debug level set to %d\n", n)
	s.debugLevel = n
	switch {
	case n <= 0:
		s.level.Set(slog.LevelWarn)
	case n == 1:
		s.level.Set(slog.LevelInfo)
	default:
		s.level.Set(slog.LevelDebug)
	}
	return nil
}
