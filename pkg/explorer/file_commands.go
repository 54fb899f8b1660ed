package explorer

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/gregLibert/card-explorer/pkg/card"
	"github.com/gregLibert/card-explorer/pkg/hexutil"
	"github.com/gregLibert/card-explorer/pkg/tlv"
)

func (s *Session) cmdLs(args []token) error {
	if len(args) != 0 {
		fmt.Fprintf(s.out, "Usage: ls\n")
		return errUsage
	}

	ids, err := s.card.ListFiles()
	if err != nil {
		s.reportError("unable to receive file listing", err, card.OpListFiles, s.current)
		return err
	}

	fmt.Fprintf(s.out, "FileID\tType  Size\n")
	for _, id := range ids {
		child := []byte{byte(id >> 8), byte(id)}

		// Under an AID the children can only be addressed directly;
		// otherwise the listing entry extends the current path.
		var p card.Path
		if s.path.Kind == card.PathKindDFName {
			p, err = card.NewPath(card.PathKindFileID, child)
		} else {
			p, err = s.path.Append(child)
		}

		var file *card.File
		if err == nil {
			file, err = s.card.Select(p)
		}
		if err != nil {
			fmt.Fprintf(s.out, " %02X%02X unable to select file, %s\n", child[0], child[1], err)
		} else {
			file.ID = id
			s.printFile(file)
		}

		if err := s.restore(); err != nil {
			return err
		}
	}
	return nil
}

func (s *Session) cmdCd(args []token) error {
	if len(args) != 1 {
		fmt.Fprintf(s.out, "Usage: cd <file_id>|aid:<DF name>\n")
		return errUsage
	}
	return s.ChangeDirectory(args[0].text)
}

// ChangeDirectory moves the session to another DF: "..", a child
// identifier, or an "aid:" prefixed application name. On failure the
// session stays where it was.
func (s *Session) ChangeDirectory(a string) error {
	if a == ".." {
		parent, err := s.path.Parent()
		if err != nil {
			fmt.Fprintf(s.out, "unable to go up, already in MF.\n")
			return err
		}
		file, err := s.card.Select(parent)
		if err != nil {
			fmt.Fprintf(s.out, "unable to go up: %s\n", err)
			return err
		}
		s.path = parent
		s.current = file
		return nil
	}

	p, err := s.resolve(a, false)
	if err != nil {
		fmt.Fprintf(s.out, "Usage: cd <file_id>|aid:<DF name>\n")
		return err
	}
	file, err := s.card.Select(p)
	if err != nil {
		s.reportError("unable to select DF", err, card.OpSelect, s.current)
		return err
	}
	if !file.IsDF() && !s.card.Quirks.AllowNonDFNavigation {
		fmt.Fprintf(s.out, "Error: file is not a DF.\n")
		s.restore()
		return errors.New("file is not a DF")
	}
	s.path = p
	s.current = file
	return nil
}

// printBinaryFile dumps a transparent EF in read-sized chunks, the
// offset column running across the whole body.
func (s *Session) printBinaryFile(file *card.File) error {
	idx := 0
	count := file.Size
	for count > 0 {
		c := count
		if c > 128 {
			c = 128
		}
		data, err := s.card.ReadBinary(idx, c)
		if err != nil {
			s.reportError("read failed", err, card.OpRead, file)
			return err
		}
		if len(data) != c && !s.card.Quirks.ZeroLengthReadIsEOF {
			fmt.Fprintf(s.out, "expecting %d, got only %d bytes.\n", c, len(data))
			return &card.LengthError{Expected: c, Got: len(data)}
		}
		if len(data) == 0 {
			break
		}
		hexutil.Dump(s.out, data, idx)
		idx += len(data)
		count -= len(data)
	}
	return nil
}

// printRecordFile dumps every record in order until the card reports
// the end of the file.
func (s *Session) printRecordFile(file *card.File, sfi byte) error {
	for rec := 1; ; rec++ {
		data, err := s.card.ReadRecord(sfi, byte(rec))
		if errors.Is(err, card.ErrRecordNotFound) {
			return nil
		}
		if err != nil {
			s.reportError("read failed", err, card.OpRead, file)
			return err
		}
		fmt.Fprintf(s.out, "Record %d:\n", rec)
		hexutil.Dump(s.out, data, 0)
	}
}

// withSelected selects p, runs body on the selected file, and
// reselects the current DF no matter how body fared.
func (s *Session) withSelected(p card.Path, body func(*card.File) error) error {
	file, err := s.card.Select(p)
	if err != nil {
		s.reportError("unable to select file", err, card.OpSelect, s.current)
		s.restore()
		return err
	}
	err = body(file)
	if rerr := s.restore(); rerr != nil && err == nil {
		err = rerr
	}
	return err
}

func (s *Session) catUsage() {
	fmt.Fprintf(s.out, "Usage: cat [file_id] or\n")
	fmt.Fprintf(s.out, "       cat sfi:<sfi_id>\n")
}

func (s *Session) cmdCat(args []token) error {
	if len(args) > 1 {
		s.catUsage()
		return errUsage
	}

	if len(args) == 1 {
		a := args[0].text
		if len(a) >= 4 && strings.EqualFold(a[:4], "sfi:") {
			if s.current == nil {
				fmt.Fprintf(s.out, "A DF must be selected to read by SFI\n")
				return errors.New("no DF selected")
			}
			sfi, err := strconv.Atoi(a[4:])
			if err != nil {
				sfi = 0
			}
			if sfi < 1 || sfi > 30 {
				fmt.Fprintf(s.out, "Invalid SFI: %s\n", a[4:])
				s.catUsage()
				return errUsage
			}
			return s.catFile(s.current, sfi)
		}
		p, err := s.resolve(a, false)
		if err != nil {
			s.catUsage()
			return err
		}
		return s.withSelected(p, func(file *card.File) error {
			return s.catFile(file, 0)
		})
	}

	if s.current == nil {
		fmt.Fprintf(s.out, "No file selected.\n")
		return errors.New("no file selected")
	}
	return s.catFile(s.current, 0)
}

func (s *Session) catFile(file *card.File, sfi int) error {
	if file.Type != card.FileTypeWorkingEF && !(file.IsDF() && sfi != 0) {
		fmt.Fprintf(s.out, "only working EFs may be read\n")
		return errors.New("not a working EF")
	}
	if file.Structure == card.StructureTransparent && sfi == 0 {
		return s.printBinaryFile(file)
	}
	return s.printRecordFile(file, byte(sfi))
}

func (s *Session) cmdInfo(args []token) error {
	if len(args) > 1 {
		fmt.Fprintf(s.out, "Usage: info [file_id]\n")
		return errUsage
	}

	file := s.current
	p := s.path
	notCurrent := false

	if len(args) == 1 {
		var err error
		p, err = s.resolve(args[0].text, false)
		if err != nil {
			fmt.Fprintf(s.out, "Usage: info [file_id]\n")
			return err
		}
		file, err = s.card.Select(p)
		if err != nil {
			fmt.Fprintf(s.out, "unable to select file: %s\n", err)
			return err
		}
		notCurrent = true
	}
	if file == nil {
		fmt.Fprintf(s.out, "No file selected.\n")
		return errors.New("no file selected")
	}

	var st string
	switch file.Type {
	case card.FileTypeWorkingEF, card.FileTypeInternalEF:
		st = "Elementary File"
	case card.FileTypeDF:
		st = "Dedicated File"
	default:
		st = "Unknown File"
	}
	fmt.Fprintf(s.out, "\n%s  ID %04X\n\n", st, file.ID)
	fmt.Fprintf(s.out, "%-15s%s", "File path:", slashedHex(p.Value))
	fmt.Fprintf(s.out, "\n%-15s%d bytes\n", "File size:", file.Size)

	var ops []card.Operation
	if file.IsDF() {
		if len(file.Name) > 0 {
			fmt.Fprintf(s.out, "%-15s%s\n", "DF name:", hexutil.Printable(file.Name))
		}
		ops = card.DFOperations
	} else {
		fmt.Fprintf(s.out, "%-15s%s\n", "EF structure:", file.Structure)
		ops = card.EFOperations
	}

	for _, op := range ops {
		name := op.String()
		pad := 12 - len(name)
		if pad < 0 {
			pad = 0
		}
		fmt.Fprintf(s.out, "ACL for %s:%s %s\n", name, strings.Repeat(" ", pad), file.ACL.Describe(op))
	}

	if len(file.PropAttr) > 0 {
		fmt.Fprintf(s.out, "%-25s", "Proprietary attributes:")
		for _, b := range file.PropAttr {
			fmt.Fprintf(s.out, "%02X ", b)
		}
		fmt.Fprintln(s.out)
	}
	if len(file.SecAttr) > 0 {
		fmt.Fprintf(s.out, "%-25s", "Security attributes:")
		for _, b := range file.SecAttr {
			fmt.Fprintf(s.out, "%02X ", b)
		}
		fmt.Fprintln(s.out)
	}
	fmt.Fprintln(s.out)

	if notCurrent {
		return s.restore()
	}
	return nil
}

// createFile sends the template and reselects the current DF, since
// some cards leave the new file selected after CREATE FILE.
func (s *Session) createFile(file *card.File) error {
	if err := s.card.CreateFile(file); err != nil {
		s.reportError("CREATE FILE failed", err, card.OpCreate, s.current)
		return err
	}
	return s.restore()
}

func (s *Session) cmdCreate(args []token) error {
	if len(args) != 2 {
		fmt.Fprintf(s.out, "Usage: create <file_id> <file_size>\n")
		return errUsage
	}
	p, err := s.resolve(args[0].text, true)
	if err != nil {
		fmt.Fprintf(s.out, "Usage: create <file_id> <file_size>\n")
		return err
	}
	size, err := strconv.Atoi(args[1].text)
	if err != nil || size < 0 {
		fmt.Fprintf(s.out, "Usage: create <file_id> <file_size>\n")
		return errUsage
	}

	return s.createFile(&card.File{
		ID:        p.ID(),
		Type:      card.FileTypeWorkingEF,
		Structure: card.StructureTransparent,
		Size:      size,
		Status:    card.StatusActivated,
		ACL:       card.OpenACL(),
	})
}

func (s *Session) cmdMkdir(args []token) error {
	if len(args) != 2 {
		fmt.Fprintf(s.out, "Usage: mkdir <file_id> <df_size>\n")
		return errUsage
	}
	p, err := s.resolve(args[0].text, true)
	if err != nil {
		fmt.Fprintf(s.out, "Usage: mkdir <file_id> <df_size>\n")
		return err
	}
	size, err := strconv.Atoi(args[1].text)
	if err != nil || size < 0 {
		fmt.Fprintf(s.out, "Usage: mkdir <file_id> <df_size>\n")
		return errUsage
	}

	return s.createFile(&card.File{
		ID:     p.ID(),
		Type:   card.FileTypeDF,
		Size:   size,
		Status: card.StatusActivated,
		ACL:    card.OpenACL(),
	})
}

func (s *Session) cmdDelete(args []token) error {
	if len(args) != 1 {
		fmt.Fprintf(s.out, "Usage: delete <file_id>\n")
		return errUsage
	}
	p, err := s.resolve(args[0].text, true)
	if err != nil || p.Kind != card.PathKindFileID || len(p.Value) != 2 {
		fmt.Fprintf(s.out, "Usage: delete <file_id>\n")
		if err == nil {
			err = errUsage
		}
		return err
	}

	if err := s.card.DeleteFile(p.ID()); err != nil {
		s.reportError("DELETE FILE failed", err, card.OpDelete, s.current)
		return err
	}
	return nil
}

// defaultGetName derives a local file name from a path, one component
// per 2-byte identifier.
func defaultGetName(p card.Path) string {
	var sb strings.Builder
	v := p.Value
	for len(v) >= 2 {
		fmt.Fprintf(&sb, "%02X%02X_", v[0], v[1])
		v = v[2:]
	}
	if len(v) == 1 {
		fmt.Fprintf(&sb, "%02X_", v[0])
	}
	return strings.TrimSuffix(sb.String(), "_")
}

func (s *Session) cmdGet(args []token) error {
	if len(args) < 1 || len(args) > 2 {
		fmt.Fprintf(s.out, "Usage: get <file id> [output file]\n")
		return errUsage
	}
	p, err := s.resolve(args[0].text, false)
	if err != nil {
		fmt.Fprintf(s.out, "Usage: get <file id> [output file]\n")
		return err
	}
	filename := arg(args, 1).text
	if filename == "" {
		filename = defaultGetName(p)
	}

	toStdout := filename == "-"
	var out io.Writer
	if toStdout {
		out = s.out
	} else {
		f, err := s.fs.Create(filename)
		if err != nil {
			fmt.Fprintln(s.errOut, err)
			s.restore()
			return err
		}
		defer f.Close()
		out = f
	}

	file, err := s.card.Select(p)
	if err != nil {
		s.reportError("unable to select file", err, card.OpSelect, s.current)
		s.restore()
		return err
	}
	if file.Type != card.FileTypeWorkingEF {
		fmt.Fprintf(s.out, "only working EFs may be read\n")
		s.restore()
		return errors.New("not a working EF")
	}

	idx := 0
	count := file.Size
	for count > 0 {
		c := count
		if c > 256 {
			c = 256
		}
		data, err := s.card.ReadBinary(idx, c)
		if err != nil {
			s.reportError("read failed", err, card.OpRead, file)
			s.restore()
			return err
		}
		if len(data) != c && !s.card.Quirks.ZeroLengthReadIsEOF {
			fmt.Fprintf(s.out, "expecting %d, got only %d bytes.\n", c, len(data))
			s.restore()
			return &card.LengthError{Expected: c, Got: len(data)}
		}
		if len(data) == 0 {
			break
		}
		if _, err := out.Write(data); err != nil {
			fmt.Fprintln(s.errOut, err)
			s.restore()
			return err
		}
		idx += len(data)
		count -= len(data)
	}

	if toStdout {
		io.WriteString(out, "\n")
	} else {
		fmt.Fprintf(s.out, "Total of %d bytes read from %s and saved to %s.\n",
			idx, args[0].text, filename)
	}
	return s.restore()
}

func (s *Session) cmdPut(args []token) error {
	if len(args) < 1 || len(args) > 2 {
		fmt.Fprintf(s.out, "Usage: put <file id> [input file]\n")
		return errUsage
	}
	p, err := s.resolve(args[0].text, false)
	if err != nil {
		fmt.Fprintf(s.out, "Usage: put <file id> [input file]\n")
		return err
	}
	filename := arg(args, 1).text
	if filename == "" {
		var b0, b1 byte
		if len(p.Value) >= 2 {
			b0, b1 = p.Value[0], p.Value[1]
		}
		filename = fmt.Sprintf("%02X%02X", b0, b1)
	}

	f, err := s.fs.Open(filename)
	if err != nil {
		fmt.Fprintln(s.errOut, err)
		s.restore()
		return err
	}
	defer f.Close()

	file, err := s.card.Select(p)
	if err != nil {
		s.reportError("unable to select file", err, card.OpSelect, s.current)
		s.restore()
		return err
	}

	idx := 0
	count := file.Size
	buf := make([]byte, 256)
	for count > 0 {
		c := count
		if c > 256 {
			c = 256
		}
		n, _ := io.ReadFull(f, buf[:c])
		if n != c {
			count = n
			c = n
		}
		if c == 0 {
			break
		}
		written, err := s.card.UpdateBinary(idx, buf[:c])
		if err != nil {
			s.reportError("update failed", err, card.OpUpdate, file)
			s.restore()
			return err
		}
		if written != c {
			fmt.Fprintf(s.out, "expecting %d, wrote only %d bytes.\n", c, written)
			s.restore()
			return &card.LengthError{Expected: c, Got: written}
		}
		idx += c
		count -= c
	}
	fmt.Fprintf(s.out, "Total of %d bytes written.\n", idx)
	return s.restore()
}

// updateValue interprets the value argument of the update commands:
// quoted text as literal bytes, anything else as hex.
func (s *Session) updateValue(tok token, max int) ([]byte, error) {
	if tok.quoted {
		b := []byte(tok.text)
		if len(b) > max-1 {
			b = b[:max-1]
		}
		return b, nil
	}
	data, err := hexutil.DecodeString(tok.text, max)
	if errors.Is(err, hexutil.ErrOddLength) {
		fmt.Fprintf(s.out, "Error: the number of hex digits must be even.\n")
	}
	if err != nil || len(data) == 0 {
		fmt.Fprintf(s.out, "unable to parse hex value\n")
		return nil, errBadAddress
	}
	return data, nil
}

func (s *Session) cmdUpdateBinary(args []token) error {
	if len(args) < 2 || len(args) > 3 {
		fmt.Fprintf(s.out, "Usage: update_binary <file id> offs <hex value> | <'\"' enclosed string>\n")
		return errUsage
	}
	p, err := s.resolve(args[0].text, false)
	if err != nil {
		fmt.Fprintf(s.out, "Usage: update_binary <file id> offs <hex value> | <'\"' enclosed string>\n")
		return err
	}
	offs, err := strconv.Atoi(arg(args, 1).text)
	if err != nil {
		offs = 0
	}
	in := arg(args, 2)
	fmt.Fprintf(s.out, "in: %d; %s\n", offs, in.text)

	data, err := s.updateValue(in, 240)
	if err != nil {
		return err
	}

	file, err := s.card.Select(p)
	if err != nil {
		s.reportError("unable to select file", err, card.OpSelect, s.current)
		return err
	}
	if file.Structure != card.StructureTransparent {
		fmt.Fprintf(s.out, "EF structure should be transparent\n")
		s.restore()
		return errors.New("not a transparent EF")
	}

	n, err := s.card.UpdateBinary(offs, data)
	if err != nil {
		fmt.Fprintf(s.out, "Cannot update %04X: %s\n", file.ID, err)
		s.restore()
		return err
	}
	fmt.Fprintf(s.out, "Total of %d bytes written to %04X at %d offset.\n", n, file.ID, offs)
	return s.restore()
}

func (s *Session) cmdUpdateRecord(args []token) error {
	if len(args) < 3 || len(args) > 4 {
		fmt.Fprintf(s.out, "Usage: update_record <file id> rec_nr rec_offs <hex value>\n")
		return errUsage
	}
	p, err := s.resolve(args[0].text, false)
	if err != nil {
		fmt.Fprintf(s.out, "Usage: update_record <file id> rec_nr rec_offs <hex value>\n")
		return err
	}
	rec, err := strconv.Atoi(arg(args, 1).text)
	if err != nil {
		rec = 0
	}
	offs, err := strconv.Atoi(arg(args, 2).text)
	if err != nil {
		offs = 0
	}
	in := arg(args, 3)
	fmt.Fprintf(s.out, "in: %d; %d; %s\n", rec, offs, in.text)

	file, err := s.card.Select(p)
	if err != nil {
		s.reportError("unable to select file", err, card.OpSelect, s.current)
		return err
	}
	if file.Structure != card.StructureLinearVariable {
		fmt.Fprintf(s.out, "EF structure should be linear variable\n")
		s.restore()
		return errors.New("not a linear variable EF")
	}
	if rec < 1 || rec > file.RecordCount {
		fmt.Fprintf(s.out, "Invalid record number %d\n", rec)
		s.restore()
		return errUsage
	}

	data, err := s.card.ReadRecord(0, byte(rec))
	if err != nil {
		fmt.Fprintf(s.out, "Cannot read record %d: %s\n", rec, err)
		s.restore()
		return err
	}

	patch, err := s.updateValue(in, 240)
	if err != nil {
		s.restore()
		return err
	}
	if offs < 0 || offs+len(patch) > len(data) {
		fmt.Fprintf(s.out, "Invalid offset %d\n", offs)
		s.restore()
		return errUsage
	}
	copy(data[offs:], patch)

	if _, err := s.card.UpdateRecord(byte(rec), data); err != nil {
		fmt.Fprintf(s.out, "Cannot update record %d: %s\n", rec, err)
		s.restore()
		return err
	}
	fmt.Fprintf(s.out, "Total of %d bytes written to record %d at %d offset.\n",
		len(patch), rec, offs)
	return s.restore()
}

func (s *Session) cmdAsn1(args []token) error {
	if len(args) > 1 {
		fmt.Fprintf(s.out, "Usage: asn1 [file_id]\n")
		return errUsage
	}

	if len(args) == 1 {
		p, err := s.resolve(args[0].text, false)
		if err != nil {
			fmt.Fprintf(s.out, "Invalid file path\n")
			return err
		}
		return s.withSelected(p, s.decodeFile)
	}

	if s.current == nil {
		fmt.Fprintf(s.out, "No file selected.\n")
		return errors.New("no file selected")
	}
	return s.decodeFile(s.current)
}

func (s *Session) decodeFile(file *card.File) error {
	if file.Type != card.FileTypeWorkingEF {
		fmt.Fprintf(s.out, "only working EFs may be read\n")
		return errors.New("not a working EF")
	}
	if file.Structure != card.StructureTransparent {
		fmt.Fprintf(s.out, "only transparent file type is supported at the moment\n")
		return errors.New("not a transparent EF")
	}

	data := make([]byte, 0, file.Size)
	for len(data) < file.Size {
		c := file.Size - len(data)
		if c > 256 {
			c = 256
		}
		chunk, err := s.card.ReadBinary(len(data), c)
		if err != nil {
			s.reportError("read failed", err, card.OpRead, file)
			return err
		}
		data = append(data, chunk...)
		if len(chunk) != c {
			break
		}
	}
	if len(data) != file.Size {
		fmt.Fprintf(s.out, "expecting %d, got only %d bytes.\n", file.Size, len(data))
		return &card.LengthError{Expected: file.Size, Got: len(data)}
	}

	if err := tlv.Dump(s.out, data); err != nil {
		fmt.Fprintln(s.out, err)
		return err
	}
	return nil
}
