package explorer

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/gregLibert/card-explorer/pkg/card"
	"github.com/gregLibert/card-explorer/pkg/hexutil"
)

// errBadAddress is returned by resolve once it has already explained
// the problem on the session output.
var errBadAddress = errors.New("bad file address")

// resolve interprets one file address argument against the current
// position. "aid:" prefixed hex names an application directly, "3F00"
// is always the root, and any other identifier extends the current
// path. asID keeps a plain identifier as a direct child reference for
// commands that must address their target inside the current DF.
func (s *Session) resolve(a string, asID bool) (card.Path, error) {
	if len(a) >= 4 && strings.EqualFold(a[:4], "aid:") {
		aid, err := hexutil.DecodeString(a[4:], card.MaxAIDLen)
		if err != nil {
			fmt.Fprintf(s.out, "Error: the number of hex digits must be even.\n")
			return card.Path{}, err
		}
		return card.NewPath(card.PathKindDFName, aid)
	}

	if len(a) != 4 {
		fmt.Fprintf(s.out, "Wrong ID length.\n")
		return card.Path{}, errBadAddress
	}
	id, err := strconv.ParseUint(a, 16, 16)
	if err != nil {
		fmt.Fprintf(s.out, "Invalid ID.\n")
		return card.Path{}, errBadAddress
	}
	child := []byte{byte(id >> 8), byte(id)}

	if uint16(id) == card.MasterFileID || asID {
		kind := card.PathKindAbsolute
		if asID {
			kind = card.PathKindFileID
		}
		return card.NewPath(kind, child)
	}

	next, err := s.path.Append(child)
	if err != nil {
		if errors.Is(err, card.ErrAIDTooLong) {
			fmt.Fprintf(s.out, "Invalid length of DF_NAME path\n")
		}
		return card.Path{}, err
	}
	return next, nil
}
