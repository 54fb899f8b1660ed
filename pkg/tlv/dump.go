package tlv

import (
	"fmt"
	"io"

	"github.com/moov-io/bertlv"
)

// Dump writes a tree rendering of BER-TLV encoded data, one data object
// per line. Children of a constructed object indent one level below it;
// primitive values show their length, hex bytes and a printable preview.
func Dump(w io.Writer, data []byte) error {
	if len(data) == 0 {
		return nil
	}

	packets, err := bertlv.Decode(data)
	if err != nil {
		return fmt.Errorf("decoding BER-TLV: %w", err)
	}

	dumpPackets(w, packets, "")
	return nil
}

func dumpPackets(w io.Writer, packets []bertlv.TLV, indent string) {
	for _, packet := range packets {
		if len(packet.TLVs) > 0 {
			fmt.Fprintf(w, "%s%s\n", indent, packet.Tag)
			dumpPackets(w, packet.TLVs, indent+"  ")
			continue
		}

		fmt.Fprintf(w, "%s%s [%d]", indent, packet.Tag, len(packet.Value))
		if len(packet.Value) > 0 {
			fmt.Fprintf(w, " % X  %s", packet.Value, MakeSafeASCII(packet.Value))
		}
		fmt.Fprintln(w)
	}
}
