package card

import "strings"

// Quirks relax strict ISO expectations for card families known to
// deviate from them.
type Quirks struct {
	// ZeroLengthReadIsEOF treats an empty READ BINARY response as the
	// regular end-of-data marker. Belgian eID cards report file sizes
	// larger than the stored content and signal the real end this way.
	ZeroLengthReadIsEOF bool

	// AllowNonDFNavigation lets cd land on objects the card does not
	// describe as DFs. Some cards expose directory-like files without a
	// DF descriptor byte.
	AllowNonDFNavigation bool
}

// QuirksForDriver returns the adjustments associated with a forced
// driver name. Unknown names get the strict defaults.
func QuirksForDriver(name string) Quirks {
	switch strings.ToLower(name) {
	case "belpic":
		return Quirks{
			ZeroLengthReadIsEOF:  true,
			AllowNonDFNavigation: true,
		}
	default:
		return Quirks{}
	}
}
