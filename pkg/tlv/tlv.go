// Package tlv maps BER-TLV data objects onto Go structs.
//
// Card file control information arrives as BER-TLV templates: a
// constructed data object whose value holds a sequence of primitive data
// objects, each identified by a one or two byte tag. Rather than picking
// values out of a []bertlv.TLV by hand at every call site, a struct
// declares the tags it cares about:
//
//	type fileControl struct {
//		Size       []byte `tlv:"80"`
//		Descriptor []byte `tlv:"82"`
//		Identifier []byte `tlv:"83"`
//		Unknown    []bertlv.TLV `tlv:",unknown"`
//	}
//
// Unmarshal decodes the input and fills every tagged field with the value
// of the matching data object. Tags absent from the input leave their
// field untouched, so optional template entries come out as nil slices. A
// field tagged ",unknown" collects every data object no other field
// claimed, preserving proprietary entries the caller may still want to
// display.
package tlv

import (
	"fmt"
	"reflect"

	"github.com/moov-io/bertlv"
)

const (
	tagKey     = "tlv"
	unknownTag = ",unknown"
)

// Unmarshal decodes data as BER-TLV and stores the matching data objects
// in the struct pointed to by target. See the package documentation for
// the struct tag convention.
func Unmarshal(data []byte, target any) error {
	packets, err := bertlv.Decode(data)
	if err != nil {
		return fmt.Errorf("decoding BER-TLV: %w", err)
	}

	return UnmarshalFromPackets(packets, target)
}

// UnmarshalFromPackets stores already decoded data objects in the struct
// pointed to by target. Callers that need to unwrap an outer template
// first can decode once, descend, and hand the inner sequence here.
func UnmarshalFromPackets(packets []bertlv.TLV, target any) error {
	v := reflect.ValueOf(target)
	if v.Kind() != reflect.Pointer || v.IsNil() {
		return fmt.Errorf("target must be a non-nil pointer, got %T", target)
	}

	v = v.Elem()
	if v.Kind() != reflect.Struct {
		return fmt.Errorf("target must point to a struct, got %T", target)
	}

	known := make(map[string]reflect.Value)
	var unknown *reflect.Value

	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		tag, ok := t.Field(i).Tag.Lookup(tagKey)
		if !ok {
			continue
		}

		field := v.Field(i)
		if tag == unknownTag {
			unknown = &field
			continue
		}

		if field.Kind() != reflect.Slice || field.Type().Elem().Kind() != reflect.Uint8 {
			return fmt.Errorf("field %s: tag %q requires a []byte field", t.Field(i).Name, tag)
		}
		known[tag] = field
	}

	for _, packet := range packets {
		field, ok := known[packet.Tag]
		if !ok {
			if unknown != nil {
				unknown.Set(reflect.Append(*unknown, reflect.ValueOf(packet)))
			}
			continue
		}

		value := make([]byte, len(packet.Value))
		copy(value, packet.Value)
		field.SetBytes(value)
	}

	return nil
}

// Find returns the first data object carrying the given tag, searching
// the top level of packets only.
func Find(packets []bertlv.TLV, tag string) (bertlv.TLV, bool) {
	for _, packet := range packets {
		if packet.Tag == tag {
			return packet, true
		}
	}

	return bertlv.TLV{}, false
}
