package scroll

import (
	"bytes"
	"encoding/hex"
	"reflect"
	"strings"

	"github.com/fxamacker/cbor/v2"
	"github.com/ugorji/go/codec"
	"golang.org/x/crypto/blake2b"
)

// datumDecMode accepts standard CBOR and decodes any-typed targets into
// string-keyed maps so downstream JSON handling works unchanged.
var datumDecMode cbor.DecMode

func init() {
	var err error
	datumDecMode, err = cbor.DecOptions{
		DefaultMapType: reflect.TypeOf(map[string]interface{}(nil)),
	}.DecMode()
	if err != nil {
		panic("scroll: cbor decoder initialization failed: " + err.Error())
	}
}

// Plutus data constructors are tagged 121-127 for alternatives 0-6,
// 1280-1400 for alternatives 7-127, and 102 for the general form whose
// content is [alternative, fields].
const (
	constrTagLow     = 121
	constrTagHigh    = 127
	constrTagExtLow  = 1280
	constrTagExtHigh = 1400
	constrTagGeneral = 102
)

// datumStrategy tries one structural interpretation of a datum container.
type datumStrategy func(raw []byte) ([]byte, bool)

// Interpretations are tried in order; the first that yields bytes wins.
// Indefinite-length (chunked, break-terminated) byte strings decode the
// same way definite ones do, chunks concatenated in emission order.
var datumStrategies = []datumStrategy{
	datumAsByteString,
	datumAsConstructorPayload,
}

func datumAsByteString(raw []byte) ([]byte, bool) {
	var b []byte
	if err := datumDecMode.Unmarshal(raw, &b); err != nil || b == nil {
		return nil, false
	}
	return b, true
}

func datumAsConstructorPayload(raw []byte) ([]byte, bool) {
	var tag cbor.RawTag
	if err := datumDecMode.Unmarshal(raw, &tag); err != nil {
		return nil, false
	}
	fields, ok := constructorFields(tag)
	if !ok || len(fields) == 0 {
		return nil, false
	}
	return payloadFromField(fields[0])
}

func constructorFields(tag cbor.RawTag) ([]cbor.RawMessage, bool) {
	switch {
	case tag.Number >= constrTagLow && tag.Number <= constrTagHigh,
		tag.Number >= constrTagExtLow && tag.Number <= constrTagExtHigh:
		var fields []cbor.RawMessage
		if err := datumDecMode.Unmarshal(tag.Content, &fields); err != nil {
			return nil, false
		}
		return fields, true
	case tag.Number == constrTagGeneral:
		var general []cbor.RawMessage
		if err := datumDecMode.Unmarshal(tag.Content, &general); err != nil || len(general) != 2 {
			return nil, false
		}
		var fields []cbor.RawMessage
		if err := datumDecMode.Unmarshal(general[1], &fields); err != nil {
			return nil, false
		}
		return fields, true
	}
	return nil, false
}

// payloadFromField accepts a byte string (definite or chunked) or an
// array of byte strings, concatenated in order. Producers cap chunks at
// the ledger's metadata string limit; the decoder only requires that the
// pieces are byte strings.
func payloadFromField(field cbor.RawMessage) ([]byte, bool) {
	var b []byte
	if err := datumDecMode.Unmarshal(field, &b); err == nil && b != nil {
		return b, true
	}
	var chunks [][]byte
	if err := datumDecMode.Unmarshal(field, &chunks); err == nil && len(chunks) > 0 {
		return bytes.Join(chunks, nil), true
	}
	return nil, false
}

// DecodeDatum extracts the payload bytes from a raw datum container. When
// no structural interpretation applies, the container bytes themselves
// are the payload; only an empty input is a decode failure.
func DecodeDatum(raw []byte) ([]byte, error) {
	if len(raw) == 0 {
		return nil, &DecodeError{Reason: "empty datum"}
	}
	for _, strat := range datumStrategies {
		if b, ok := strat(raw); ok {
			return b, nil
		}
	}
	return raw, nil
}

// DecodeDatumHex hex-decodes a datum container and extracts its payload.
func DecodeDatumHex(datumHex string) ([]byte, error) {
	raw, err := hex.DecodeString(strings.TrimSpace(datumHex))
	if err != nil {
		return nil, &DecodeError{Reason: "datum is not hex", Err: err}
	}
	return DecodeDatum(raw)
}

// CheckDatumHash verifies raw container bytes against the hash the output
// declared for them. A mismatch means the wrong bytes were fetched, which
// is a decode failure, not a content verification result.
func CheckDatumHash(raw []byte, expectedHex string) error {
	if expectedHex == "" {
		return nil
	}
	sum := blake2b.Sum256(raw)
	if !strings.EqualFold(hex.EncodeToString(sum[:]), expectedHex) {
		return &DecodeError{Reason: "datum bytes do not match the declared datum hash"}
	}
	return nil
}

// DatumValue decodes the whole container into a generic value for
// display, independent of the payload extraction above. Maps decode with
// string keys so the value survives JSON re-encoding.
func DatumValue(raw []byte) (interface{}, error) {
	handle := &codec.CborHandle{}
	handle.MapType = reflect.TypeOf(map[string]interface{}(nil))
	var v interface{}
	if err := codec.NewDecoderBytes(raw, handle).Decode(&v); err != nil {
		return nil, &DecodeError{Reason: "datum is not valid cbor", Err: err}
	}
	return v, nil
}
