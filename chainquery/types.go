package chainquery

import (
	"encoding/hex"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/gogf/gf/v2/util/gconv"
	"github.com/scrollkeep/scrollkeep/constants"
	"github.com/shopspring/decimal"
)

// TxRef identifies one transaction output: a 64-hex-character transaction
// hash and a non-negative output index, written "<hash>#<index>".
type TxRef struct {
	Hash  string
	Index uint32
}

// ParseTxRef parses the canonical "<64-hex>#<index>" form. The hash is
// normalized to lowercase.
func ParseTxRef(s string) (TxRef, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if !constants.TxRefRegexp.MatchString(s) {
		return TxRef{}, fmt.Errorf("invalid transaction reference %q", s)
	}
	parts := strings.SplitN(s, constants.TxRefDelimiter, 2)
	return TxRef{Hash: parts[0], Index: gconv.Uint32(parts[1])}, nil
}

func (r TxRef) String() string {
	return r.Hash + constants.TxRefDelimiter + gconv.String(r.Index)
}

// IsZero reports whether the reference is unset.
func (r TxRef) IsZero() bool {
	return r.Hash == ""
}

// Utxo is one transaction output in the engine's normalized shape.
type Utxo struct {
	Ref            TxRef
	Address        string
	Lovelace       decimal.Decimal
	InlineDatumHex string // hex-encoded datum container, "" when absent
	DatumHash      string // hex digest of the datum, "" when absent
}

// Ada returns the output value in whole-currency units.
func (u *Utxo) Ada() decimal.Decimal {
	return u.Lovelace.Div(decimal.NewFromInt(1_000_000))
}

// MetadataRecord is one transaction metadata entry: a numeric label (kept
// as its decimal string) and the decoded JSON body. Entries whose body is
// not a JSON object are dropped during normalization; the engine only
// consumes object-shaped records.
type MetadataRecord struct {
	Label string
	Body  map[string]interface{}
}

// AssetID identifies a token minted under a policy.
type AssetID struct {
	PolicyID     string
	AssetNameHex string
}

// Unit is the concatenated policy id and asset name hex, the form most
// backends key assets by.
func (a AssetID) Unit() string {
	return a.PolicyID + a.AssetNameHex
}

// AssetName returns the UTF-8 decoding of the asset name, or the raw hex
// when the name is not valid UTF-8.
func (a AssetID) AssetName() string {
	b, err := hex.DecodeString(a.AssetNameHex)
	if err != nil || !utf8.Valid(b) {
		return a.AssetNameHex
	}
	return string(b)
}

func (a AssetID) String() string {
	return a.Unit()
}

// ParseAssetUnit splits a unit string into its policy and asset name parts.
func ParseAssetUnit(unit string) (AssetID, error) {
	if len(unit) < constants.PolicyIdLen || !constants.PolicyIdRegexp.MatchString(unit[:constants.PolicyIdLen]) {
		return AssetID{}, fmt.Errorf("invalid asset unit %q", unit)
	}
	return AssetID{PolicyID: unit[:constants.PolicyIdLen], AssetNameHex: unit[constants.PolicyIdLen:]}, nil
}

// AssetInfo is the normalized mint information for one asset, including
// the on-chain metadata record attached at mint time.
type AssetInfo struct {
	ID          AssetID
	Fingerprint string
	Quantity    decimal.Decimal
	MintTxHash  string
	Metadata    map[string]interface{}
}
