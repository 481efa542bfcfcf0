package chainquery

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTxRef(t *testing.T) {
	ref, err := ParseTxRef(testTxHash + "#12")
	require.NoError(t, err)
	assert.Equal(t, testTxHash, ref.Hash)
	assert.EqualValues(t, 12, ref.Index)
	assert.Equal(t, testTxHash+"#12", ref.String())

	upper, err := ParseTxRef(" " + toUpperHex(testTxHash) + "#0 ")
	require.NoError(t, err)
	assert.Equal(t, testTxHash, upper.Hash, "hash is normalized to lowercase")

	for _, bad := range []string{
		"",
		testTxHash,
		testTxHash + "#",
		testTxHash + "#01",
		testTxHash + "#-1",
		testTxHash[:60] + "#0",
		testTxHash + "x#0",
	} {
		_, err := ParseTxRef(bad)
		assert.Error(t, err, "input %q", bad)
	}
}

func toUpperHex(s string) string {
	out := []byte(s)
	for i, c := range out {
		if c >= 'a' && c <= 'f' {
			out[i] = c - 'a' + 'A'
		}
	}
	return string(out)
}

func TestParseAssetUnit(t *testing.T) {
	id, err := ParseAssetUnit(testPolicy + "7363726f6c6c")
	require.NoError(t, err)
	assert.Equal(t, testPolicy, id.PolicyID)
	assert.Equal(t, "7363726f6c6c", id.AssetNameHex)
	assert.Equal(t, "scroll", id.AssetName())
	assert.Equal(t, testPolicy+"7363726f6c6c", id.Unit())

	// Policy-only unit: empty asset name is legal.
	id, err = ParseAssetUnit(testPolicy)
	require.NoError(t, err)
	assert.Equal(t, "", id.AssetNameHex)

	_, err = ParseAssetUnit("tooshort")
	assert.Error(t, err)
}

func TestAssetNameFallsBackToHex(t *testing.T) {
	odd := AssetID{PolicyID: testPolicy, AssetNameHex: "zz"}
	assert.Equal(t, "zz", odd.AssetName(), "undecodable hex is returned as-is")

	binary := AssetID{PolicyID: testPolicy, AssetNameHex: "fffe"}
	assert.Equal(t, "fffe", binary.AssetName(), "non-UTF-8 names stay hex")
}

func TestUtxoAda(t *testing.T) {
	u := &Utxo{Lovelace: parseQuantity("1500000")}
	assert.Equal(t, "1.5", u.Ada().String())

	zero := &Utxo{Lovelace: parseQuantity("not-a-number")}
	assert.True(t, zero.Lovelace.IsZero())
}
