package chainquery

import (
	"context"
	"fmt"

	"github.com/gogf/gf/v2/util/gconv"
)

// koios speaks the Koios REST dialect. It needs no credential and is the
// backend that supports community mirrors; additional base URLs come from
// WithMirrors.
type koios struct {
	rest *rest
}

func (k *koios) name() string {
	return BackendKoios
}

func (k *koios) defaultMirrors() []string {
	return []string{"https://api.koios.rest/api/v1"}
}

type koiosInlineDatum struct {
	Bytes string      `json:"bytes"`
	Value interface{} `json:"value"`
}

type koiosPaymentAddr struct {
	Bech32 string `json:"bech32"`
}

type koiosOutput struct {
	PaymentAddr koiosPaymentAddr  `json:"payment_addr"`
	TxHash      string            `json:"tx_hash"`
	TxIndex     uint32            `json:"tx_index"`
	Value       string            `json:"value"`
	DatumHash   string            `json:"datum_hash"`
	InlineDatum *koiosInlineDatum `json:"inline_datum"`
}

type koiosTxInfo struct {
	TxHash  string        `json:"tx_hash"`
	Outputs []koiosOutput `json:"outputs"`
}

func (k *koios) fetchUtxo(ctx context.Context, base string, ref TxRef) (*Utxo, error) {
	var rows []koiosTxInfo
	body := map[string]interface{}{"_tx_hashes": []string{ref.Hash}}
	if err := k.rest.postJSON(ctx, base+"/tx_info", body, &rows); err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, ErrNotFound
	}
	for _, out := range rows[0].Outputs {
		if out.TxIndex != ref.Index {
			continue
		}
		u := &Utxo{
			Ref:       ref,
			Address:   out.PaymentAddr.Bech32,
			Lovelace:  parseQuantity(out.Value),
			DatumHash: out.DatumHash,
		}
		if out.InlineDatum != nil {
			u.InlineDatumHex = out.InlineDatum.Bytes
		}
		return u, nil
	}
	return nil, ErrNotFound
}

type koiosDatum struct {
	DatumHash string `json:"datum_hash"`
	Bytes     string `json:"bytes"`
}

func (k *koios) fetchDatum(ctx context.Context, base string, datumHash string) (string, error) {
	var rows []koiosDatum
	body := map[string]interface{}{"_datum_hashes": []string{datumHash}}
	if err := k.rest.postJSON(ctx, base+"/datum_info", body, &rows); err != nil {
		return "", err
	}
	if len(rows) == 0 || rows[0].Bytes == "" {
		return "", ErrNotFound
	}
	return rows[0].Bytes, nil
}

type koiosTxMetadata struct {
	TxHash   string                 `json:"tx_hash"`
	Metadata map[string]interface{} `json:"metadata"`
}

func (k *koios) fetchMetadata(ctx context.Context, base string, txHash string) ([]MetadataRecord, error) {
	var rows []koiosTxMetadata
	body := map[string]interface{}{"_tx_hashes": []string{txHash}}
	if err := k.rest.postJSON(ctx, base+"/tx_metadata", body, &rows); err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, ErrNotFound
	}
	records := make([]MetadataRecord, 0, len(rows[0].Metadata))
	for label, v := range rows[0].Metadata {
		body := gconv.Map(v)
		if body == nil {
			continue
		}
		records = append(records, MetadataRecord{Label: label, Body: body})
	}
	return records, nil
}

type koiosPolicyAsset struct {
	AssetName   string `json:"asset_name"`
	Fingerprint string `json:"fingerprint"`
	TotalSupply string `json:"total_supply"`
}

func (k *koios) listPolicyAssets(ctx context.Context, base string, policyID string) ([]AssetID, error) {
	var rows []koiosPolicyAsset
	url := fmt.Sprintf("%s/policy_asset_list?_asset_policy=%s", base, policyID)
	if err := k.rest.getJSON(ctx, url, &rows); err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, ErrNotFound
	}
	assets := make([]AssetID, 0, len(rows))
	for _, row := range rows {
		assets = append(assets, AssetID{PolicyID: policyID, AssetNameHex: row.AssetName})
	}
	return assets, nil
}

type koiosAssetInfo struct {
	PolicyID         string      `json:"policy_id"`
	AssetName        string      `json:"asset_name"`
	Fingerprint      string      `json:"fingerprint"`
	TotalSupply      string      `json:"total_supply"`
	MintingTxHash    string      `json:"minting_tx_hash"`
	MintingTxMetadat interface{} `json:"minting_tx_metadata"`
}

func (k *koios) fetchAssetInfo(ctx context.Context, base string, id AssetID) (*AssetInfo, error) {
	var rows []koiosAssetInfo
	body := map[string]interface{}{"_asset_list": [][]string{{id.PolicyID, id.AssetNameHex}}}
	if err := k.rest.postJSON(ctx, base+"/asset_info", body, &rows); err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, ErrNotFound
	}
	row := rows[0]
	return &AssetInfo{
		ID:          id,
		Fingerprint: row.Fingerprint,
		Quantity:    parseQuantity(row.TotalSupply),
		MintTxHash:  row.MintingTxHash,
		Metadata:    mintRecordFor(row.MintingTxMetadat, id),
	}, nil
}

// mintRecordFor digs the asset's own record out of the minting
// transaction's token metadata, which nests as label → policy → asset
// name. Koios keys the innermost map by the printable asset name; the hex
// form is accepted as a fallback.
func mintRecordFor(mintMetadata interface{}, id AssetID) map[string]interface{} {
	byLabel := gconv.Map(mintMetadata)
	if byLabel == nil {
		return nil
	}
	for _, labeled := range byLabel {
		byPolicy := gconv.Map(labeled)
		if byPolicy == nil {
			continue
		}
		byName := gconv.Map(byPolicy[id.PolicyID])
		if byName == nil {
			continue
		}
		if rec := gconv.Map(byName[id.AssetName()]); rec != nil {
			return rec
		}
		if rec := gconv.Map(byName[id.AssetNameHex]); rec != nil {
			return rec
		}
	}
	return nil
}
