package chainquery

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
)

// blockfrost speaks the Blockfrost REST dialect. It is the credentialed
// backend: every request carries the project_id header set by the Client.
type blockfrost struct {
	rest *rest
}

func (b *blockfrost) name() string {
	return BackendBlockfrost
}

func (b *blockfrost) defaultMirrors() []string {
	return []string{"https://cardano-mainnet.blockfrost.io/api/v0"}
}

type bfAmount struct {
	Unit     string `json:"unit"`
	Quantity string `json:"quantity"`
}

type bfOutput struct {
	Address     string     `json:"address"`
	Amount      []bfAmount `json:"amount"`
	OutputIndex uint32     `json:"output_index"`
	DataHash    string     `json:"data_hash"`
	InlineDatum string     `json:"inline_datum"`
}

type bfTxUtxos struct {
	Hash    string     `json:"hash"`
	Outputs []bfOutput `json:"outputs"`
}

func (b *blockfrost) fetchUtxo(ctx context.Context, base string, ref TxRef) (*Utxo, error) {
	var tx bfTxUtxos
	if err := b.rest.getJSON(ctx, fmt.Sprintf("%s/txs/%s/utxos", base, ref.Hash), &tx); err != nil {
		return nil, err
	}
	for _, out := range tx.Outputs {
		if out.OutputIndex != ref.Index {
			continue
		}
		lovelace := decimal.Zero
		for _, amt := range out.Amount {
			if amt.Unit == "lovelace" {
				lovelace = parseQuantity(amt.Quantity)
				break
			}
		}
		return &Utxo{
			Ref:            ref,
			Address:        out.Address,
			Lovelace:       lovelace,
			InlineDatumHex: out.InlineDatum,
			DatumHash:      out.DataHash,
		}, nil
	}
	// The transaction exists but has no output at this index.
	return nil, ErrNotFound
}

type bfDatum struct {
	Cbor string `json:"cbor"`
}

func (b *blockfrost) fetchDatum(ctx context.Context, base string, datumHash string) (string, error) {
	var datum bfDatum
	if err := b.rest.getJSON(ctx, fmt.Sprintf("%s/scripts/datum/%s/cbor", base, datumHash), &datum); err != nil {
		return "", err
	}
	if datum.Cbor == "" {
		return "", ErrNotFound
	}
	return datum.Cbor, nil
}

type bfMetadataEntry struct {
	Label        string      `json:"label"`
	JSONMetadata interface{} `json:"json_metadata"`
}

func (b *blockfrost) fetchMetadata(ctx context.Context, base string, txHash string) ([]MetadataRecord, error) {
	var entries []bfMetadataEntry
	if err := b.rest.getJSON(ctx, fmt.Sprintf("%s/txs/%s/metadata", base, txHash), &entries); err != nil {
		return nil, err
	}
	records := make([]MetadataRecord, 0, len(entries))
	for _, e := range entries {
		body, ok := e.JSONMetadata.(map[string]interface{})
		if !ok {
			continue
		}
		records = append(records, MetadataRecord{Label: e.Label, Body: body})
	}
	return records, nil
}

type bfPolicyAsset struct {
	Asset    string `json:"asset"`
	Quantity string `json:"quantity"`
}

const bfPageSize = 100

func (b *blockfrost) listPolicyAssets(ctx context.Context, base string, policyID string) ([]AssetID, error) {
	var all []AssetID
	for page := 1; ; page++ {
		var batch []bfPolicyAsset
		url := fmt.Sprintf("%s/assets/policy/%s?count=%d&page=%d", base, policyID, bfPageSize, page)
		if err := b.rest.getJSON(ctx, url, &batch); err != nil {
			return nil, err
		}
		for _, a := range batch {
			id, err := ParseAssetUnit(a.Asset)
			if err != nil {
				return nil, err
			}
			all = append(all, id)
		}
		if len(batch) < bfPageSize {
			break
		}
	}
	if len(all) == 0 {
		return nil, ErrNotFound
	}
	return all, nil
}

type bfAssetInfo struct {
	Asset             string                 `json:"asset"`
	PolicyID          string                 `json:"policy_id"`
	AssetName         string                 `json:"asset_name"`
	Fingerprint       string                 `json:"fingerprint"`
	Quantity          string                 `json:"quantity"`
	InitialMintTxHash string                 `json:"initial_mint_tx_hash"`
	OnchainMetadata   map[string]interface{} `json:"onchain_metadata"`
}

func (b *blockfrost) fetchAssetInfo(ctx context.Context, base string, id AssetID) (*AssetInfo, error) {
	var info bfAssetInfo
	if err := b.rest.getJSON(ctx, fmt.Sprintf("%s/assets/%s", base, id.Unit()), &info); err != nil {
		return nil, err
	}
	return &AssetInfo{
		ID:          id,
		Fingerprint: info.Fingerprint,
		Quantity:    parseQuantity(info.Quantity),
		MintTxHash:  info.InitialMintTxHash,
		Metadata:    info.OnchainMetadata,
	}, nil
}

// parseQuantity decodes a backend quantity string. Backends emit integers
// as strings to avoid JSON number precision loss; a malformed value
// normalizes to zero rather than failing the whole fetch.
func parseQuantity(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}
