package chainquery

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testTxHash = "aa11bb22cc33dd44ee55ff660123456789abcdef0123456789abcdef01234567"
	testPolicy = "d5e6bf0500378d4f0da4e8dde6becec7621cd8cbf5cbb9b87013d4cc"
)

func testUtxoBody(index uint32, datumHex string) string {
	out := map[string]interface{}{
		"address":      "addr1qxy0test",
		"output_index": index,
		"amount":       []map[string]string{{"unit": "lovelace", "quantity": "1444443"}},
		"inline_datum": datumHex,
		"data_hash":    "",
	}
	body, _ := json.Marshal(map[string]interface{}{
		"hash":    testTxHash,
		"outputs": []interface{}{out},
	})
	return string(body)
}

func newBlockfrostClient(t *testing.T, mirrors ...string) *Client {
	t.Helper()
	cli, err := New(
		WithBackend(BackendBlockfrost),
		WithProjectID("testkey"),
		WithMirrors(mirrors...),
		WithMinInterval(time.Millisecond),
		WithRetryBackoff(time.Millisecond),
	)
	require.NoError(t, err)
	return cli
}

func TestNewValidatesOptions(t *testing.T) {
	_, err := New()
	require.Error(t, err, "backend is required")

	_, err = New(WithBackend("blockfrost"))
	require.Error(t, err, "blockfrost requires a project id")

	_, err = New(WithBackend("koios"))
	require.NoError(t, err)
}

func TestFetchUtxoNormalizesBlockfrost(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "testkey", r.Header.Get("project_id"))
		assert.Equal(t, "/txs/"+testTxHash+"/utxos", r.URL.Path)
		_, _ = w.Write([]byte(testUtxoBody(0, "45414243")))
	}))
	defer srv.Close()

	cli := newBlockfrostClient(t, srv.URL)
	ref, err := ParseTxRef(testTxHash + "#0")
	require.NoError(t, err)

	utxo, err := cli.FetchUtxo(context.Background(), ref)
	require.NoError(t, err)
	assert.Equal(t, "addr1qxy0test", utxo.Address)
	assert.Equal(t, "45414243", utxo.InlineDatumHex)
	assert.Equal(t, "1444443", utxo.Lovelace.String())
	assert.Equal(t, "1.444443", utxo.Ada().String())
}

func TestFetchUtxoMissingIndexIsNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(testUtxoBody(0, "")))
	}))
	defer srv.Close()

	cli := newBlockfrostClient(t, srv.URL)
	ref := TxRef{Hash: testTxHash, Index: 9}
	_, err := cli.FetchUtxo(context.Background(), ref)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestThrottleRetriesHonorRetryAfter(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) <= 2 {
			w.Header().Set("Retry-After", "0")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		_, _ = w.Write([]byte(testUtxoBody(0, "40")))
	}))
	defer srv.Close()

	cli := newBlockfrostClient(t, srv.URL)
	_, err := cli.FetchUtxo(context.Background(), TxRef{Hash: testTxHash, Index: 0})
	require.NoError(t, err)
	assert.EqualValues(t, 3, atomic.LoadInt32(&calls), "two throttles then success")
}

func TestThrottleRetryCapExhausts(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	cli, err := New(
		WithBackend(BackendBlockfrost),
		WithProjectID("testkey"),
		WithMirrors(srv.URL),
		WithMinInterval(time.Millisecond),
		WithRetryCap(2),
		WithRetryBackoff(time.Millisecond),
	)
	require.NoError(t, err)

	_, err = cli.FetchUtxo(context.Background(), TxRef{Hash: testTxHash, Index: 0})
	require.Error(t, err)

	var exhausted *BackendExhaustedError
	require.ErrorAs(t, err, &exhausted)
	// Initial attempt plus two retries.
	assert.EqualValues(t, 3, atomic.LoadInt32(&calls))
}

func TestMirrorFailoverAndSticky(t *testing.T) {
	var calls1, calls2 int32
	bad := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls1, 1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer bad.Close()
	good := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls2, 1)
		_, _ = w.Write([]byte(testUtxoBody(0, "40")))
	}))
	defer good.Close()

	cli := newBlockfrostClient(t, bad.URL, good.URL)
	ctx := context.Background()
	ref := TxRef{Hash: testTxHash, Index: 0}

	_, err := cli.FetchUtxo(ctx, ref)
	require.NoError(t, err)
	assert.EqualValues(t, 1, atomic.LoadInt32(&calls1))
	assert.Equal(t, good.URL, cli.StickyMirror())

	// The sticky mirror is tried first on the next call; the bad mirror
	// is not touched again.
	_, err = cli.FetchUtxo(ctx, ref)
	require.NoError(t, err)
	assert.EqualValues(t, 1, atomic.LoadInt32(&calls1))
	assert.EqualValues(t, 2, atomic.LoadInt32(&calls2))
}

func TestAllMirrorsFailAggregates(t *testing.T) {
	mk := func(status int) *httptest.Server {
		return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(status)
		}))
	}
	m1 := mk(http.StatusInternalServerError)
	defer m1.Close()
	m2 := mk(http.StatusBadGateway)
	defer m2.Close()

	cli := newBlockfrostClient(t, m1.URL, m2.URL)
	_, err := cli.FetchUtxo(context.Background(), TxRef{Hash: testTxHash, Index: 0})

	var exhausted *BackendExhaustedError
	require.ErrorAs(t, err, &exhausted)
	require.Len(t, exhausted.Failures, 2)
	assert.Equal(t, m1.URL, exhausted.Failures[0].Mirror)
	assert.Equal(t, m2.URL, exhausted.Failures[1].Mirror)
	assert.Contains(t, err.Error(), "500")
	assert.Contains(t, err.Error(), "502")
}

func TestNotFoundShortCircuitsMirrors(t *testing.T) {
	var calls2 int32
	notFound := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer notFound.Close()
	other := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls2, 1)
		_, _ = w.Write([]byte(testUtxoBody(0, "40")))
	}))
	defer other.Close()

	cli := newBlockfrostClient(t, notFound.URL, other.URL)
	_, err := cli.FetchUtxo(context.Background(), TxRef{Hash: testTxHash, Index: 0})
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Zero(t, atomic.LoadInt32(&calls2), "a definitive 404 must not fail over")
}

func TestCancellationStopsRetries(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "2")
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	cli := newBlockfrostClient(t, srv.URL)
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	_, err := cli.FetchUtxo(ctx, TxRef{Hash: testTxHash, Index: 0})
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled), "got %v", err)
}

func TestListPolicyAssetsPaginates(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		page := r.URL.Query().Get("page")
		var assets []map[string]string
		n := bfPageSize
		if page == "2" {
			n = 3
		}
		for i := 0; i < n; i++ {
			assets = append(assets, map[string]string{
				"asset":    fmt.Sprintf("%s%04x", testPolicy, i),
				"quantity": "1",
			})
		}
		_ = json.NewEncoder(w).Encode(assets)
	}))
	defer srv.Close()

	cli := newBlockfrostClient(t, srv.URL)
	assets, err := cli.ListPolicyAssets(context.Background(), testPolicy)
	require.NoError(t, err)
	assert.Len(t, assets, bfPageSize+3)
	assert.Equal(t, testPolicy, assets[0].PolicyID)
}

func TestKoiosFetchUtxo(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/tx_info", r.URL.Path)
		_, _ = w.Write([]byte(`[{
			"tx_hash": "` + testTxHash + `",
			"outputs": [{
				"payment_addr": {"bech32": "addr1koios"},
				"tx_hash": "` + testTxHash + `",
				"tx_index": 1,
				"value": "2000000",
				"datum_hash": "",
				"inline_datum": {"bytes": "4142", "value": {}}
			}]
		}]`))
	}))
	defer srv.Close()

	cli, err := New(
		WithBackend(BackendKoios),
		WithMirrors(srv.URL),
		WithMinInterval(time.Millisecond),
	)
	require.NoError(t, err)

	utxo, err := cli.FetchUtxo(context.Background(), TxRef{Hash: testTxHash, Index: 1})
	require.NoError(t, err)
	assert.Equal(t, "addr1koios", utxo.Address)
	assert.Equal(t, "4142", utxo.InlineDatumHex)
	assert.Equal(t, "2", utxo.Ada().String())
}

func TestKoiosEmptyRowsAreNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	cli, err := New(
		WithBackend(BackendKoios),
		WithMirrors(srv.URL),
		WithMinInterval(time.Millisecond),
	)
	require.NoError(t, err)

	_, err = cli.FetchUtxo(context.Background(), TxRef{Hash: testTxHash, Index: 0})
	assert.ErrorIs(t, err, ErrNotFound)
}
