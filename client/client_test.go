package client_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"xdao.co/in3/client"
	"xdao.co/in3/config"
	"xdao.co/in3/engine/nodeproxy"
	"xdao.co/in3/rpcerr"
	"xdao.co/in3/signer"
	"xdao.co/in3/storage/memory"
	"xdao.co/in3/transport"
)

// rpcNode answers every JSON-RPC request with result.
func rpcNode(t *testing.T, result string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		var req struct {
			ID     uint64 `json:"id"`
			Method string `json:"method"`
		}
		require.NoError(t, json.Unmarshal(body, &req))
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"jsonrpc":"2.0","id":`+jsonUint(req.ID)+`,"result":`+result+`}`)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func jsonUint(v uint64) string {
	b, _ := json.Marshal(v)
	return string(b)
}

// echo answers with a fixed result for whatever id it receives.
func echo(result string) transport.Func {
	return func(_ context.Context, payload []byte, targets []string) []transport.Response {
		var req struct {
			ID uint64 `json:"id"`
		}
		_ = json.Unmarshal(payload, &req)
		out := make([]transport.Response, len(targets))
		for i := range targets {
			out[i] = transport.OK(`{"jsonrpc":"2.0","id":` + jsonUint(req.ID) + `,"result":` + result + `}`)
		}
		return out
	}
}

func TestExecute_OverHTTP(t *testing.T) {
	srv := rpcNode(t, `"0x10"`)
	c, err := client.New(client.Options{})
	require.NoError(t, err)
	require.NoError(t, c.Configure(`{"rpc":"`+srv.URL+`"}`))

	got, err := c.Execute(context.Background(), `{"method":"eth_blockNumber","params":[]}`)
	require.NoError(t, err)
	require.Equal(t, `"0x10"`, got)
}

func TestConfigure_RejectsUnknownKeys(t *testing.T) {
	c, err := client.New(client.Options{})
	require.NoError(t, err)
	before := c.Settings()

	err = c.Configure(`{"autoUpdateList":false,"bogus":1}`)
	require.True(t, rpcerr.IsKind(err, rpcerr.KindConfiguration), "got %v", err)
	require.Equal(t, before.AutoUpdateList, c.Settings().AutoUpdateList)

	require.NoError(t, c.Configure(`{"autoUpdateList":false}`))
	require.False(t, c.Settings().AutoUpdateList)
}

func TestSetTransport_Replaces(t *testing.T) {
	c, err := client.New(client.Options{Transport: echo(`"first"`)})
	require.NoError(t, err)
	require.NoError(t, c.Configure(`{"rpc":"http://unused.local"}`))

	out, err := c.Send(context.Background(), "eth_chainId")
	require.NoError(t, err)
	require.JSONEq(t, `"first"`, string(out))

	c.SetTransport(echo(`"second"`))
	out, err = c.Send(context.Background(), "eth_chainId")
	require.NoError(t, err)
	require.JSONEq(t, `"second"`, string(out))
}

func TestSetTransport_DoesNotAffectRunningCall(t *testing.T) {
	entered := make(chan struct{})
	release := make(chan struct{})
	blocking := transport.Func(func(ctx context.Context, payload []byte, targets []string) []transport.Response {
		close(entered)
		<-release
		return echo(`"old"`)(ctx, payload, targets)
	})

	c, err := client.New(client.Options{Transport: blocking})
	require.NoError(t, err)
	require.NoError(t, c.Configure(`{"rpc":"http://unused.local"}`))

	type res struct {
		out string
		err error
	}
	done := make(chan res, 1)
	go func() {
		out, err := c.Execute(context.Background(), `{"method":"eth_chainId","params":[]}`)
		done <- res{out, err}
	}()

	<-entered
	c.SetTransport(echo(`"new"`))
	close(release)

	r := <-done
	require.NoError(t, r.err)
	require.Equal(t, `"old"`, r.out)
}

func TestSetRawKeySigner(t *testing.T) {
	c, err := client.New(client.Options{})
	require.NoError(t, err)

	err = c.SetRawKeySigner("0x1234")
	require.True(t, rpcerr.IsKind(err, rpcerr.KindConfiguration), "got %v", err)

	const pk = "0xac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80"
	require.NoError(t, c.SetRawKeySigner(pk))

	out, err := c.Send(context.Background(), "eth_sign", "0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266", "0x68656c6c6f")
	require.NoError(t, err)

	var sigHex string
	require.NoError(t, json.Unmarshal(out, &sigHex))
	sig, err := hexutil.Decode(sigHex)
	require.NoError(t, err)
	addr, err := signer.RecoverAddress(accounts.TextHash([]byte("hello")), sig)
	require.NoError(t, err)
	require.Equal(t, "0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266", addr.Hex())
}

func TestSignWithoutCapability(t *testing.T) {
	c, err := client.New(client.Options{})
	require.NoError(t, err)
	_, err = c.Send(context.Background(), "in3_sign", "0x01")
	require.True(t, rpcerr.IsKind(err, rpcerr.KindSigning), "got %v", err)
}

func TestSetSigner_PreferredOverRawKey(t *testing.T) {
	c, err := client.New(client.Options{})
	require.NoError(t, err)
	require.NoError(t, c.SetRawKeySigner("0xac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80"))

	fixed := make([]byte, signer.SignatureLength)
	fixed[0] = 0xaa
	c.SetSigner(signer.Func(func(context.Context, []byte) ([]byte, error) { return fixed, nil }))

	out, err := c.Send(context.Background(), "in3_sign", "0x01")
	require.NoError(t, err)
	require.JSONEq(t, `"`+hexutil.Encode(fixed)+`"`, string(out))
}

func TestSetStorage_PersistsNodeList(t *testing.T) {
	store, err := memory.New(0)
	require.NoError(t, err)

	list := `{"nodes":[{"url":"https://n1.example","address":"0x45d45e6ff99e6c34a235d263965910298985fcfe","props":"0xff"}],"lastBlockNumber":42}`
	tr := transport.Func(func(ctx context.Context, payload []byte, targets []string) []transport.Response {
		var req struct {
			Method string `json:"method"`
		}
		_ = json.Unmarshal(payload, &req)
		if req.Method == "in3_nodeList" {
			return echo(list)(ctx, payload, targets)
		}
		return echo(`"0x1"`)(ctx, payload, targets)
	})

	c, err := client.New(client.Options{Transport: tr})
	require.NoError(t, err)
	c.SetStorage(store)

	_, err = c.Send(context.Background(), "eth_blockNumber")
	require.NoError(t, err)

	_, err = store.Get(nodeproxy.StorageKey(config.ChainMainnet))
	require.NoError(t, err)
	require.Equal(t, []string{"https://n1.example"}, c.Nodes(config.ChainMainnet))
}

func TestSetStorage_ReadsNewStore(t *testing.T) {
	var targets []string
	tr := transport.Func(func(ctx context.Context, payload []byte, ts []string) []transport.Response {
		targets = append(targets, ts...)
		return echo(`"0x1"`)(ctx, payload, ts)
	})
	c, err := client.New(client.Options{Transport: tr})
	require.NoError(t, err)
	require.NoError(t, c.Configure(`{"autoUpdateList":false}`))

	_, err = c.Send(context.Background(), "eth_blockNumber")
	require.NoError(t, err)

	store, err := memory.New(0)
	require.NoError(t, err)
	seed := `{"lastBlock":7,"needsUpdate":false,"nodes":[{"url":"https://stored.example"}]}`
	require.NoError(t, store.Set(nodeproxy.StorageKey(config.ChainMainnet), []byte(seed)))
	c.SetStorage(store)

	targets = nil
	_, err = c.Send(context.Background(), "eth_blockNumber")
	require.NoError(t, err)
	require.Equal(t, []string{"https://stored.example"}, targets)
	require.Equal(t, []string{"https://stored.example"}, c.Nodes(config.ChainMainnet))
}

func TestMaxAttemptsFromSettings(t *testing.T) {
	store, err := memory.New(0)
	require.NoError(t, err)
	// Every node list is older than the one already stored, so each attempt
	// detects stale data and restarts.
	seed := `{"lastBlock":100,"needsUpdate":true,"nodes":[{"url":"https://a.example"},{"url":"https://b.example"}]}`
	require.NoError(t, store.Set(nodeproxy.StorageKey(config.ChainMainnet), []byte(seed)))

	stale := `{"nodes":[{"url":"https://x.example"}],"lastBlockNumber":1}`
	c, err := client.New(client.Options{Transport: echo(stale), Storage: store})
	require.NoError(t, err)
	require.NoError(t, c.Configure(`{"maxAttempts":2}`))

	_, err = c.Send(context.Background(), "eth_blockNumber")
	require.True(t, rpcerr.IsKind(err, rpcerr.KindExhausted), "got %v", err)
}

func TestMetricsRegistered(t *testing.T) {
	reg := prometheus.NewRegistry()
	c, err := client.New(client.Options{Transport: echo(`"0x1"`), Registerer: reg})
	require.NoError(t, err)
	require.NoError(t, c.Configure(`{"rpc":"http://unused.local"}`))

	_, err = c.Send(context.Background(), "eth_chainId")
	require.NoError(t, err)

	n, err := testutil.GatherAndCount(reg, "in3_driver_attempts_total")
	require.NoError(t, err)
	require.Equal(t, 1, n)

	_, err = client.New(client.Options{Registerer: reg})
	require.Error(t, err, "registering twice must fail")
}
