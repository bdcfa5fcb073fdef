package sui

import (
	"context"
	"crypto/ed25519"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/blake2b"

	"github.com/suiichiba/marketplace/internal/core/domain"
	"github.com/suiichiba/marketplace/internal/core/ports"
)

func testKey() string {
	seed := make([]byte, ed25519.SeedSize)
	for i := range seed {
		seed[i] = byte(i)
	}
	return base64.StdEncoding.EncodeToString(append([]byte{flagEd25519}, seed...))
}

func TestParsePrivateKey(t *testing.T) {
	k, err := ParsePrivateKey(testKey())
	require.NoError(t, err)
	assert.Len(t, k, ed25519.PrivateKeySize)

	_, err = ParsePrivateKey("")
	assert.ErrorIs(t, err, ErrInvalidKey)
	_, err = ParsePrivateKey(base64.StdEncoding.EncodeToString([]byte("short")))
	assert.ErrorIs(t, err, ErrInvalidKey)
}

func TestAddressOf_Is32ByteHex(t *testing.T) {
	k, err := ParsePrivateKey(testKey())
	require.NoError(t, err)
	addr := AddressOf(k.Public().(ed25519.PublicKey))
	assert.Regexp(t, `^0x[0-9a-f]{64}$`, addr)
}

func TestSign_VerifiesAgainstIntentDigest(t *testing.T) {
	c, err := New("http://unused", "0x1", testKey(), "", 0)
	require.NoError(t, err)

	tx := []byte{1, 2, 3, 4}
	sig, err := c.Sign(base64.StdEncoding.EncodeToString(tx))
	require.NoError(t, err)

	raw, err := base64.StdEncoding.DecodeString(sig)
	require.NoError(t, err)
	require.Len(t, raw, 1+ed25519.SignatureSize+ed25519.PublicKeySize)
	assert.Equal(t, byte(flagEd25519), raw[0])

	pub := ed25519.PublicKey(raw[1+ed25519.SignatureSize:])
	digest := blake2b.Sum256(append([]byte{0, 0, 0}, tx...))
	assert.True(t, ed25519.Verify(pub, digest[:], raw[1:1+ed25519.SignatureSize]))
}

func TestMoveCall_BuildsSignsAndExecutes(t *testing.T) {
	var methods []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Method string            `json:"method"`
			Params []json.RawMessage `json:"params"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		methods = append(methods, req.Method)
		switch req.Method {
		case "unsafe_moveCall":
			assert.JSONEq(t, `"escrow"`, string(req.Params[2]))
			assert.JSONEq(t, `["0xseller","1500000000"]`, string(req.Params[5]))
			assert.JSONEq(t, `"10000000"`, string(req.Params[7]))
			_, _ = w.Write([]byte(`{"jsonrpc":"2.0","id":1,"result":{"txBytes":"AQID"}}`))
		case "sui_executeTransactionBlock":
			_, _ = w.Write([]byte(`{"jsonrpc":"2.0","id":2,"result":{"digest":"D1","effects":{"status":{"status":"success"}}}}`))
		}
	}))
	defer srv.Close()

	c, err := New(srv.URL, "0xpkg", testKey(), "", 0)
	require.NoError(t, err)

	res, err := c.MoveCall(context.Background(), ports.MoveCall{
		Module: "escrow", Function: "create_escrow",
		Arguments: []any{"0xseller", uint64(1_500_000_000)}, GasBudget: 10_000_000,
	})
	require.NoError(t, err)
	assert.Equal(t, "D1", res.Digest)
	assert.Equal(t, []string{"unsafe_moveCall", "sui_executeTransactionBlock"}, methods)
}

func TestMoveCall_FailedEffectsIsRemoteError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Method string `json:"method"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)
		if req.Method == "unsafe_moveCall" {
			_, _ = w.Write([]byte(`{"result":{"txBytes":"AQID"}}`))
			return
		}
		_, _ = w.Write([]byte(`{"result":{"digest":"D2","effects":{"status":{"status":"failure","error":"MoveAbort"}}}}`))
	}))
	defer srv.Close()

	c, err := New(srv.URL, "0xpkg", testKey(), "", 0)
	require.NoError(t, err)
	_, err = c.MoveCall(context.Background(), ports.MoveCall{Module: "escrow", Function: "confirm_purchase"})
	assert.ErrorIs(t, err, domain.ErrRemote)
	assert.Contains(t, err.Error(), "MoveAbort")
}

func TestMoveCall_RPCErrorIsRemoteError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"error":{"code":-32602,"message":"Invalid params"}}`))
	}))
	defer srv.Close()

	c, err := New(srv.URL, "0xpkg", testKey(), "", 0)
	require.NoError(t, err)
	_, err = c.MoveCall(context.Background(), ports.MoveCall{Module: "treasury", Function: "deposit"})
	assert.ErrorIs(t, err, domain.ErrRemote)
}
