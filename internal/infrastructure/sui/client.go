// Package sui submits Move calls to a Sui full node over JSON-RPC and signs
// them with the marketplace's ed25519 key.
package sui

import (
	"context"
	"crypto/ed25519"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/tidwall/gjson"
	"golang.org/x/crypto/blake2b"

	"github.com/suiichiba/marketplace/internal/core/domain"
	"github.com/suiichiba/marketplace/internal/core/ports"
	"github.com/suiichiba/marketplace/internal/infrastructure/httpclient"
)

const (
	flagEd25519      = 0x00
	txStatusSuccess  = "success"
	requestTypeLocal = "WaitForLocalExecution"
)

// transactionIntent prefixes transaction bytes before hashing: scope
// TransactionData, version V0, app id Sui.
var transactionIntent = []byte{0, 0, 0}

var ErrInvalidKey = errors.New("sui: invalid private key")

// Client implements ports.ChainClient.
type Client struct {
	http      *httpclient.Client
	packageID string
	gasObject string
	key       ed25519.PrivateKey
	address   string
	seq       atomic.Uint64
}

// New parses privateKey (base64 or hex, with or without the leading scheme
// flag byte) and returns a client for the given package.
func New(rpcURL, packageID, privateKey, gasObject string, timeout time.Duration) (*Client, error) {
	key, err := ParsePrivateKey(privateKey)
	if err != nil {
		return nil, err
	}
	c := &Client{
		http:      httpclient.New(rpcURL, timeout),
		packageID: packageID,
		gasObject: gasObject,
		key:       key,
	}
	c.address = AddressOf(key.Public().(ed25519.PublicKey))
	return c, nil
}

func ParsePrivateKey(s string) (ed25519.PrivateKey, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, ErrInvalidKey
	}
	raw, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		raw, err = hex.DecodeString(strings.TrimPrefix(s, "0x"))
		if err != nil {
			return nil, ErrInvalidKey
		}
	}
	switch {
	case len(raw) == ed25519.SeedSize+1 && raw[0] == flagEd25519:
		raw = raw[1:]
	case len(raw) != ed25519.SeedSize:
		return nil, ErrInvalidKey
	}
	return ed25519.NewKeyFromSeed(raw), nil
}

// AddressOf derives the Sui address of an ed25519 public key:
// blake2b-256(flag || pubkey), hex encoded.
func AddressOf(pub ed25519.PublicKey) string {
	buf := make([]byte, 0, 1+len(pub))
	buf = append(buf, flagEd25519)
	buf = append(buf, pub...)
	sum := blake2b.Sum256(buf)
	return "0x" + hex.EncodeToString(sum[:])
}

func (c *Client) Address() string { return c.address }

// MoveCall builds the transaction on the node, signs it locally and executes
// it, waiting for local execution on the node.
func (c *Client) MoveCall(ctx context.Context, call ports.MoveCall) (*ports.TxResult, error) {
	var gas any
	if c.gasObject != "" {
		gas = c.gasObject
	}
	built, err := c.rpc(ctx, "unsafe_moveCall", []any{
		c.address,
		c.packageID,
		call.Module,
		call.Function,
		[]string{},
		encodeArgs(call.Arguments),
		gas,
		strconv.FormatUint(call.GasBudget, 10),
	})
	if err != nil {
		return nil, err
	}
	txBytes := built.Get("txBytes").String()
	if txBytes == "" {
		return nil, fmt.Errorf("sui %s::%s: %w: node returned no transaction bytes", call.Module, call.Function, domain.ErrRemote)
	}

	sig, err := c.Sign(txBytes)
	if err != nil {
		return nil, err
	}

	executed, err := c.rpc(ctx, "sui_executeTransactionBlock", []any{
		txBytes,
		[]string{sig},
		map[string]bool{"showEffects": true},
		requestTypeLocal,
	})
	if err != nil {
		return nil, err
	}

	res := &ports.TxResult{
		Digest: executed.Get("digest").String(),
		Status: executed.Get("effects.status.status").String(),
	}
	if res.Status != txStatusSuccess {
		reason := executed.Get("effects.status.error").String()
		return nil, fmt.Errorf("sui %s::%s: %w: transaction %s %s: %s",
			call.Module, call.Function, domain.ErrRemote, res.Digest, res.Status, reason)
	}
	return res, nil
}

// Sign returns the serialized signature of base64 transaction bytes:
// flag || ed25519(blake2b-256(intent || tx)) || pubkey, base64 encoded.
func (c *Client) Sign(txBytesB64 string) (string, error) {
	tx, err := base64.StdEncoding.DecodeString(txBytesB64)
	if err != nil {
		return "", fmt.Errorf("sui sign: decode tx bytes: %w", err)
	}
	msg := make([]byte, 0, len(transactionIntent)+len(tx))
	msg = append(msg, transactionIntent...)
	msg = append(msg, tx...)
	digest := blake2b.Sum256(msg)

	pub := c.key.Public().(ed25519.PublicKey)
	out := make([]byte, 0, 1+ed25519.SignatureSize+len(pub))
	out = append(out, flagEd25519)
	out = append(out, ed25519.Sign(c.key, digest[:])...)
	out = append(out, pub...)
	return base64.StdEncoding.EncodeToString(out), nil
}

type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      uint64 `json:"id"`
	Method  string `json:"method"`
	Params  []any  `json:"params"`
}

func (c *Client) rpc(ctx context.Context, method string, params []any) (gjson.Result, error) {
	resp, err := c.http.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(rpcRequest{JSONRPC: "2.0", ID: c.seq.Add(1), Method: method, Params: params}).
		Post("")
	if err := httpclient.CheckResponse("sui "+method, resp, err); err != nil {
		return gjson.Result{}, err
	}
	body := resp.Body()
	if e := gjson.GetBytes(body, "error"); e.Exists() {
		return gjson.Result{}, fmt.Errorf("sui %s: %w: %s (code %d)",
			method, domain.ErrRemote, e.Get("message").String(), e.Get("code").Int())
	}
	return gjson.GetBytes(body, "result"), nil
}

// encodeArgs renders u64 values as decimal strings, the node's encoding for
// integers that may exceed 2^53.
func encodeArgs(args []any) []any {
	out := make([]any, len(args))
	for i, a := range args {
		switch v := a.(type) {
		case uint64:
			out[i] = strconv.FormatUint(v, 10)
		case int64:
			out[i] = strconv.FormatInt(v, 10)
		case int:
			out[i] = strconv.Itoa(v)
		default:
			out[i] = v
		}
	}
	return out
}
