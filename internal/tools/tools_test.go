package tools

import (
	"context"
	"encoding/json"
	"math/big"
	"strings"
	"testing"

	"github.com/agentfriend/agentfriend/internal/wallet"
	"github.com/agentfriend/agentfriend/internal/weather"
)

type stubWeather struct {
	report *weather.Report
	err    error

	lastLocation string
}

func (s *stubWeather) Lookup(_ context.Context, location string) (*weather.Report, error) {
	s.lastLocation = location
	return s.report, s.err
}

type stubWallet struct {
	keypair    *wallet.Keypair
	genErr     error
	balance    *wallet.Balance
	balanceErr error
	txHash     string
	sendErr    error

	sentKey []byte
}

func (s *stubWallet) Generate() (*wallet.Keypair, error) {
	if s.genErr != nil {
		return nil, s.genErr
	}
	return &wallet.Keypair{
		Address:    s.keypair.Address,
		PrivateKey: append([]byte(nil), s.keypair.PrivateKey...),
	}, nil
}

func (s *stubWallet) BalanceOf(context.Context, string) (*wallet.Balance, error) {
	return s.balance, s.balanceErr
}

func (s *stubWallet) Send(_ context.Context, _, _ string, _ float64, key []byte) (string, error) {
	s.sentKey = append([]byte(nil), key...)
	return s.txHash, s.sendErr
}

const testAddr = "0x1111111111111111111111111111111111111111"

func newTestRegistry(t *testing.T) (*Registry, *stubWeather, *stubWallet, *wallet.Keyring) {
	t.Helper()
	w := &stubWeather{report: &weather.Report{
		Location:   "Tokyo",
		TempC:      22,
		Conditions: "Clear",
		Unit:       "C",
	}}
	wal := &stubWallet{
		keypair: &wallet.Keypair{Address: testAddr, PrivateKey: []byte{0xaa, 0xbb, 0xcc}},
		balance: &wallet.Balance{Wei: big.NewInt(2e18), Ether: "2.000000", ChainID: big.NewInt(11155111)},
		txHash:  "0xfeed",
	}
	keys := wallet.NewKeyring()
	return NewRegistry(w, wal, keys, nil), w, wal, keys
}

func TestDefinitions_Order(t *testing.T) {
	r, _, _, _ := newTestRegistry(t)
	defs := r.Definitions()
	want := []string{"weather_lookup", "current_time", "wallet_generate", "wallet_balance", "wallet_send"}
	if len(defs) != len(want) {
		t.Fatalf("got %d definitions, want %d", len(defs), len(want))
	}
	for i, name := range want {
		if defs[i].Name != name {
			t.Errorf("definition %d = %s, want %s", i, defs[i].Name, name)
		}
		if defs[i].InputSchema == nil {
			t.Errorf("definition %s has no input schema", name)
		}
	}
}

func TestDispatch_UnknownTool(t *testing.T) {
	r, _, _, _ := newTestRegistry(t)
	out := r.Dispatch(context.Background(), "nope", nil)
	if out.OK {
		t.Fatal("unknown tool should fail")
	}
	if out.Reason != ReasonUnknownTool {
		t.Errorf("reason = %s, want %s", out.Reason, ReasonUnknownTool)
	}
}

func TestDispatch_MissingRequiredArgument(t *testing.T) {
	r, _, _, _ := newTestRegistry(t)
	out := r.Dispatch(context.Background(), "weather_lookup", map[string]any{})
	if out.OK || out.Reason != ReasonInvalidArguments {
		t.Fatalf("got %+v, want invalid_arguments failure", out)
	}
	if !strings.Contains(out.Message, "location") {
		t.Errorf("message should name the missing argument, got %q", out.Message)
	}
}

func TestDispatch_WrongArgumentType(t *testing.T) {
	r, _, _, _ := newTestRegistry(t)
	out := r.Dispatch(context.Background(), "weather_lookup", map[string]any{"location": 42.0})
	if out.OK || out.Reason != ReasonInvalidArguments {
		t.Fatalf("got %+v, want invalid_arguments failure", out)
	}
}

func TestDispatch_ExtraArgumentsIgnored(t *testing.T) {
	r, _, _, _ := newTestRegistry(t)
	out := r.Dispatch(context.Background(), "weather_lookup", map[string]any{
		"location": "Tokyo",
		"units":    "metric",
	})
	if !out.OK {
		t.Fatalf("extra arguments should be ignored, got %+v", out)
	}
}

func TestWeatherLookup_Success(t *testing.T) {
	r, w, _, _ := newTestRegistry(t)
	out := r.Dispatch(context.Background(), "weather_lookup", map[string]any{"location": "Tokyo"})
	if !out.OK {
		t.Fatalf("got %+v", out)
	}
	if w.lastLocation != "Tokyo" {
		t.Errorf("backend saw location %q", w.lastLocation)
	}
	if out.Payload["conditions"] != "Clear" {
		t.Errorf("conditions = %v", out.Payload["conditions"])
	}
}

func TestWeatherLookup_LocationNotFound(t *testing.T) {
	r, w, _, _ := newTestRegistry(t)
	w.report = nil
	w.err = weather.ErrLocationNotFound

	out := r.Dispatch(context.Background(), "weather_lookup", map[string]any{"location": "Atlantis"})
	if out.OK || out.Reason != ReasonLocationNotFound {
		t.Fatalf("got %+v, want location_not_found failure", out)
	}
}

func TestWeatherLookup_UpstreamUnavailable(t *testing.T) {
	r, w, _, _ := newTestRegistry(t)
	w.report = nil
	w.err = weather.ErrUpstreamUnavailable

	out := r.Dispatch(context.Background(), "weather_lookup", map[string]any{"location": "Tokyo"})
	if out.OK || out.Reason != ReasonUpstreamUnavailable {
		t.Fatalf("got %+v, want upstream_unavailable failure", out)
	}
}

func TestCurrentTime_Local(t *testing.T) {
	r, _, _, _ := newTestRegistry(t)
	out := r.Dispatch(context.Background(), "current_time", map[string]any{})
	if !out.OK {
		t.Fatalf("got %+v", out)
	}
	if out.Payload["time"] == "" || out.Payload["timezone"] == "" {
		t.Errorf("payload incomplete: %+v", out.Payload)
	}
}

func TestCurrentTime_WithTimezone(t *testing.T) {
	r, _, _, _ := newTestRegistry(t)
	out := r.Dispatch(context.Background(), "current_time", map[string]any{"timezone": "UTC"})
	if !out.OK {
		t.Fatalf("got %+v", out)
	}
	if out.Payload["timezone"] != "UTC" {
		t.Errorf("timezone = %v, want UTC", out.Payload["timezone"])
	}
}

func TestCurrentTime_BadTimezone(t *testing.T) {
	r, _, _, _ := newTestRegistry(t)
	out := r.Dispatch(context.Background(), "current_time", map[string]any{"timezone": "Mars/Olympus"})
	if out.OK || out.Reason != ReasonInvalidArguments {
		t.Fatalf("got %+v, want invalid_arguments failure", out)
	}
}

func TestWalletGenerate_KeyStaysInKeyring(t *testing.T) {
	r, _, _, keys := newTestRegistry(t)
	out := r.Dispatch(context.Background(), "wallet_generate", map[string]any{})
	if !out.OK {
		t.Fatalf("got %+v", out)
	}
	if out.Payload["address"] != testAddr {
		t.Errorf("address = %v", out.Payload["address"])
	}

	// The outcome is persisted conversation history and must not carry
	// key material.
	encoded := out.Encode()
	if strings.Contains(strings.ToLower(encoded), "aabbcc") {
		t.Errorf("private key leaked into outcome: %s", encoded)
	}
	for k := range out.Payload {
		if strings.Contains(k, "key") {
			t.Errorf("payload carries key field %q", k)
		}
	}

	key, found := keys.Get(testAddr)
	if !found {
		t.Fatal("keyring should hold the new key")
	}
	if len(key) != 3 || key[0] != 0xaa {
		t.Errorf("keyring key = %x", key)
	}
}

func TestWalletGenerate_Failure(t *testing.T) {
	r, _, wal, _ := newTestRegistry(t)
	wal.genErr = wallet.ErrKeyGeneration

	out := r.Dispatch(context.Background(), "wallet_generate", map[string]any{})
	if out.OK || out.Reason != ReasonKeyGenerationFailed {
		t.Fatalf("got %+v, want key_generation_failed failure", out)
	}
}

func TestWalletBalance_Success(t *testing.T) {
	r, _, _, _ := newTestRegistry(t)
	out := r.Dispatch(context.Background(), "wallet_balance", map[string]any{"address": testAddr})
	if !out.OK {
		t.Fatalf("got %+v", out)
	}
	if out.Payload["balance"] != "2.000000" || out.Payload["unit"] != "ETH" {
		t.Errorf("payload = %+v", out.Payload)
	}
	if out.Payload["chain_id"] != "11155111" {
		t.Errorf("chain_id = %v", out.Payload["chain_id"])
	}
}

func TestWalletBalance_InvalidAddress(t *testing.T) {
	r, _, wal, _ := newTestRegistry(t)
	wal.balance = nil
	wal.balanceErr = wallet.ErrInvalidAddress

	out := r.Dispatch(context.Background(), "wallet_balance", map[string]any{"address": "not-an-address"})
	if out.OK || out.Reason != ReasonInvalidAddress {
		t.Fatalf("got %+v, want invalid_address failure", out)
	}
}

func TestWalletBalance_RPCUnavailable(t *testing.T) {
	r, _, wal, _ := newTestRegistry(t)
	wal.balance = nil
	wal.balanceErr = wallet.ErrRPCUnavailable

	out := r.Dispatch(context.Background(), "wallet_balance", map[string]any{"address": testAddr})
	if out.OK || out.Reason != ReasonRPCUnavailable {
		t.Fatalf("got %+v, want rpc_unavailable failure", out)
	}
}

func TestWalletSend_UsesKeyringKey(t *testing.T) {
	r, _, wal, keys := newTestRegistry(t)
	keys.Put(testAddr, []byte{0xaa, 0xbb, 0xcc})

	out := r.Dispatch(context.Background(), "wallet_send", map[string]any{
		"from":   testAddr,
		"to":     "0x2222222222222222222222222222222222222222",
		"amount": 0.25,
	})
	if !out.OK {
		t.Fatalf("got %+v", out)
	}
	if out.Payload["tx_hash"] != "0xfeed" {
		t.Errorf("tx_hash = %v", out.Payload["tx_hash"])
	}
	if len(wal.sentKey) != 3 || wal.sentKey[0] != 0xaa {
		t.Errorf("backend received key %x", wal.sentKey)
	}
}

func TestWalletSend_NoKeyForSender(t *testing.T) {
	r, _, _, _ := newTestRegistry(t)
	out := r.Dispatch(context.Background(), "wallet_send", map[string]any{
		"from":   testAddr,
		"to":     "0x2222222222222222222222222222222222222222",
		"amount": 0.25,
	})
	if out.OK || out.Reason != ReasonSigningFailed {
		t.Fatalf("got %+v, want signing_failed failure", out)
	}
	if !strings.Contains(out.Message, "session") {
		t.Errorf("message should mention the session keyring, got %q", out.Message)
	}
}

func TestWalletSend_NonPositiveAmount(t *testing.T) {
	r, _, _, keys := newTestRegistry(t)
	keys.Put(testAddr, []byte{0xaa})

	for _, amount := range []float64{0, -1} {
		out := r.Dispatch(context.Background(), "wallet_send", map[string]any{
			"from":   testAddr,
			"to":     "0x2222222222222222222222222222222222222222",
			"amount": amount,
		})
		if out.OK || out.Reason != ReasonInvalidArguments {
			t.Errorf("amount %v: got %+v, want invalid_arguments failure", amount, out)
		}
	}
}

func TestWalletSend_InsufficientFunds(t *testing.T) {
	r, _, wal, keys := newTestRegistry(t)
	keys.Put(testAddr, []byte{0xaa})
	wal.sendErr = wallet.ErrInsufficientFunds

	out := r.Dispatch(context.Background(), "wallet_send", map[string]any{
		"from":   testAddr,
		"to":     "0x2222222222222222222222222222222222222222",
		"amount": 100.0,
	})
	if out.OK || out.Reason != ReasonInsufficientFunds {
		t.Fatalf("got %+v, want insufficient_funds failure", out)
	}
}

func TestOutcome_EncodeRoundtrip(t *testing.T) {
	out := Success(map[string]any{"x": "y"})
	var decoded Outcome
	if err := json.Unmarshal([]byte(out.Encode()), &decoded); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !decoded.OK || decoded.Payload["x"] != "y" {
		t.Errorf("roundtrip mismatch: %+v", decoded)
	}

	fail := Failure(ReasonUnknownTool, "no tool named %q", "x")
	if err := json.Unmarshal([]byte(fail.Encode()), &decoded); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if decoded.OK || decoded.Reason != ReasonUnknownTool {
		t.Errorf("roundtrip mismatch: %+v", decoded)
	}
}

func TestValidateArgs(t *testing.T) {
	schema := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"name":  map[string]any{"type": "string"},
			"count": map[string]any{"type": "number"},
			"flag":  map[string]any{"type": "boolean"},
		},
		"required": []string{"name"},
	}

	tests := []struct {
		name   string
		args   map[string]any
		wantOK bool
	}{
		{"all valid", map[string]any{"name": "a", "count": 1.0, "flag": true}, true},
		{"required only", map[string]any{"name": "a"}, true},
		{"missing required", map[string]any{"count": 1.0}, false},
		{"wrong string type", map[string]any{"name": 1.0}, false},
		{"wrong number type", map[string]any{"name": "a", "count": "five"}, false},
		{"wrong bool type", map[string]any{"name": "a", "flag": "yes"}, false},
		{"int for number", map[string]any{"name": "a", "count": 3}, true},
		{"unknown arg ignored", map[string]any{"name": "a", "other": struct{}{}}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg := validateArgs(schema, tt.args)
			if (msg == "") != tt.wantOK {
				t.Errorf("validateArgs = %q, wantOK %v", msg, tt.wantOK)
			}
		})
	}
}
