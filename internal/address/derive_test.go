package address

import (
	"encoding/hex"
	"strings"
	"testing"
)

func TestEpsilonReferenceVector(t *testing.T) {
	// near-mpc-recovery reference vector: account "canhazgas.testnet", empty path.
	got := Epsilon("canhazgas.testnet", "")
	want := "2f11aa32079bf3f96684143a68e66c47b83afd6fc721999989543ad1a16f948d"

	gotHex := hex.EncodeToString(got[:])
	wantTrimmed := strings.TrimPrefix(want, "0x")
	if len(wantTrimmed) == 66 {
		wantTrimmed = wantTrimmed[:64]
	}
	if gotHex != wantTrimmed && gotHex[:64] != wantTrimmed {
		t.Fatalf("Epsilon = %s, want %s", gotHex, wantTrimmed)
	}
}

func TestDeriveProducesTwentyByteAddress(t *testing.T) {
	// A syntactically valid uncompressed secp256k1 point (generator point G).
	basePub, err := hex.DecodeString(
		"0479be667ef9dcbbac55a06295ce870b07029bfcdb2dce28d959f2815b16f81798" +
			"483ada7726a3c4655da4fbfc0e1108a8fd17b448a68554199c47d08ffb10d4b8",
	)
	if err != nil {
		t.Fatalf("decode base pubkey: %v", err)
	}

	fa, err := Derive(basePub, "canhazgas.testnet", "ethereum,1")
	if err != nil {
		t.Fatalf("Derive: %v", err)
	}
	if len(fa.Bytes()) != 20 {
		t.Fatalf("address length = %d, want 20", len(fa.Bytes()))
	}
	if !strings.HasPrefix(fa.String(), "0x") {
		t.Fatalf("String() = %s, want 0x-prefixed", fa.String())
	}
}

func TestDeriveIsDeterministic(t *testing.T) {
	basePub, _ := hex.DecodeString(
		"0479be667ef9dcbbac55a06295ce870b07029bfcdb2dce28d959f2815b16f81798" +
			"483ada7726a3c4655da4fbfc0e1108a8fd17b448a68554199c47d08ffb10d4b8",
	)
	a1, err1 := Derive(basePub, "alice.testnet", "ethereum,0")
	a2, err2 := Derive(basePub, "alice.testnet", "ethereum,0")
	if err1 != nil || err2 != nil {
		t.Fatalf("Derive errors: %v %v", err1, err2)
	}
	if a1 != a2 {
		t.Fatalf("Derive not deterministic: %x != %x", a1, a2)
	}

	a3, err3 := Derive(basePub, "alice.testnet", "ethereum,1")
	if err3 != nil {
		t.Fatalf("Derive: %v", err3)
	}
	if a1 == a3 {
		t.Fatal("different paths produced the same address")
	}
}
