// Package address derives deterministic foreign-chain EVM addresses from an
// MPC base public key, a host account id, and a free-form derivation path,
// using the epsilon-offset scheme: eps = sha256-le(magic||account||","||path)
// reduced mod the secp256k1 group order, P_derived = G*eps + P, address =
// keccak256(uncompressed(P_derived)[1:])[12:].
package address

import (
	"crypto/sha256"
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// epsilonMagic is the protocol-version prefix. It must match bit-exactly;
// changing it silently breaks every previously derived address.
const epsilonMagic = "near-mpc-recovery v0.1.0 epsilon derivation:"

// Foreign is a 20-byte EVM-compatible address.
type Foreign [20]byte

// String renders the address as an EIP-55 checksummed hex string.
func (f Foreign) String() string {
	return common.BytesToAddress(f[:]).Hex()
}

// Bytes returns the raw 20-byte address.
func (f Foreign) Bytes() []byte { return f[:] }

// Epsilon computes the scalar derived from the account id and path: the
// sha256 digest read as a little-endian integer, returned in big-endian byte
// order. It is not reduced here; Derive reduces it mod the secp256k1 group
// order when loading it with ModNScalar.SetByteSlice.
func Epsilon(account, path string) [32]byte {
	preimage := epsilonMagic + account + "," + path
	sum := sha256.Sum256([]byte(preimage))

	var le [32]byte
	for i, b := range sum {
		le[31-i] = b
	}
	return le
}

// Derive computes the foreign address for the given MPC base public key
// (uncompressed, 65 bytes, 0x04 prefix), host account id, and derivation
// path.
func Derive(basePubKey []byte, account, path string) (Foreign, error) {
	parent, err := btcec.ParsePubKey(basePubKey)
	if err != nil {
		return Foreign{}, fmt.Errorf("parsing base public key: %w", err)
	}

	eps := Epsilon(account, path)

	var epsScalar btcec.ModNScalar
	epsScalar.SetByteSlice(eps[:])

	var epsPoint btcec.JacobianPoint
	btcec.ScalarBaseMultNonConst(&epsScalar, &epsPoint)

	var parentPoint btcec.JacobianPoint
	parent.AsJacobian(&parentPoint)

	var derivedPoint btcec.JacobianPoint
	btcec.AddNonConst(&epsPoint, &parentPoint, &derivedPoint)
	derivedPoint.ToAffine()

	derivedPub := btcec.NewPublicKey(&derivedPoint.X, &derivedPoint.Y)
	uncompressed := derivedPub.SerializeUncompressed()

	hash := crypto.Keccak256(uncompressed[1:])

	var out Foreign
	copy(out[:], hash[12:])
	return out, nil
}
