package canonical

import (
	"fmt"
	"sync"

	"github.com/fxamacker/cbor/v2"
)

var (
	cborModeOnce sync.Once
	cborMode     cbor.EncMode
	cborModeErr  error
)

// cborEncMode lazily builds the canonical CBOR encode mode: deterministic
// map key ordering, definite-length encoding, and rejection of
// NaN/Infinity floats, matching spec §6's "canonical-CBOR of a
// deterministically-ordered struct (lexicographic keys, definite-length,
// no floating-point NaN/Infinity)".
func cborEncMode() (cbor.EncMode, error) {
	cborModeOnce.Do(func() {
		opts := cbor.CanonicalEncOptions()
		opts.NaNConvert = cbor.NaNConvertReject
		opts.InfConvert = cbor.InfConvertReject
		cborMode, cborModeErr = opts.EncMode()
	})
	return cborMode, cborModeErr
}

// CBOR encodes v in the core's canonical CBOR form.
func CBOR(v interface{}) ([]byte, error) {
	mode, err := cborEncMode()
	if err != nil {
		return nil, fmt.Errorf("canonical: cbor mode init failed: %w", err)
	}
	out, err := mode.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("canonical: cbor marshal failed: %w", err)
	}
	return out, nil
}

// DecodeCBOR decodes canonical CBOR bytes into v.
func DecodeCBOR(data []byte, v interface{}) error {
	if err := cbor.Unmarshal(data, v); err != nil {
		return fmt.Errorf("canonical: cbor unmarshal failed: %w", err)
	}
	return nil
}
