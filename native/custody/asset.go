package custody

import (
	"encoding/hex"
	"fmt"
	"strings"
)

// Asset is the canonical identifier used for every ledger lookup. External
// fungible assets are keyed by their lower-case 0x-prefixed address while the
// native settlement asset collapses to AssetNative regardless of which alias
// the caller supplied.
type Asset string

// AssetNative is the sentinel identifier for the native settlement asset.
const AssetNative Asset = "NATIVE"

const assetAddressHexLength = 40

var zeroAddressHex = strings.Repeat("0", assetAddressHexLength)

// NormalizeAsset resolves caller-supplied asset aliases to the canonical
// identifier. The empty string, the symbolic "native" alias, and the zero
// address all map to AssetNative; anything else must be a 20-byte hex address.
// Normalisation runs at every entry point so internal storage never sees more
// than one key per real asset.
func NormalizeAsset(asset string) (Asset, error) {
	trimmed := strings.TrimSpace(asset)
	if trimmed == "" || strings.EqualFold(trimmed, string(AssetNative)) {
		return AssetNative, nil
	}
	hexPart := trimmed
	if strings.HasPrefix(hexPart, "0x") || strings.HasPrefix(hexPart, "0X") {
		hexPart = hexPart[2:]
	}
	if len(hexPart) != assetAddressHexLength {
		return "", fmt.Errorf("custody: asset must be a 20-byte address (got %d hex chars)", len(hexPart))
	}
	if _, err := hex.DecodeString(hexPart); err != nil {
		return "", fmt.Errorf("custody: decode asset address: %w", err)
	}
	lowered := strings.ToLower(hexPart)
	if lowered == zeroAddressHex {
		return AssetNative, nil
	}
	return Asset("0x" + lowered), nil
}

// IsNative reports whether the canonical identifier denotes the settlement
// asset.
func (a Asset) IsNative() bool {
	return a == AssetNative
}

// ParseAddress normalises and validates an account address expressed as a hex
// string. The returned array always contains the raw 20-byte address.
func ParseAddress(value string) ([20]byte, error) {
	var addr [20]byte
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return addr, fmt.Errorf("custody: address required")
	}
	if strings.HasPrefix(trimmed, "0x") || strings.HasPrefix(trimmed, "0X") {
		trimmed = trimmed[2:]
	}
	if len(trimmed) != assetAddressHexLength {
		return addr, fmt.Errorf("custody: address must be 20 bytes (got %d hex chars)", len(trimmed))
	}
	decoded, err := hex.DecodeString(trimmed)
	if err != nil {
		return addr, fmt.Errorf("custody: decode address: %w", err)
	}
	copy(addr[:], decoded)
	return addr, nil
}
