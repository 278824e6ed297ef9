// Package memo encodes THORChain swap memos.
package memo

import (
	"strings"

	"multiswap/pkg/swapper"
)

const (
	// MaxLength is the longest memo the inbound chains accept
	MaxLength = 80
	// MaxAbbreviation is how many contract characters may be dropped
	// while the pool id still resolves uniquely.
	MaxAbbreviation = 39

	ActionSwap = "s"

	DefaultAffiliate    = "ss"
	DefaultAffiliateBps = "0"

	bchPrefix = "bitcoincash:"
)

// SwapMemo holds the fields of a swap memo
type SwapMemo struct {
	Action             string
	PoolID             string
	DestinationAddress string
	Limit              string
	Affiliate          string
	AffiliateBps       string
}

// String renders the memo without any abbreviation
func (m SwapMemo) String() string {
	action := m.Action
	if action == "" {
		action = ActionSwap
	}
	affiliate := m.Affiliate
	if affiliate == "" {
		affiliate = DefaultAffiliate
	}
	bps := m.AffiliateBps
	if bps == "" {
		bps = DefaultAffiliateBps
	}
	return strings.Join([]string{action, m.PoolID, StripAddressPrefix(m.DestinationAddress), m.Limit, affiliate, bps}, ":")
}

// Encode renders the memo, shortening the pool id's contract part when the
// memo is longer than MaxLength.
func Encode(m SwapMemo) (string, error) {
	if m.PoolID == "" || m.DestinationAddress == "" || m.Limit == "" {
		return "", swapper.NewError(swapper.KindMakeMemoFailed, "pool id, destination and limit are required")
	}

	full := m.String()
	excess := len(full) - MaxLength
	if excess <= 0 {
		return full, nil
	}
	if excess > MaxAbbreviation {
		return "", swapper.NewError(swapper.KindMakeMemoFailed,
			"memo needs %d characters removed, at most %d allowed", excess, MaxAbbreviation)
	}

	poolID, err := Abbreviate(m.PoolID, excess)
	if err != nil {
		return "", err
	}
	m.PoolID = poolID
	return m.String(), nil
}

// Abbreviate removes n characters immediately after the first '-' of poolID.
func Abbreviate(poolID string, n int) (string, error) {
	idx := strings.Index(poolID, "-")
	if idx < 0 {
		return "", swapper.NewError(swapper.KindMakeMemoFailed, "pool id %s has no delimiter to abbreviate", poolID)
	}
	start := idx + 1
	if n > MaxAbbreviation || start+n > len(poolID) {
		return "", swapper.NewError(swapper.KindMakeMemoFailed, "cannot remove %d characters from %s", n, poolID)
	}
	return poolID[:start] + poolID[start+n:], nil
}

// StripAddressPrefix drops the bitcoincash: scheme the memo format does not accept.
func StripAddressPrefix(address string) string {
	return strings.TrimPrefix(address, bchPrefix)
}
