package storage

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

// Key schema. Every market is a handful of flat records:
//
//	mkt:<marketID>            → market descriptor and lifecycle
//	pool:<marketID>           → reserves, LP supply, collateral
//	fee:<marketID>            → creator/platform fee accumulator
//	stl:<marketID>            → settlement schedule (absent until settled)
//	pos:<marketID>:<address>  → one position
const (
	prefixMarket     = "mkt:"
	prefixPool       = "pool:"
	prefixFees       = "fee:"
	prefixSettlement = "stl:"
	prefixPosition   = "pos:"
)

func marketKey(id string) []byte     { return []byte(prefixMarket + id) }
func poolKey(id string) []byte       { return []byte(prefixPool + id) }
func feesKey(id string) []byte       { return []byte(prefixFees + id) }
func settlementKey(id string) []byte { return []byte(prefixSettlement + id) }

// positionKey returns the key for a position
// Format: "pos:{marketID}:{address}"
func positionKey(marketID string, addr common.Address) []byte {
	return []byte(fmt.Sprintf("%s%s:%s", prefixPosition, marketID, addr.Hex()))
}

// positionPrefix returns the prefix for all positions of a market
func positionPrefix(marketID string) []byte {
	return []byte(fmt.Sprintf("%s%s:", prefixPosition, marketID))
}

// keyUpperBound returns the exclusive upper bound for a prefix scan
func keyUpperBound(prefix []byte) []byte {
	bound := make([]byte, len(prefix))
	copy(bound, prefix)
	bound[len(bound)-1]++
	return bound
}
