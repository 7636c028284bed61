package wifi

import (
	"errors"
	"fmt"
)

var ErrUnknownRate = errors.New("unknow rate")

// PhyRate is the code of a fixed PHY transmit rate. The code is the rate's
// position in the rate table.
type PhyRate int

// PhyRateInvalid is returned for labels outside the rate table.
const PhyRateInvalid PhyRate = -1

// rateTable is ordered by rate code; L and S suffixes are long and short
// preamble/guard interval variants.
var rateTable = [...]string{
	"1ML", "2ML", "5.5ML", "11ML", "RSVD", "2MS", "5.5MS", "11MS",
	"48M", "24M", "12M", "6M", "54M", "36M", "18M", "9M",
	"MCS0L", "MCS1L", "MCS2L", "MCS3L", "MCS4L", "MCS5L", "MCS6L", "MCS7L",
	"MCS0S", "MCS1S", "MCS2S", "MCS3S", "MCS4S", "MCS5S", "MCS6S", "MCS7S",
}

// RateLabels returns the rate labels in code order.
func RateLabels() []string {
	out := make([]string, len(rateTable))
	copy(out, rateTable[:])
	return out
}

// LookupRate resolves a rate label. Matching is exact and case-sensitive.
func LookupRate(label string) (PhyRate, error) {
	for i, s := range rateTable {
		if s == label {
			return PhyRate(i), nil
		}
	}
	return PhyRateInvalid, fmt.Errorf("%w: %q", ErrUnknownRate, label)
}

func (r PhyRate) String() string {
	if r < 0 || int(r) >= len(rateTable) {
		return "invalid"
	}
	return rateTable[r]
}
