package transport

import (
	"fmt"
	"strings"
)

// WriteConsistency is the number of shard copies a write waits for. The byte values are the ids
// the cluster uses on the wire.
type WriteConsistency byte

const (
	ConsistencyDefault WriteConsistency = 0
	ConsistencyOne     WriteConsistency = 1
	ConsistencyQuorum  WriteConsistency = 2
	ConsistencyAll     WriteConsistency = 3
)

func (c WriteConsistency) ID() byte {
	return byte(c)
}

func (c WriteConsistency) String() string {
	switch c {
	case ConsistencyDefault:
		return "default"
	case ConsistencyOne:
		return "one"
	case ConsistencyQuorum:
		return "quorum"
	case ConsistencyAll:
		return "all"
	default:
		return fmt.Sprintf("unknown(%d)", byte(c))
	}
}

// WaitForActiveShards maps the level onto the REST parameter of the same purpose. Quorum has no
// REST equivalent on current clusters and, like default, leaves the parameter unset.
func (c WriteConsistency) WaitForActiveShards() string {
	switch c {
	case ConsistencyOne:
		return "1"
	case ConsistencyAll:
		return "all"
	default:
		return ""
	}
}

func ConsistencyFromID(id byte) (WriteConsistency, error) {
	c := WriteConsistency(id)
	switch c {
	case ConsistencyDefault, ConsistencyOne, ConsistencyQuorum, ConsistencyAll:
		return c, nil
	default:
		return 0, fmt.Errorf("no write consistency match [%d]", id)
	}
}

func ParseConsistency(s string) (WriteConsistency, error) {
	switch strings.ToLower(s) {
	case "", "default":
		return ConsistencyDefault, nil
	case "one":
		return ConsistencyOne, nil
	case "quorum":
		return ConsistencyQuorum, nil
	case "all":
		return ConsistencyAll, nil
	default:
		return 0, fmt.Errorf("no write consistency match [%s]", s)
	}
}
