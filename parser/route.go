package parser

import (
	"strings"

	"github.com/c360/netstreams/telemetry"
)

// route is the outcome of matching a path against the routing table.
type route struct {
	kind telemetry.Kind
	// family is "ipv4" or "ipv6" for address paths
	family string
}

// segments splits a dotted path, ignoring a leading dot and empty segments.
func segments(path string) []string {
	parts := strings.Split(path, ".")
	out := parts[:0]
	for _, p := range parts {
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// resolve maps a path to its entity kind.
//
//	node[.<name>]                                   -> node
//	node.*.interface[...]                           -> interface
//	node.*.interface.*.subinterface.(ipv4|ipv6).address[...] -> address
func resolve(path string) (route, bool) {
	segs := segments(path)
	if len(segs) == 0 || segs[0] != "node" {
		return route{}, false
	}

	ifaceAt := indexOf(segs, "interface", 1)
	if ifaceAt < 0 {
		if indexOf(segs, "subinterface", 1) >= 0 {
			return route{}, false
		}
		return route{kind: telemetry.KindNode}, true
	}

	subAt := indexOf(segs, "subinterface", ifaceAt+1)
	if subAt < 0 {
		return route{kind: telemetry.KindInterface}, true
	}

	if len(segs) < subAt+3 || segs[subAt+2] != "address" {
		return route{}, false
	}
	switch family := segs[subAt+1]; family {
	case "ipv4", "ipv6":
		return route{kind: telemetry.KindAddress, family: family}, true
	default:
		return route{}, false
	}
}

func indexOf(segs []string, want string, from int) int {
	for i := from; i < len(segs); i++ {
		if segs[i] == want {
			return i
		}
	}
	return -1
}
