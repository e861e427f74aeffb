package decode

import (
	"encoding/json"
	"strconv"
	"strings"
)

// Segment is one AS path segment. A sequence segment is an ordered hop list;
// a set segment (Set true) is an unordered group of ASNs, usually the residue
// of route aggregation. The distinction must survive a decode/encode
// round-trip, so the path is kept as segments instead of a flat ASN list.
type Segment struct {
	Set  bool     `json:"set,omitempty"`
	ASNs []uint32 `json:"asns"`
}

// ASPath is an ordered list of path segments.
type ASPath []Segment

// MarshalJSON renders the path the way the feed does: sequence hops as plain
// numbers, set segments as nested arrays.
//
//	[{seq 1 2},{set 3 4},{seq 5}] -> [1,2,[3,4],5]
func (p ASPath) MarshalJSON() ([]byte, error) {
	out := make([]interface{}, 0, len(p))
	for _, seg := range p {
		if seg.Set {
			out = append(out, seg.ASNs)
			continue
		}
		for _, asn := range seg.ASNs {
			out = append(out, asn)
		}
	}
	return json.Marshal(out)
}

// UnmarshalJSON parses the feed's mixed number/array form. Consecutive plain
// numbers collapse into a single sequence segment; each nested array becomes
// one set segment at its position in the path.
func (p *ASPath) UnmarshalJSON(data []byte) error {
	var items []json.RawMessage
	if err := json.Unmarshal(data, &items); err != nil {
		return err
	}
	var (
		path ASPath
		seq  []uint32
	)
	flush := func() {
		if len(seq) > 0 {
			path = append(path, Segment{ASNs: seq})
			seq = nil
		}
	}
	for _, item := range items {
		var asn uint32
		if err := json.Unmarshal(item, &asn); err == nil {
			seq = append(seq, asn)
			continue
		}
		var set []uint32
		if err := json.Unmarshal(item, &set); err != nil {
			return err
		}
		flush()
		path = append(path, Segment{Set: true, ASNs: set})
	}
	flush()
	*p = path
	return nil
}

// String renders sequence hops space-separated and set segments in braces:
// "58299 49981 {397666,397667}".
func (p ASPath) String() string {
	var parts []string
	for _, seg := range p {
		if seg.Set {
			asns := make([]string, len(seg.ASNs))
			for i, a := range seg.ASNs {
				asns[i] = strconv.FormatUint(uint64(a), 10)
			}
			parts = append(parts, "{"+strings.Join(asns, ",")+"}")
			continue
		}
		for _, a := range seg.ASNs {
			parts = append(parts, strconv.FormatUint(uint64(a), 10))
		}
	}
	return strings.Join(parts, " ")
}

// Origins returns the ASNs that can have originated the route: the ASNs of
// the last segment (one for a sequence, all members for a set).
func (p ASPath) Origins() []uint32 {
	if len(p) == 0 {
		return nil
	}
	last := p[len(p)-1]
	if last.Set {
		return append([]uint32(nil), last.ASNs...)
	}
	if len(last.ASNs) == 0 {
		return nil
	}
	return []uint32{last.ASNs[len(last.ASNs)-1]}
}
