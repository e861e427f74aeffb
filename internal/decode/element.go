package decode

import (
	"fmt"
	"net/netip"
	"strconv"
	"strings"
)

// ElemType is the kind of routing event an Element records.
type ElemType string

const (
	TypeAnnounce  ElemType = "ANNOUNCE"
	TypeWithdraw  ElemType = "WITHDRAW"
	TypePeerState ElemType = "PEER_STATE"
)

// Origin is the BGP ORIGIN attribute.
type Origin string

const (
	OriginIGP        Origin = "IGP"
	OriginEGP        Origin = "EGP"
	OriginIncomplete Origin = "INCOMPLETE"
)

// ParseOrigin maps a feed origin token, case-insensitively, onto the closed
// set of ORIGIN values.
func ParseOrigin(s string) (Origin, bool) {
	switch strings.ToUpper(s) {
	case "IGP":
		return OriginIGP, true
	case "EGP":
		return OriginEGP, true
	case "INCOMPLETE":
		return OriginIncomplete, true
	default:
		return "", false
	}
}

// Community is one standard BGP community as the feed reports it: an ASN and
// a 16-bit local value. Order within an element's community set carries no
// meaning.
type Community struct {
	ASN   uint32 `json:"asn"`
	Value uint32 `json:"value"`
}

// Aggregator is the AGGREGATOR attribute: the ASN and address of the router
// that aggregated the route.
type Aggregator struct {
	ASN  uint32     `json:"asn"`
	Addr netip.Addr `json:"addr"`
}

// PeerState values the feed reports for RIS_PEER_STATE messages.
const (
	PeerStateConnected = "connected"
	PeerStateDown      = "down"
)

// Element is one observed routing event, the unit of output of this package.
// Fields that are not meaningful for the element's Type are nil or empty and
// are omitted from JSON output.
type Element struct {
	Type      ElemType   `json:"type"`
	Timestamp float64    `json:"timestamp"`
	Peer      netip.Addr `json:"peer"`
	PeerASN   uint32     `json:"peer_asn"`
	Host      string     `json:"host"`

	Prefix      *netip.Prefix `json:"prefix,omitempty"`
	NextHop     *netip.Addr   `json:"next_hop,omitempty"`
	ASPath      ASPath        `json:"as_path,omitempty"`
	Origin      Origin        `json:"origin,omitempty"`
	Communities []Community   `json:"communities,omitempty"`
	MED         *uint32       `json:"med,omitempty"`
	LocalPref   *uint32       `json:"local_pref,omitempty"`
	Aggregator  *Aggregator   `json:"aggregator,omitempty"`

	PeerState string `json:"peer_state,omitempty"`
}

// String renders the element as one pipe-separated line:
//
//	A|1636247118.76|2001:7f8:24::82|58299|rrc20|2602:fd9e:f00::/40|58299 49981 397666|IGP|2001:7f8:24::82
//
// Withdrawals carry only the prefix; peer-state changes carry the new state.
func (e Element) String() string {
	var b strings.Builder
	switch e.Type {
	case TypeAnnounce:
		b.WriteString("A")
	case TypeWithdraw:
		b.WriteString("W")
	case TypePeerState:
		b.WriteString("S")
	}
	sep := func(s string) {
		b.WriteByte('|')
		b.WriteString(s)
	}
	sep(strconv.FormatFloat(e.Timestamp, 'f', -1, 64))
	sep(e.Peer.String())
	sep(strconv.FormatUint(uint64(e.PeerASN), 10))
	sep(e.Host)

	switch e.Type {
	case TypePeerState:
		sep(e.PeerState)
	case TypeWithdraw:
		sep(e.Prefix.String())
	case TypeAnnounce:
		sep(e.Prefix.String())
		sep(e.ASPath.String())
		sep(string(e.Origin))
		sep(e.NextHop.String())
		if e.MED != nil {
			sep(strconv.FormatUint(uint64(*e.MED), 10))
		} else {
			sep("")
		}
		if e.LocalPref != nil {
			sep(strconv.FormatUint(uint64(*e.LocalPref), 10))
		} else {
			sep("")
		}
		sep(communitiesString(e.Communities))
		if e.Aggregator != nil {
			sep(fmt.Sprintf("%d:%s", e.Aggregator.ASN, e.Aggregator.Addr))
		} else {
			sep("")
		}
	}
	return b.String()
}

func communitiesString(cs []Community) string {
	if len(cs) == 0 {
		return ""
	}
	parts := make([]string, len(cs))
	for i, c := range cs {
		parts[i] = fmt.Sprintf("%d:%d", c.ASN, c.Value)
	}
	return strings.Join(parts, " ")
}
