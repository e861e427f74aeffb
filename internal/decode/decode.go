// Package decode turns raw RIS Live JSON messages into typed routing
// elements. It is purely computational: no I/O, no logging, no state kept
// across calls, so Decode may be called concurrently on different messages.
//
// Decoding happens in two stages. DecodeEnvelope validates the outer
// {"type": ..., "data": {...}} shape and rejects anything that is not a
// ris_message. Expand dispatches on the inner BGP message kind and fans a
// single UPDATE out into one Element per announced or withdrawn prefix.
// Either the full element set implied by a message is returned, or a single
// *Error and no elements.
package decode

import (
	"encoding/json"
	"errors"
	"net/netip"
	"strconv"
	"strings"
)

// envelopeType tags the only outer message kind that carries BGP data. The
// feed also emits ris_error, ris_subscribe_ok and pong envelopes; those are
// reported as ErrUnsupportedEnvelope so callers can skip them.
const envelopeType = "ris_message"

// Message kinds of the inner payload, a closed set.
const (
	kindUpdate       = "UPDATE"
	kindOpen         = "OPEN"
	kindNotification = "NOTIFICATION"
	kindKeepalive    = "KEEPALIVE"
	kindPeerState    = "RIS_PEER_STATE"
)

// eorPrefix is the literal the feed places in a prefix list to mark the end
// of a peer's initial table dump.
const eorPrefix = "eor"

type envelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// payload is the inner ris_message body. Announcements and Withdrawals are
// pointers so that a key that is present-but-empty can be told apart from an
// absent one; that distinction is what identifies an end-of-RIB marker.
type payload struct {
	Timestamp *float64 `json:"timestamp"`
	Peer      string   `json:"peer"`
	PeerASN   string   `json:"peer_asn"`
	Host      string   `json:"host"`
	Type      string   `json:"type"`

	Path          json.RawMessage `json:"path"`
	Origin        string          `json:"origin"`
	Community     [][]uint32      `json:"community"`
	MED           *uint32         `json:"med"`
	LocalPref     *uint32         `json:"local_pref"`
	Aggregator    string          `json:"aggregator"`
	Announcements *[]announcement `json:"announcements"`
	Withdrawals   *[]string       `json:"withdrawals"`

	State string `json:"state"`
}

type announcement struct {
	NextHop  string   `json:"next_hop"`
	Prefixes []string `json:"prefixes"`
}

// Decode parses one complete feed message into routing elements. It is the
// composition of DecodeEnvelope and Expand.
func Decode(raw string) ([]Element, error) {
	data, err := DecodeEnvelope(raw)
	if err != nil {
		return nil, err
	}
	return Expand(data)
}

// DecodeEnvelope validates the outer message shape and returns the inner
// payload for Expand. It fails with KindMalformedJSON for text that is not a
// JSON object, KindUnsupportedEnvelope for control/status envelopes, and
// MissingField("data") for a ris_message without a body.
func DecodeEnvelope(raw string) (json.RawMessage, error) {
	var env envelope
	if err := json.Unmarshal([]byte(raw), &env); err != nil {
		return nil, malformed(truncate(raw))
	}
	if env.Type != envelopeType {
		return nil, &Error{Kind: KindUnsupportedEnvelope, Fragment: env.Type}
	}
	if len(env.Data) == 0 || string(env.Data) == "null" {
		return nil, missing("data")
	}
	return env.Data, nil
}

// Expand turns one inner payload into zero or more routing elements,
// dispatching on the message kind. OPEN, NOTIFICATION and KEEPALIVE carry no
// routing change and expand to nothing.
func Expand(data json.RawMessage) ([]Element, error) {
	var p payload
	if err := json.Unmarshal(data, &p); err != nil {
		var te *json.UnmarshalTypeError
		if errors.As(err, &te) && te.Field != "" {
			return nil, invalid(te.Field, te.Value)
		}
		return nil, malformed(truncate(string(data)))
	}

	base, err := p.common()
	if err != nil {
		return nil, err
	}

	switch p.Type {
	case "":
		return nil, missing("type")
	case kindUpdate:
		return p.expandUpdate(base)
	case kindOpen, kindNotification, kindKeepalive:
		return nil, nil
	case kindPeerState:
		return p.expandPeerState(base)
	default:
		return nil, &Error{Kind: KindUnknownMessageKind, Fragment: p.Type}
	}
}

// common validates the fields every message kind must carry and returns an
// element template holding them.
func (p *payload) common() (Element, error) {
	var e Element
	if p.Timestamp == nil {
		return e, missing("timestamp")
	}
	if p.Peer == "" {
		return e, missing("peer")
	}
	peer, err := netip.ParseAddr(p.Peer)
	if err != nil {
		return e, invalid("peer", p.Peer)
	}
	if p.PeerASN == "" {
		return e, missing("peer_asn")
	}
	asn, err := strconv.ParseUint(p.PeerASN, 10, 32)
	if err != nil {
		return e, invalid("peer_asn", p.PeerASN)
	}
	if p.Host == "" {
		return e, missing("host")
	}
	return Element{
		Timestamp: *p.Timestamp,
		Peer:      peer,
		PeerASN:   uint32(asn),
		Host:      p.Host,
	}, nil
}

// expandUpdate extracts the shared path attributes once, then emits one
// ANNOUNCE element per (group, prefix) pair in group-then-prefix order,
// followed by one WITHDRAW element per withdrawn prefix.
func (p *payload) expandUpdate(base Element) ([]Element, error) {
	if p.Announcements == nil && p.Withdrawals == nil {
		return nil, missing("announcements")
	}
	if p.Announcements != nil && p.Withdrawals != nil &&
		len(*p.Announcements) == 0 && len(*p.Withdrawals) == 0 {
		return nil, ErrEndOfRIB
	}

	var path ASPath
	if len(p.Path) > 0 && string(p.Path) != "null" {
		if err := json.Unmarshal(p.Path, &path); err != nil {
			return nil, invalid("path", truncate(string(p.Path)))
		}
	}

	var origin Origin
	if p.Origin != "" {
		o, ok := ParseOrigin(p.Origin)
		if !ok {
			return nil, invalid("origin", p.Origin)
		}
		origin = o
	}

	var comms []Community
	for _, c := range p.Community {
		if len(c) != 2 {
			return nil, invalid("community", truncate(uintsString(c)))
		}
		comms = append(comms, Community{ASN: c[0], Value: c[1]})
	}

	aggr, err := parseAggregator(p.Aggregator)
	if err != nil {
		return nil, err
	}

	var elems []Element
	if p.Announcements != nil {
		for _, a := range *p.Announcements {
			if a.NextHop == "" {
				return nil, missing("next_hop")
			}
			nextHop, err := netip.ParseAddr(a.NextHop)
			if err != nil {
				return nil, invalid("next_hop", a.NextHop)
			}
			for _, s := range a.Prefixes {
				prefix, err := parsePrefix(s, "prefix")
				if err != nil {
					return nil, err
				}
				e := base
				e.Type = TypeAnnounce
				e.Prefix = &prefix
				nh := nextHop
				e.NextHop = &nh
				e.ASPath = path
				e.Origin = origin
				e.Communities = comms
				e.MED = p.MED
				e.LocalPref = p.LocalPref
				e.Aggregator = aggr
				elems = append(elems, e)
			}
		}
	}
	if p.Withdrawals != nil {
		for _, s := range *p.Withdrawals {
			prefix, err := parsePrefix(s, "withdrawals")
			if err != nil {
				return nil, err
			}
			e := base
			e.Type = TypeWithdraw
			e.Prefix = &prefix
			elems = append(elems, e)
		}
	}
	return elems, nil
}

func (p *payload) expandPeerState(base Element) ([]Element, error) {
	switch p.State {
	case PeerStateConnected, PeerStateDown:
	default:
		return nil, invalid("state", p.State)
	}
	e := base
	e.Type = TypePeerState
	e.PeerState = p.State
	return []Element{e}, nil
}

func parsePrefix(s, field string) (netip.Prefix, error) {
	if s == eorPrefix {
		return netip.Prefix{}, ErrEndOfRIB
	}
	prefix, err := netip.ParsePrefix(s)
	if err != nil {
		return netip.Prefix{}, invalid(field, s)
	}
	return prefix, nil
}

// parseAggregator splits the feed's "ASN:address" form at the first colon,
// so IPv6 aggregator addresses keep their own colons intact.
func parseAggregator(s string) (*Aggregator, error) {
	if s == "" {
		return nil, nil
	}
	asnPart, addrPart, ok := strings.Cut(s, ":")
	if !ok {
		return nil, invalid("aggregator", s)
	}
	asn, err := strconv.ParseUint(asnPart, 10, 32)
	if err != nil {
		return nil, invalid("aggregator", s)
	}
	addr, err := netip.ParseAddr(addrPart)
	if err != nil {
		return nil, invalid("aggregator", s)
	}
	return &Aggregator{ASN: uint32(asn), Addr: addr}, nil
}

func uintsString(vs []uint32) string {
	parts := make([]string, len(vs))
	for i, v := range vs {
		parts[i] = strconv.FormatUint(uint64(v), 10)
	}
	return "[" + strings.Join(parts, " ") + "]"
}

func truncate(s string) string {
	const max = 96
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
