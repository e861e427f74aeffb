// Package subscribe composes the client messages the feed expects: a
// ris_subscribe request built from independently optional filter criteria.
// Pure string/JSON composition, no I/O.
package subscribe

import "encoding/json"

// HostAll is the wildcard collector value. A subscription with HostAll (or an
// empty host) omits the host filter entirely and receives the firehose.
const HostAll = "all"

// Subscription holds the filter criteria for one ris_subscribe request.
// Zero-valued criteria are left out of the request so the feed applies no
// filter for them.
type Subscription struct {
	// Host limits the stream to one collector, e.g. "rrc21".
	Host string `json:"host,omitempty"`
	// Type limits to one message kind: UPDATE, OPEN, NOTIFICATION,
	// KEEPALIVE or RIS_PEER_STATE.
	Type string `json:"type,omitempty"`
	// Require drops messages missing the named key, e.g. "announcements".
	Require string `json:"require,omitempty"`
	// Peer limits to messages reported by one BGP peer address.
	Peer string `json:"peer,omitempty"`
	// Prefix limits UPDATE messages to those touching the given prefix.
	Prefix string `json:"prefix,omitempty"`
	// Path matches an ASN or regex-like pattern against the AS path.
	Path string `json:"path,omitempty"`
	// MoreSpecific also matches prefixes contained in Prefix.
	MoreSpecific bool `json:"moreSpecific"`
	// LessSpecific also matches prefixes containing Prefix.
	LessSpecific bool `json:"lessSpecific"`
}

type clientMessage struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// Message renders the complete ris_subscribe client message.
func (s Subscription) Message() ([]byte, error) {
	if s.Host == HostAll {
		s.Host = ""
	}
	return json.Marshal(clientMessage{Type: "ris_subscribe", Data: s})
}

// Ping renders the keepalive ping the feed answers with a pong envelope.
func Ping() []byte {
	return []byte(`{"type":"ping"}`)
}
