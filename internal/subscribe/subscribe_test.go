package subscribe

import (
	"encoding/json"
	"testing"
)

func TestSubscription_Message(t *testing.T) {
	tests := []struct {
		name string
		sub  Subscription
		want map[string]any
	}{
		{
			name: "host only",
			sub:  Subscription{Host: "rrc21"},
			want: map[string]any{"host": "rrc21", "moreSpecific": false, "lessSpecific": false},
		},
		{
			name: "all hosts omits filter",
			sub:  Subscription{Host: HostAll},
			want: map[string]any{"moreSpecific": false, "lessSpecific": false},
		},
		{
			name: "full filter set",
			sub: Subscription{
				Host:         "rrc00",
				Type:         "UPDATE",
				Require:      "announcements",
				Peer:         "192.0.2.1",
				Prefix:       "10.0.0.0/8",
				Path:         "13335",
				MoreSpecific: true,
			},
			want: map[string]any{
				"host": "rrc00", "type": "UPDATE", "require": "announcements",
				"peer": "192.0.2.1", "prefix": "10.0.0.0/8", "path": "13335",
				"moreSpecific": true, "lessSpecific": false,
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw, err := tt.sub.Message()
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			var msg struct {
				Type string         `json:"type"`
				Data map[string]any `json:"data"`
			}
			if err := json.Unmarshal(raw, &msg); err != nil {
				t.Fatalf("message is not valid JSON: %v", err)
			}
			if msg.Type != "ris_subscribe" {
				t.Errorf("type = %q, want ris_subscribe", msg.Type)
			}
			if len(msg.Data) != len(tt.want) {
				t.Errorf("data has %d keys, want %d: %v", len(msg.Data), len(tt.want), msg.Data)
			}
			for k, want := range tt.want {
				if got, ok := msg.Data[k]; !ok || got != want {
					t.Errorf("data[%q] = %v, want %v", k, got, want)
				}
			}
		})
	}
}

func TestPing(t *testing.T) {
	var msg map[string]string
	if err := json.Unmarshal(Ping(), &msg); err != nil {
		t.Fatalf("ping is not valid JSON: %v", err)
	}
	if msg["type"] != "ping" {
		t.Errorf("type = %q, want ping", msg["type"])
	}
}
