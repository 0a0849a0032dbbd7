package netaddr_test

import (
	"testing"

	"github.com/danfuzz/lactoserv-sub004/netaddr"
)

func TestParseHostHeader(t *testing.T) {
	cases := []struct {
		name      string
		raw       string
		localPort int
		strict    bool
		want      netaddr.HostInfo
		wantErr   bool
	}{
		{
			name:      "bracketed ipv6 with explicit port",
			raw:       "[2001:db8::1]:443",
			localPort: 8080,
			want:      netaddr.HostInfo{CanonicalName: "2001:db8::1", Port: 443, NameType: netaddr.NameIPv6},
		},
		{
			name:      "malformed host, safe variant falls back to localhost",
			raw:       "bad host",
			localPort: 8080,
			want:      netaddr.LocalhostInstance(8080),
		},
		{
			name:      "malformed host, strict variant errors",
			raw:       "bad host",
			localPort: 8080,
			strict:    true,
			wantErr:   true,
		},
		{
			name:      "dns name with port",
			raw:       "Example.COM:9000",
			localPort: 80,
			want:      netaddr.HostInfo{CanonicalName: "example.com", Port: 9000, NameType: netaddr.NameDNS},
		},
		{
			name:      "dns name without port uses local port",
			raw:       "example.com",
			localPort: 80,
			want:      netaddr.HostInfo{CanonicalName: "example.com", Port: 80, NameType: netaddr.NameDNS},
		},
		{
			name:      "ipv4 literal",
			raw:       "192.168.0.1:80",
			localPort: 80,
			want:      netaddr.HostInfo{CanonicalName: "192.168.0.1", Port: 80, NameType: netaddr.NameIPv4},
		},
		{
			name:      "bracketed wrapped v4-in-v6 literal is accepted as ipv6",
			raw:       "[::ffff:192.0.2.1]:443",
			localPort: 8080,
			want:      netaddr.HostInfo{CanonicalName: "::ffff:192.0.2.1", Port: 443, NameType: netaddr.NameIPv6},
		},
		{
			name:      "bare ipv4 dotted-decimal wrapped in brackets is rejected",
			raw:       "[192.0.2.1]:443",
			localPort: 8080,
			want:      netaddr.LocalhostInstance(8080),
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := netaddr.ParseHostHeader(tc.raw, tc.localPort, tc.strict)
			if tc.wantErr {
				if err == nil {
					t.Fatalf("expected error, got none")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tc.want {
				t.Fatalf("got %+v, want %+v", got, tc.want)
			}
		})
	}
}

func TestHostInfoNamePortString(t *testing.T) {
	h := netaddr.HostInfo{CanonicalName: "2001:db8::1", Port: 443, NameType: netaddr.NameIPv6}
	if got, want := h.NamePortString(), "[2001:db8::1]:443"; got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestHostInfoReversedPath(t *testing.T) {
	h := netaddr.HostInfo{CanonicalName: "www.example.com", NameType: netaddr.NameDNS}
	got := h.ReversedPath()
	want := []string{"com", "example", "www"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}
}
