package netaddr_test

import (
	"testing"

	"github.com/danfuzz/lactoserv-sub004/netaddr"
)

func TestParseInterfaceString(t *testing.T) {
	cases := []struct {
		name    string
		raw     string
		want    netaddr.InterfaceAddress
		wantErr bool
	}{
		{
			name: "fd with port",
			raw:  "/dev/fd/3:80",
			want: netaddr.InterfaceAddress{FD: 3, HasFD: true, Port: 80},
		},
		{
			name: "fd without port",
			raw:  "/dev/fd/3",
			want: netaddr.InterfaceAddress{FD: 3, HasFD: true},
		},
		{
			name: "bracketed ipv6",
			raw:  "[::1]:8080",
			want: netaddr.InterfaceAddress{Address: "::1", Port: 8080},
		},
		{
			name:    "unbracketed ipv6 rejected",
			raw:     "::1:8080",
			wantErr: true,
		},
		{
			name: "wildcard",
			raw:  "*:443",
			want: netaddr.InterfaceAddress{Address: "*", Port: 443},
		},
		{
			name: "ipv4",
			raw:  "127.0.0.1:8080",
			want: netaddr.InterfaceAddress{Address: "127.0.0.1", Port: 8080},
		},
		{
			name: "hostname",
			raw:  "Example.com:8080",
			want: netaddr.InterfaceAddress{Address: "example.com", Port: 8080},
		},
		{
			name:    "bare wildcard without port rejected",
			raw:     "*",
			wantErr: true,
		},
		{
			name:    "out of range port rejected",
			raw:     "127.0.0.1:70000",
			wantErr: true,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := netaddr.ParseInterfaceString(tc.raw)
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
