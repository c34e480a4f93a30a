package ipaddr

import "testing"

func TestFromStringRoundTrip(t *testing.T) {
	t.Parallel()

	cases := []string{
		"127.0.0.1",
		"10.0.0.5",
		"255.255.255.255",
		"::1",
		"fe80::1",
		"2001:db8::1",
		"169.254.1.1",
	}
	for _, s := range cases {
		s := s
		t.Run(s, func(t *testing.T) {
			t.Parallel()
			a := FromString(s)
			if !a.IsValid() {
				t.Fatalf("FromString(%q) produced the unspecified address", s)
			}
			got := a.String()
			b := FromString(got)
			if !a.Equal(b) {
				t.Errorf("round trip mismatch: %q -> %q -> %v", s, got, b)
			}
		})
	}
}

func TestFromStringGarbage(t *testing.T) {
	t.Parallel()

	for _, s := range []string{"", "not-an-ip", "999.999.999.999", "gggg::1"} {
		if a := FromString(s); a.IsValid() {
			t.Errorf("FromString(%q) = %v, want unspecified", s, a)
		}
	}
}

func TestPredicates(t *testing.T) {
	t.Parallel()

	tests := []struct {
		addr      string
		loopback  bool
		multicast bool
		linkLocal bool
		uniqueLoc bool
		broadcast bool
		mappedV4  bool
		docs      bool
	}{
		{addr: "127.0.0.1", loopback: true},
		{addr: "::1", loopback: true},
		{addr: "224.0.0.1", multicast: true},
		{addr: "ff02::1", multicast: true},
		{addr: "169.254.1.1", linkLocal: true},
		{addr: "fe80::1", linkLocal: true},
		{addr: "fc00::1", uniqueLoc: true},
		{addr: "255.255.255.255", broadcast: true},
		{addr: "::ffff:10.0.0.1", mappedV4: true},
		{addr: "192.0.2.5", docs: true},
		{addr: "198.51.100.5", docs: true},
		{addr: "203.0.113.5", docs: true},
		{addr: "8.8.8.8"},
	}
	for _, tc := range tests {
		tc := tc
		t.Run(tc.addr, func(t *testing.T) {
			t.Parallel()
			a := FromString(tc.addr)
			if got := a.IsLoopback(); got != tc.loopback {
				t.Errorf("IsLoopback() = %v, want %v", got, tc.loopback)
			}
			if got := a.IsMulticast(); got != tc.multicast {
				t.Errorf("IsMulticast() = %v, want %v", got, tc.multicast)
			}
			if got := a.IsLinkLocal(); got != tc.linkLocal {
				t.Errorf("IsLinkLocal() = %v, want %v", got, tc.linkLocal)
			}
			if got := a.IsUniqueLocal(); got != tc.uniqueLoc {
				t.Errorf("IsUniqueLocal() = %v, want %v", got, tc.uniqueLoc)
			}
			if got := a.IsBroadcast(); got != tc.broadcast {
				t.Errorf("IsBroadcast() = %v, want %v", got, tc.broadcast)
			}
			if got := a.IsV4MappedV6(); got != tc.mappedV4 {
				t.Errorf("IsV4MappedV6() = %v, want %v", got, tc.mappedV4)
			}
			if got := a.IsDocumentation(); got != tc.docs {
				t.Errorf("IsDocumentation() = %v, want %v", got, tc.docs)
			}
		})
	}
}

func TestEqualIgnoresV4MappedForm(t *testing.T) {
	t.Parallel()

	bare := FromString("10.0.0.1")
	mapped := FromString("::ffff:10.0.0.1")
	if !bare.Equal(mapped) {
		t.Errorf("bare v4 and its v4-mapped-v6 form should compare equal")
	}
	if mapped.Family() != V6 {
		t.Errorf("mapped address should retain V6 storage, got %v", mapped.Family())
	}
}

func TestCompareOrdering(t *testing.T) {
	t.Parallel()

	unspec := Addr{}
	v4 := FromString("10.0.0.1")
	v6 := FromString("::1")

	if unspec.Compare(v4) >= 0 {
		t.Error("unspecified should sort before v4")
	}
	if v4.Compare(v6) >= 0 {
		t.Error("v4 should sort before v6")
	}
	lo := FromString("10.0.0.1")
	hi := FromString("10.0.0.2")
	if lo.Compare(hi) >= 0 {
		t.Error("lower byte value should sort first within family")
	}
}
