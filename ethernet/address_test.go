package ethernet

import "testing"

func TestIsZero(t *testing.T) {
	t.Parallel()

	var zero Addr
	if !zero.IsZero() {
		t.Error("zero value should be IsZero")
	}
	nonZero := FromBytes([]byte{0, 0, 0, 0, 0, 1})
	if nonZero.IsZero() {
		t.Error("01 in last octet should not be IsZero")
	}
}

func TestIsBroadcast(t *testing.T) {
	t.Parallel()

	bcast := FromBytes([]byte{0xff, 0xff, 0xff, 0xff, 0xff, 0xff})
	if !bcast.IsBroadcast() {
		t.Error("all-ff address should be IsBroadcast")
	}
	var zero Addr
	if zero.IsBroadcast() {
		t.Error("zero address should not be IsBroadcast")
	}
}

func TestFromBytesWrongLength(t *testing.T) {
	t.Parallel()

	a := FromBytes([]byte{1, 2, 3})
	if !a.IsZero() {
		t.Errorf("FromBytes with wrong length should yield zero address, got %v", a)
	}
}

func TestString(t *testing.T) {
	t.Parallel()

	a := FromBytes([]byte{0x00, 0x1b, 0x21, 0xaa, 0xbb, 0xcc})
	want := "00:1b:21:aa:bb:cc"
	if got := a.String(); got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
}
