package document

import "testing"

func TestPermissionsBitsRoundTrip(t *testing.T) {
	cases := []Permissions{
		{},
		{Print: true},
		{Print: true, Copy: true, Assemble: true},
		AllPermissions(),
	}
	for _, p := range cases {
		if got := PermissionsFromBits(p.Bits()); got != p {
			t.Errorf("round trip mismatch: %+v -> %+v", p, got)
		}
	}
}

func TestPermissionsBitsReservedBitsSet(t *testing.T) {
	// Bits 13-32 must be 1 for the standard security handler.
	v := Permissions{}.Bits()
	if v&^int32(0xFFF) != ^int32(0xFFF) {
		t.Fatalf("upper bits not set: %#x", v)
	}
}

func TestHandleImmutability(t *testing.T) {
	meta := UniformMeta(3, A4, 1000)
	h := NewHandle(meta)

	// Mutating the source meta or a returned copy must not affect the handle.
	meta.Pages[0].Width = 1
	got := h.Meta()
	got.Pages[1].Height = 2

	fresh := h.Meta()
	if fresh.Pages[0].Width != A4.Width || fresh.Pages[1].Height != A4.Height {
		t.Fatalf("handle meta was mutated: %+v", fresh.Pages)
	}
}

func TestValidPage(t *testing.T) {
	m := UniformMeta(3, A4, 0)
	for _, tc := range []struct {
		page int
		want bool
	}{{0, false}, {1, true}, {3, true}, {4, false}, {-1, false}} {
		if got := m.ValidPage(tc.page); got != tc.want {
			t.Errorf("ValidPage(%d) = %v, want %v", tc.page, got, tc.want)
		}
	}
}

func TestNewIDUnique(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		id := NewID()
		if len(id) != 26 {
			t.Fatalf("unexpected ULID length: %q", id)
		}
		if seen[id] {
			t.Fatalf("duplicate id %s", id)
		}
		seen[id] = true
	}
}

func TestSecurityEncrypted(t *testing.T) {
	if (Security{}).Encrypted() {
		t.Error("empty security reported encrypted")
	}
	if !(Security{HasOwnerPassword: true}).Encrypted() {
		t.Error("owner password not reported as encrypted")
	}
}
