// Package document defines the immutable handle that the pipeline folds over:
// an opaque identity plus the derived metadata (page count, per-page geometry,
// security state) that rule validation needs. A transformation never mutates a
// handle; it produces a new one.
package document

import (
	"crypto/rand"
	"time"

	"github.com/oklog/ulid/v2"
)

// Permissions mirrors the standard security handler's permission set.
type Permissions struct {
	Print, Modify, Copy, ModifyAnnotations, FillForms, ExtractAccessible, Assemble, PrintHighQuality bool
}

// Bits encodes the permission set into the /P integer layout (bits 3-12,
// unused bits set per the standard security handler).
func (p Permissions) Bits() int32 {
	var v int32 = ^int32(0xFFF) | 0xC0
	if p.Print {
		v |= 1 << 2
	}
	if p.Modify {
		v |= 1 << 3
	}
	if p.Copy {
		v |= 1 << 4
	}
	if p.ModifyAnnotations {
		v |= 1 << 5
	}
	if p.FillForms {
		v |= 1 << 8
	}
	if p.ExtractAccessible {
		v |= 1 << 9
	}
	if p.Assemble {
		v |= 1 << 10
	}
	if p.PrintHighQuality {
		v |= 1 << 11
	}
	return v
}

// PermissionsFromBits decodes a /P integer.
func PermissionsFromBits(v int32) Permissions {
	return Permissions{
		Print:             v&(1<<2) != 0,
		Modify:            v&(1<<3) != 0,
		Copy:              v&(1<<4) != 0,
		ModifyAnnotations: v&(1<<5) != 0,
		FillForms:         v&(1<<8) != 0,
		ExtractAccessible: v&(1<<9) != 0,
		Assemble:          v&(1<<10) != 0,
		PrintHighQuality:  v&(1<<11) != 0,
	}
}

// AllPermissions grants everything; the default for unencrypted documents.
func AllPermissions() Permissions {
	return Permissions{
		Print: true, Modify: true, Copy: true, ModifyAnnotations: true,
		FillForms: true, ExtractAccessible: true, Assemble: true, PrintHighQuality: true,
	}
}

// PageSize is one page's media box extent in points.
type PageSize struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// A4 is the default size for blank pages when no reference page exists.
var A4 = PageSize{Width: 595, Height: 842}

// Security captures the password/permission state of a document.
type Security struct {
	HasUserPassword  bool        `json:"has_user_password"`
	HasOwnerPassword bool        `json:"has_owner_password"`
	Permissions      Permissions `json:"permissions"`
}

// Encrypted reports whether any password is set.
func (s Security) Encrypted() bool { return s.HasUserPassword || s.HasOwnerPassword }

// Meta is the derived metadata of a document version. Pages is indexed from 0
// while rule page references are 1-based.
type Meta struct {
	PageCount int
	Pages     []PageSize
	Security  Security
	ByteSize  int64
}

// ValidPage reports whether a 1-based page index refers to an existing page.
func (m Meta) ValidPage(n int) bool { return n >= 1 && n <= m.PageCount }

// Page returns the size of the 1-based page index. Out-of-range indices fall
// back to A4 so callers that already validated never need a second error path.
func (m Meta) Page(n int) PageSize {
	if n < 1 || n > len(m.Pages) {
		return A4
	}
	return m.Pages[n-1]
}

// Clone returns a deep copy; Meta carries a slice and handles must stay
// independent of later edits to the source value.
func (m Meta) Clone() Meta {
	out := m
	out.Pages = append([]PageSize(nil), m.Pages...)
	return out
}

// Handle is an opaque reference to one immutable document version.
type Handle struct {
	id   string
	meta Meta
}

// NewHandle mints a handle with a fresh ULID identity.
func NewHandle(meta Meta) Handle {
	return Handle{id: NewID(), meta: meta.Clone()}
}

// NewHandleWithID builds a handle for an externally assigned identity, e.g.
// when rehydrating from a store.
func NewHandleWithID(id string, meta Meta) Handle {
	return Handle{id: id, meta: meta.Clone()}
}

func (h Handle) ID() string { return h.id }

// Meta returns a copy of the handle's metadata.
func (h Handle) Meta() Meta { return h.meta.Clone() }

// IsZero reports whether the handle refers to nothing.
func (h Handle) IsZero() bool { return h.id == "" }

// NewID mints a ULID suitable for document, rule and artifact identities.
func NewID() string {
	entropy := ulid.Monotonic(rand.Reader, 0)
	return ulid.MustNew(ulid.Timestamp(time.Now()), entropy).String()
}

// UniformMeta builds metadata for a document whose pages all share one size.
func UniformMeta(pageCount int, size PageSize, byteSize int64) Meta {
	pages := make([]PageSize, pageCount)
	for i := range pages {
		pages[i] = size
	}
	return Meta{
		PageCount: pageCount,
		Pages:     pages,
		Security:  Security{Permissions: AllPermissions()},
		ByteSize:  byteSize,
	}
}
