package rules

import (
	"strings"

	"github.com/wudi/pdfstudio/document"
)

// RedactText blacks out every occurrence of the given terms on the referenced
// pages (all pages when Pages is empty). Term location is delegated to the
// renderer's text locator; a document without matches still succeeds.
type RedactText struct {
	Terms     []string `json:"terms"`
	Pages     []int    `json:"pages,omitempty"`
	MatchCase bool     `json:"match_case,omitempty"`
}

func (r RedactText) Kind() Kind { return KindRedactText }

func (r RedactText) Validate() []ValidationError {
	if len(r.Terms) == 0 {
		return []ValidationError{verr(r.Kind(), "terms", CodeEmpty, "no terms to redact")}
	}
	for _, term := range r.Terms {
		if strings.TrimSpace(term) == "" {
			return []ValidationError{verr(r.Kind(), "terms", CodeBadValue, "redaction terms must not be blank")}
		}
	}
	return nil
}

func (r RedactText) ValidateAgainst(meta document.Meta) []ValidationError {
	return checkPages(r.Kind(), "pages", r.Pages, meta)
}

func (r RedactText) Project(meta document.Meta, _ MetaLookup) (document.Meta, error) {
	return meta.Clone(), nil
}

// PasswordProtect encrypts the document. Setting neither password is a no-op
// rule and rejected by validation. Permissions nil keeps the document's
// current permission set.
type PasswordProtect struct {
	UserPassword  string                `json:"user_password,omitempty"`
	OwnerPassword string                `json:"owner_password,omitempty"`
	Permissions   *document.Permissions `json:"permissions,omitempty"`
}

func (r PasswordProtect) Kind() Kind { return KindPasswordProtect }

func (r PasswordProtect) Validate() []ValidationError {
	if r.UserPassword == "" && r.OwnerPassword == "" {
		return []ValidationError{verr(r.Kind(), "", CodeNoOpRule,
			"neither user nor owner password set")}
	}
	return nil
}

func (r PasswordProtect) ValidateAgainst(document.Meta) []ValidationError { return nil }

func (r PasswordProtect) Project(meta document.Meta, _ MetaLookup) (document.Meta, error) {
	out := meta.Clone()
	out.Security.HasUserPassword = r.UserPassword != ""
	out.Security.HasOwnerPassword = r.OwnerPassword != ""
	if r.Permissions != nil {
		out.Security.Permissions = *r.Permissions
	}
	return out, nil
}

// RemovePassword strips the selected password classes. Selecting neither is a
// no-op rule. Password carries the credential needed to open the document.
type RemovePassword struct {
	User     bool   `json:"user,omitempty"`
	Owner    bool   `json:"owner,omitempty"`
	Password string `json:"password,omitempty"`
}

func (r RemovePassword) Kind() Kind { return KindRemovePassword }

func (r RemovePassword) Validate() []ValidationError {
	if !r.User && !r.Owner {
		return []ValidationError{verr(r.Kind(), "", CodeNoOpRule,
			"neither user nor owner password selected for removal")}
	}
	return nil
}

func (r RemovePassword) ValidateAgainst(document.Meta) []ValidationError { return nil }

func (r RemovePassword) Project(meta document.Meta, _ MetaLookup) (document.Meta, error) {
	out := meta.Clone()
	if r.User {
		out.Security.HasUserPassword = false
	}
	if r.Owner {
		out.Security.HasOwnerPassword = false
	}
	if !out.Security.Encrypted() {
		out.Security.Permissions = document.AllPermissions()
	}
	return out, nil
}
