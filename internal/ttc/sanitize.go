// Package ttc implements the Two-Task Common message codecs (§4.E)
// layered on top of internal/wire's packet framing: Connect, Protocol,
// DataTypes, Auth, Execute, Fetch, LOB, Rollback, Logoff, and the
// experimental Pipeline form.
package ttc

import "strings"

// SanitizeCID replaces the connect-string metacharacters '(', ')', and
// '=' with '?' in program/host/user identity fields before they are
// embedded in the CONNECT packet's connect-data (§4.D: "CID
// (program/host/user sanitized...)"). Left unsanitized, any of these
// characters would be parsed as descriptor syntax by the listener.
func SanitizeCID(s string) string {
	replacer := strings.NewReplacer("(", "?", ")", "?", "=", "?")
	return replacer.Replace(s)
}

// BuildCID assembles the CID=(PROGRAM=...)(HOST=...)(USER=...)
// connect-data fragment from sanitized identity fields.
func BuildCID(program, host, user string) string {
	return "(CID=(PROGRAM=" + SanitizeCID(program) + ")(HOST=" + SanitizeCID(host) + ")(USER=" + SanitizeCID(user) + "))"
}
