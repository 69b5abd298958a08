package audit

import "strings"

// Roles are persisted as a single delimited column. The encoding lives
// next to the store, not on the record type.
const roleSeparator = ","

// EncodeRoles joins a role list into its persisted column form.
func EncodeRoles(roles []string) string {
	if len(roles) == 0 {
		return ""
	}
	return strings.Join(roles, roleSeparator)
}

// DecodeRoles splits a persisted column value back into a role list.
func DecodeRoles(encoded string) []string {
	if strings.TrimSpace(encoded) == "" {
		return nil
	}
	return strings.Split(encoded, roleSeparator)
}
