package compare

import "strings"

const (
	msgTooFewUsers     = "Provide at least two usernames"
	msgDuplicateUsers  = "Please enter two distinct usernames"
	msgNotEnoughResult = "Not enough valid users to compare."
)

// Normalize trims the requested usernames and drops blank entries, keeping
// the request order.
func Normalize(usernames []string) []string {
	names := make([]string, 0, len(usernames))
	for _, u := range usernames {
		if u = strings.TrimSpace(u); u != "" {
			names = append(names, u)
		}
	}
	return names
}

// Validate returns the usernames to compare, or a message explaining why
// the request cannot run. Names are case-sensitive; any repeated name
// rejects the request.
func Validate(usernames []string) ([]string, string) {
	names := Normalize(usernames)
	if len(names) < 2 {
		return nil, msgTooFewUsers
	}

	seen := make(map[string]struct{}, len(names))
	for _, u := range names {
		if _, dup := seen[u]; dup {
			return nil, msgDuplicateUsers
		}
		seen[u] = struct{}{}
	}
	return names, ""
}
