package attendance

import (
	"strings"

	"rotary-ams-gateway/internal/model"
)

// MatchesName reports whether the member's lowercased full name contains the
// lowercased query. An empty query matches everyone.
func MatchesName(member model.Member, query string) bool {
	if query == "" {
		return true
	}
	return strings.Contains(strings.ToLower(member.FullName()), strings.ToLower(query))
}

// FilterMembers returns the members matching query, in their original order.
func FilterMembers(members []model.Member, query string) []model.Member {
	filtered := make([]model.Member, 0, len(members))
	for _, m := range members {
		if MatchesName(m, query) {
			filtered = append(filtered, m)
		}
	}
	return filtered
}
