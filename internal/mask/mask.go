// Package mask implements the glob-style nick!user@host mask matching
// used for channel ban/exception/invite-exception lists (spec glossary:
// "Mask").
package mask

import "strings"

// Match reports whether host-order string s matches the glob pattern
// pat, where '*' matches any run of characters (including none) and
// '?' matches exactly one character. Matching is case-insensitive,
// matching common ircd ban-mask behavior.
func Match(pat, s string) bool {
	return matchFold(lower(pat), lower(s))
}

func lower(s string) string {
	return strings.ToLower(s)
}

// matchFold implements a classic DP-free iterative glob match with
// backtracking via two cursors, the standard technique for '*'/'?'
// glob matching without building a regexp.
func matchFold(pat, s string) bool {
	var pIdx, sIdx int
	var starIdx = -1
	var sTmpIdx int

	for sIdx < len(s) {
		if pIdx < len(pat) && (pat[pIdx] == '?' || pat[pIdx] == s[sIdx]) {
			pIdx++
			sIdx++
			continue
		}
		if pIdx < len(pat) && pat[pIdx] == '*' {
			starIdx = pIdx
			sTmpIdx = sIdx
			pIdx++
			continue
		}
		if starIdx != -1 {
			pIdx = starIdx + 1
			sTmpIdx++
			sIdx = sTmpIdx
			continue
		}
		return false
	}

	for pIdx < len(pat) && pat[pIdx] == '*' {
		pIdx++
	}

	return pIdx == len(pat)
}

// MatchesUserHost reports whether "nick!user@host" matches the given
// mask, which may itself be a full "nick!user@host" glob or composed of
// independent nick/user/host globs joined the same way.
func MatchesUserHost(pattern, nick, user, host string) bool {
	full := nick + "!" + user + "@" + host
	return Match(pattern, full)
}
