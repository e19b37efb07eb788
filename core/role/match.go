package role

import "strings"

// MatchFunc reports whether a normalized email belongs to a normalized "@domain".
type MatchFunc func(email, domain string) bool

// SuffixMatch is a raw suffix match. Domains keep their leading "@" so
// "x@notreal-school.org" never matches "@school.org".
// Subdomains are not matched either: "x@mail.school.org" does not end with "@school.org".
func SuffixMatch(email, domain string) bool {
	return strings.HasSuffix(email, domain)
}

// DomainPartMatch compares the part after the last "@" of email with domain (minus its "@").
func DomainPartMatch(email, domain string) bool {
	i := strings.LastIndexByte(email, '@')
	if i < 0 {
		return false
	}
	return email[i+1:] == strings.TrimPrefix(domain, "@")
}

// MatcherByName returns the MatchFunc configured by name: "suffix" (default) or "domainpart".
func MatcherByName(name string) (MatchFunc, bool) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "suffix":
		return SuffixMatch, true
	case "domainpart":
		return DomainPartMatch, true
	default:
		return nil, false
	}
}
