package role

import "github.com/trezcool/classgate/core"

// Classifier resolves email identities to roles.
type Classifier interface {
	// Classify returns the role granted to email, or false when the identity is not recognized.
	Classify(email string) (Role, bool)
	// IsAllowed reports whether email may hold an account at all.
	IsAllowed(email string) bool
}

// Resolver classifies emails against one Rules snapshot. It is stateless and safe for concurrent use.
type Resolver struct {
	rules *Rules
	match MatchFunc
}

var _ Classifier = (*Resolver)(nil)

type Option func(*Resolver)

// WithMatcher swaps the domain matching rule (SuffixMatch by default).
func WithMatcher(match MatchFunc) Option {
	return func(r *Resolver) {
		if match != nil {
			r.match = match
		}
	}
}

func NewResolver(rules *Rules, opts ...Option) *Resolver {
	if rules == nil {
		rules = &Rules{}
	}
	r := &Resolver{rules: rules, match: SuffixMatch}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Classify checks the admin allow-list first, then the domain mappings in order.
func (r *Resolver) Classify(email string) (Role, bool) {
	email = core.NormalizeEmail(email)
	if email == "" {
		return "", false
	}
	if r.rules.isAdmin(email) {
		return Admin, true
	}
	for _, m := range r.rules.mappings {
		if r.match(email, m.Domain) {
			return m.Role, true
		}
	}
	return "", false
}

func (r *Resolver) IsAllowed(email string) bool {
	_, ok := r.Classify(email)
	return ok
}

func (r *Resolver) Rules() *Rules { return r.rules }
