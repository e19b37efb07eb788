package role

import (
	"fmt"
	"sync"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/classgate/core"
)

func newTestRules(t *testing.T) *Rules {
	t.Helper()
	rules, err := NewRules(
		[]DomainMapping{
			{Domain: "@roselleschools.org", Role: Teacher, Description: "staff"},
			{Domain: "@rosellestudent.org", Role: Student},
			{Domain: "@fermi.edu", Role: Teacher},
		},
		[]string{"admin@fermi.edu", "Principal@RoselleSchools.org"},
	)
	require.NoError(t, err)
	return rules
}

func TestResolver_Classify(t *testing.T) {
	r := NewResolver(newTestRules(t))

	tests := []struct {
		name     string
		email    string
		wantRole Role
		wantOk   bool
	}{
		{name: "teacher domain", email: "jane.doe@roselleschools.org", wantRole: Teacher, wantOk: true},
		{name: "student domain", email: "sam123@rosellestudent.org", wantRole: Student, wantOk: true},
		{name: "admin allow-list", email: "admin@fermi.edu", wantRole: Admin, wantOk: true},
		{name: "admin allow-list (any casing)", email: "ADMIN@Fermi.EDU", wantRole: Admin, wantOk: true},
		{name: "admin allow-list configured with casing", email: "principal@roselleschools.org", wantRole: Admin, wantOk: true},
		{name: "allow-list wins over domain", email: "  admin@fermi.edu\t", wantRole: Admin, wantOk: true},
		{name: "same domain, not admin", email: "physics@fermi.edu", wantRole: Teacher, wantOk: true},
		{name: "case-insensitive domain", email: "Teacher@ROSELLESCHOOLS.ORG", wantRole: Teacher, wantOk: true},
		{name: "fullwidth at sign", email: "jane＠roselleschools.org", wantRole: Teacher, wantOk: true},
		{name: "unknown domain", email: "random@gmail.com"},
		{name: "empty", email: ""},
		{name: "blank", email: "   "},
		{name: "no at sign", email: "roselleschools.org"},
		{name: "lookalike domain", email: "x@notreal-roselleschools.org"},
		{name: "subdomain", email: "x@mail.roselleschools.org"},
		{name: "bare domain", email: "@roselleschools.org", wantRole: Teacher, wantOk: true},
		{name: "garbage", email: "\x00\xff@@"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gotRole, gotOk := r.Classify(tt.email)
			assert.Equal(t, tt.wantRole, gotRole)
			assert.Equal(t, tt.wantOk, gotOk)

			// consistency law & idempotence
			assert.Equal(t, gotOk, r.IsAllowed(tt.email))
			role2, ok2 := r.Classify(tt.email)
			assert.Equal(t, gotRole, role2)
			assert.Equal(t, gotOk, ok2)
		})
	}
}

func TestResolver_FirstMatchWins(t *testing.T) {
	rules, err := NewRules(
		[]DomainMapping{
			{Domain: "@staff.school.org", Role: Teacher},
			{Domain: "@school.org", Role: Student},
		},
		nil,
	)
	require.NoError(t, err)

	tests := []struct {
		name  string
		match MatchFunc
		email string
		want  Role
	}{
		{name: "suffix: specific domain", match: SuffixMatch, email: "a@staff.school.org", want: Teacher},
		{name: "suffix: generic domain", match: SuffixMatch, email: "a@school.org", want: Student},
		{name: "domain part: specific domain", match: DomainPartMatch, email: "a@staff.school.org", want: Teacher},
		{name: "domain part: generic domain", match: DomainPartMatch, email: "a@school.org", want: Student},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := NewResolver(rules, WithMatcher(tt.match)).Classify(tt.email)
			assert.True(t, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestResolver_Matchers(t *testing.T) {
	tests := []struct {
		email, domain     string
		suffix, domainPrt bool
	}{
		{email: "a@school.org", domain: "@school.org", suffix: true, domainPrt: true},
		{email: "a@b@school.org", domain: "@school.org", suffix: true, domainPrt: true},
		{email: "a@notschool.org", domain: "@school.org"},
		{email: "school.org", domain: "@school.org"},
		{email: "", domain: "@school.org"},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("%s~%s", tt.email, tt.domain), func(t *testing.T) {
			assert.Equal(t, tt.suffix, SuffixMatch(tt.email, tt.domain))
			assert.Equal(t, tt.domainPrt, DomainPartMatch(tt.email, tt.domain))
		})
	}

	_, ok := MatcherByName("regex")
	assert.False(t, ok)
	m, ok := MatcherByName("DomainPart")
	require.True(t, ok)
	assert.True(t, m("a@school.org", "@school.org"))
}

func TestResolver_ConcurrentUse(t *testing.T) {
	r := NewResolver(newTestRules(t))

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			email := fmt.Sprintf("user%d@rosellestudent.org", i)
			got, ok := r.Classify(email)
			assert.True(t, ok)
			assert.Equal(t, Student, got)
		}(i)
	}
	wg.Wait()
}

func TestNewResolver_NilRules(t *testing.T) {
	r := NewResolver(nil)
	_, ok := r.Classify("admin@fermi.edu")
	assert.False(t, ok)
}

func TestNewRules_Invalid(t *testing.T) {
	tests := []struct {
		name     string
		mappings []DomainMapping
		admins   []string
		wantFlds []string
	}{
		{name: "empty config", wantFlds: []string{"domains"}},
		{name: "empty domain", mappings: []DomainMapping{{Domain: " ", Role: Teacher}}, wantFlds: []string{"domains[0].domain"}},
		{name: "no leading at", mappings: []DomainMapping{{Domain: "school.org", Role: Teacher}}, wantFlds: []string{"domains[0].domain"}},
		{name: "two at signs", mappings: []DomainMapping{{Domain: "@a@school.org", Role: Teacher}}, wantFlds: []string{"domains[0].domain"}},
		{name: "inner whitespace", mappings: []DomainMapping{{Domain: "@sch ool.org", Role: Teacher}}, wantFlds: []string{"domains[0].domain"}},
		{name: "unknown role", mappings: []DomainMapping{{Domain: "@school.org", Role: "janitor"}}, wantFlds: []string{"domains[0].role"}},
		{name: "missing role", mappings: []DomainMapping{{Domain: "@school.org"}}, wantFlds: []string{"domains[0].role"}},
		{
			name:     "duplicate domain",
			mappings: []DomainMapping{{Domain: "@school.org", Role: Teacher}, {Domain: "@SCHOOL.org", Role: Student}},
			wantFlds: []string{"domains[1].domain"},
		},
		{name: "blank admin", admins: []string{""}, wantFlds: []string{"admins[0]"}},
		{name: "malformed admin", admins: []string{"admin"}, wantFlds: []string{"admins[0]"}},
		{
			name:     "several errors",
			mappings: []DomainMapping{{Domain: "school.org", Role: "boss"}},
			admins:   []string{"ok@school.org", "nope"},
			wantFlds: []string{"domains[0].domain", "domains[0].role", "admins[1]"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rules, err := NewRules(tt.mappings, tt.admins)
			require.Error(t, err)
			assert.Nil(t, rules)

			var verr *core.ValidationError
			require.True(t, errors.As(err, &verr), "want *core.ValidationError, got %T", err)
			gotFlds := make([]string, 0, len(verr.Fields))
			for _, f := range verr.Fields {
				gotFlds = append(gotFlds, f.Field)
				assert.NotEmpty(t, f.Error)
			}
			assert.ElementsMatch(t, tt.wantFlds, gotFlds)
		})
	}
}

func TestNewRules_Normalizes(t *testing.T) {
	rules, err := NewRules(
		[]DomainMapping{{Domain: "  @School.ORG ", Role: "Teacher", Description: " staff "}},
		[]string{" Boss@School.org", "a@b.org"},
	)
	require.NoError(t, err)
	assert.Equal(t, []DomainMapping{{Domain: "@school.org", Role: Teacher, Description: "staff"}}, rules.Mappings())
	assert.Equal(t, []string{"a@b.org", "boss@school.org"}, rules.Admins())

	// callers cannot mutate the snapshot
	ms := rules.Mappings()
	ms[0].Role = Admin
	assert.Equal(t, Teacher, rules.Mappings()[0].Role)
}

func TestParseRole(t *testing.T) {
	tests := []struct {
		in      string
		want    Role
		wantErr bool
	}{
		{in: "teacher", want: Teacher},
		{in: " STUDENT ", want: Student},
		{in: "Admin", want: Admin},
		{in: "owner", wantErr: true},
		{in: "", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseRole(tt.in)
			if tt.wantErr {
				assert.Equal(t, ErrUnknownRole, errors.Cause(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
	assert.Greater(t, Admin.Priority(), Teacher.Priority())
	assert.Greater(t, Teacher.Priority(), Student.Priority())
}
