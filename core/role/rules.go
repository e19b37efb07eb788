package role

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/classgate/core"
)

var (
	translator = core.NewTranslator()
	validate   = core.NewValidator(translator)
)

// DomainMapping grants Role to every email under Domain ("@school.org").
type DomainMapping struct {
	Domain      string `json:"domain" mapstructure:"domain" validate:"required,emaildomain"`
	Role        Role   `json:"role" mapstructure:"role" validate:"required,oneof=admin teacher student"`
	Description string `json:"description,omitempty" mapstructure:"description"`
}

type rulesConfig struct {
	Domains []DomainMapping `json:"domains" validate:"dive"`
	Admins  []string        `json:"admins" validate:"dive,required,email"`
}

// Rules is an immutable snapshot of the domain mappings and the admin allow-list.
// Mappings are kept in configuration order: the first matching domain wins.
type Rules struct {
	mappings []DomainMapping
	admins   map[string]struct{}
}

// NewRules normalizes and validates the configuration, failing on anything that would make
// matching ambiguous: empty or malformed domains, unknown roles, duplicate domains, bad admin emails.
// The returned error is a *core.ValidationError listing every offending field.
func NewRules(mappings []DomainMapping, admins []string) (*Rules, error) {
	conf := rulesConfig{
		Domains: make([]DomainMapping, 0, len(mappings)),
		Admins:  make([]string, 0, len(admins)),
	}
	for _, m := range mappings {
		conf.Domains = append(conf.Domains, DomainMapping{
			Domain:      core.NormalizeEmail(m.Domain),
			Role:        Role(core.CleanString(string(m.Role), true /* lower */)),
			Description: core.CleanString(m.Description),
		})
	}
	for _, a := range admins {
		conf.Admins = append(conf.Admins, core.NormalizeEmail(a))
	}

	var fldErrs []core.FieldError
	if len(conf.Domains) == 0 && len(conf.Admins) == 0 {
		fldErrs = append(fldErrs, core.FieldError{Field: "domains", Error: "at least one domain mapping or admin is required"})
	}
	if err := validate.Struct(conf); err != nil {
		verrs, ok := err.(validator.ValidationErrors)
		if !ok {
			return nil, err
		}
		fldErrs = append(fldErrs, core.FieldErrors(verrs, translator)...)
	}
	seen := make(map[string]int, len(conf.Domains))
	for i, m := range conf.Domains {
		if m.Domain == "" {
			continue
		}
		if j, ok := seen[m.Domain]; ok {
			fldErrs = append(fldErrs, core.FieldError{
				Field: fmt.Sprintf("domains[%d].domain", i),
				Error: fmt.Sprintf("duplicate domain, already mapped by domains[%d]", j),
			})
			continue
		}
		seen[m.Domain] = i
	}
	if len(fldErrs) > 0 {
		return nil, core.NewValidationError(nil, fldErrs...)
	}

	rules := &Rules{
		mappings: conf.Domains,
		admins:   make(map[string]struct{}, len(conf.Admins)),
	}
	for _, a := range conf.Admins {
		rules.admins[a] = struct{}{}
	}
	return rules, nil
}

// Mappings returns a copy of the domain mappings, in priority order.
func (r *Rules) Mappings() []DomainMapping {
	return append([]DomainMapping(nil), r.mappings...)
}

// Admins returns the sorted admin allow-list.
func (r *Rules) Admins() []string {
	admins := make([]string, 0, len(r.admins))
	for a := range r.admins {
		admins = append(admins, a)
	}
	sort.Strings(admins)
	return admins
}

func (r *Rules) isAdmin(email string) bool {
	_, ok := r.admins[email]
	return ok
}

func (r *Rules) MarshalJSON() ([]byte, error) {
	return json.Marshal(rulesConfig{Domains: r.Mappings(), Admins: r.Admins()})
}

func (r *Rules) String() string {
	domains := make([]string, 0, len(r.mappings))
	for _, m := range r.mappings {
		domains = append(domains, m.Domain+"="+string(m.Role))
	}
	return fmt.Sprintf("Rules{domains: [%s], admins: %d}", strings.Join(domains, " "), len(r.admins))
}
