package role

import (
	"bytes"

	"github.com/pkg/errors"
	"github.com/spf13/viper"

	"github.com/trezcool/classgate/core"
)

// rulesFile is the configuration shape shared by files and inline JSON:
//
//	domains:
//	  - domain: "@school.org"
//	    role: teacher
//	    description: staff accounts
//	admins:
//	  - principal@school.org
type rulesFile struct {
	Domains []DomainMapping `mapstructure:"domains"`
	Admins  []string        `mapstructure:"admins"`
}

// LoadFile reads Rules from a yaml, json or toml file (by extension).
func LoadFile(path string) (*Rules, error) {
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, errors.Wrapf(err, "reading role rules %s", path)
	}
	rules, err := fromViper(v)
	return rules, errors.Wrapf(err, "loading role rules %s", path)
}

// ParseJSON reads Rules from inline JSON, e.g. injected through the environment.
func ParseJSON(data []byte) (*Rules, error) {
	v := viper.New()
	v.SetConfigType("json")
	if err := v.ReadConfig(bytes.NewReader(data)); err != nil {
		return nil, errors.Wrap(err, "parsing role rules JSON")
	}
	rules, err := fromViper(v)
	return rules, errors.Wrap(err, "loading role rules JSON")
}

func fromViper(v *viper.Viper) (*Rules, error) {
	var rf rulesFile
	if err := v.Unmarshal(&rf); err != nil {
		return nil, errors.Wrap(err, "decoding role rules")
	}
	return NewRules(rf.Domains, rf.Admins)
}

// FromConfig builds the Resolver described by conf: inline JSON wins over the rules file.
// The returned options carry the configured matcher, for reuse by a Watcher.
func FromConfig(conf core.RolesConfig) (*Resolver, []Option, error) {
	match, ok := MatcherByName(conf.Match)
	if !ok {
		return nil, nil, errors.Errorf("unknown roles matcher %q", conf.Match)
	}
	opts := []Option{WithMatcher(match)}

	var (
		rules *Rules
		err   error
	)
	if conf.JSON != "" {
		rules, err = ParseJSON([]byte(conf.JSON))
	} else {
		rules, err = LoadFile(conf.File)
	}
	if err != nil {
		return nil, nil, err
	}
	return NewResolver(rules, opts...), opts, nil
}
