package role

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/classgate/core"
)

const (
	yamlRules = `
domains:
  - domain: "@roselleschools.org"
    role: teacher
    description: Roselle staff
  - domain: "@rosellestudent.org"
    role: student
admins:
  - admin@fermi.edu
`
	jsonRules = `{
  "domains": [
    {"domain": "@roselleschools.org", "role": "teacher"},
    {"domain": "@rosellestudent.org", "role": "student"}
  ],
  "admins": ["admin@fermi.edu"]
}`
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	fp := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(fp, []byte(content), 0o600))
	return fp
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		name    string
		file    string
		content string
		wantErr bool
	}{
		{name: "yaml", file: "roles.yaml", content: yamlRules},
		{name: "json", file: "roles.json", content: jsonRules},
		{name: "toml", file: "roles.toml", content: `admins = ["admin@fermi.edu"]

[[domains]]
domain = "@roselleschools.org"
role = "teacher"

[[domains]]
domain = "@rosellestudent.org"
role = "student"
`},
		{name: "invalid role", file: "bad.yaml", content: "domains:\n  - domain: \"@x.org\"\n    role: boss\n", wantErr: true},
		{name: "syntax error", file: "broken.json", content: "{", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fp := writeFile(t, dir, tt.file, tt.content)
			rules, err := LoadFile(fp)
			if tt.wantErr {
				assert.Error(t, err)
				assert.Nil(t, rules)
				return
			}
			require.NoError(t, err)

			r := NewResolver(rules)
			assertClassify(t, r, "jane.doe@roselleschools.org", Teacher)
			assertClassify(t, r, "sam123@rosellestudent.org", Student)
			assertClassify(t, r, "admin@fermi.edu", Admin)
			assert.False(t, r.IsAllowed("random@gmail.com"))
		})
	}

	_, err := LoadFile(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)
}

func TestLoadFile_ValidationErrorIsReachable(t *testing.T) {
	fp := writeFile(t, t.TempDir(), "roles.yaml", "domains:\n  - domain: school.org\n    role: teacher\n")
	_, err := LoadFile(fp)
	require.Error(t, err)

	verr, ok := errors.Cause(err).(*core.ValidationError)
	require.True(t, ok, "want *core.ValidationError, got %T", errors.Cause(err))
	require.Len(t, verr.Fields, 1)
	assert.Equal(t, "domains[0].domain", verr.Fields[0].Field)
	assert.Contains(t, err.Error(), "domains[0].domain")
}

func TestParseJSON(t *testing.T) {
	rules, err := ParseJSON([]byte(jsonRules))
	require.NoError(t, err)
	assertClassify(t, NewResolver(rules), "Teacher@ROSELLESCHOOLS.ORG", Teacher)

	_, err = ParseJSON([]byte(`{"domains": [{"domain": "", "role": "teacher"}]}`))
	assert.Error(t, err)

	_, err = ParseJSON([]byte(`not json`))
	assert.Error(t, err)
}

func TestFromConfig(t *testing.T) {
	dir := t.TempDir()
	fp := writeFile(t, dir, "roles.yaml", yamlRules)

	tests := []struct {
		name     string
		conf     core.RolesConfig
		email    string
		wantRole Role
		wantOk   bool
		wantErr  bool
	}{
		{name: "file", conf: core.RolesConfig{File: fp}, email: "jane.doe@roselleschools.org", wantRole: Teacher, wantOk: true},
		{
			name:  "inline JSON wins over file",
			conf:  core.RolesConfig{File: fp, JSON: `{"domains": [{"domain": "@roselleschools.org", "role": "student"}]}`},
			email: "jane.doe@roselleschools.org", wantRole: Student, wantOk: true,
		},
		{name: "suffix matcher", conf: core.RolesConfig{File: fp, Match: "suffix"}, email: "x@roselleschools.org", wantRole: Teacher, wantOk: true},
		{name: "domainpart matcher", conf: core.RolesConfig{File: fp, Match: "DomainPart"}, email: "x@roselleschools.org", wantRole: Teacher, wantOk: true},
		{name: "unknown matcher", conf: core.RolesConfig{File: fp, Match: "regex"}, wantErr: true},
		{name: "missing file", conf: core.RolesConfig{File: filepath.Join(dir, "missing.yaml")}, wantErr: true},
		{name: "invalid JSON", conf: core.RolesConfig{JSON: `{"domains": []}`}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, opts, err := FromConfig(tt.conf)
			if tt.wantErr {
				assert.Error(t, err)
				assert.Nil(t, r)
				return
			}
			require.NoError(t, err)
			assert.Len(t, opts, 1)
			gotRole, gotOk := r.Classify(tt.email)
			assert.Equal(t, tt.wantRole, gotRole)
			assert.Equal(t, tt.wantOk, gotOk)
		})
	}
}

func TestHolder(t *testing.T) {
	first, err := NewRules([]DomainMapping{{Domain: "@school.org", Role: Student}}, nil)
	require.NoError(t, err)
	second, err := NewRules([]DomainMapping{{Domain: "@school.org", Role: Teacher}}, nil)
	require.NoError(t, err)

	h := NewHolder(NewResolver(first))
	assertClassify(t, h, "a@school.org", Student)

	// readers only ever observe a whole snapshot
	var wg sync.WaitGroup
	stop := make(chan struct{})
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				got, ok := h.Classify("a@school.org")
				if !ok || (got != Student && got != Teacher) {
					t.Errorf("Classify() = %q, %v during reload", got, ok)
					return
				}
			}
		}()
	}
	for i := 0; i < 100; i++ {
		if i%2 == 0 {
			h.Store(NewResolver(second))
		} else {
			h.Store(NewResolver(first))
		}
	}
	close(stop)
	wg.Wait()

	h.Store(NewResolver(second))
	assertClassify(t, h, "a@school.org", Teacher)
	assert.Same(t, second, h.Rules())

	h.Store(nil)
	assert.False(t, h.IsAllowed("a@school.org"))
}

func TestWatcher_Reload(t *testing.T) {
	dir := t.TempDir()
	fp := writeFile(t, dir, "roles.yaml", yamlRules)
	rules, err := LoadFile(fp)
	require.NoError(t, err)

	logger := new(testLogger)
	h := NewHolder(NewResolver(rules))
	w := NewWatcher(fp, h, logger)

	// invalid edit: keep serving the previous rules
	writeFile(t, dir, "roles.yaml", "domains:\n  - domain: \"@roselleschools.org\"\n    role: principal\n")
	assert.Error(t, w.Reload())
	assertClassify(t, h, "jane.doe@roselleschools.org", Teacher)
	assert.Equal(t, 1, logger.count("error"))

	// valid edit
	writeFile(t, dir, "roles.yaml", "domains:\n  - domain: \"@roselleschools.org\"\n    role: student\n")
	require.NoError(t, w.Reload())
	assertClassify(t, h, "jane.doe@roselleschools.org", Student)
	assert.False(t, h.IsAllowed("admin@fermi.edu"))
	assert.Equal(t, 1, logger.count("info"))
}

// not parallel: the watch outlives the test.
func TestWatcher_Start(t *testing.T) {
	dir := t.TempDir()
	fp := writeFile(t, dir, "roles.yaml", yamlRules)
	rules, err := LoadFile(fp)
	require.NoError(t, err)

	h := NewHolder(NewResolver(rules))
	NewWatcher(fp, h, new(testLogger)).Start()

	writeFile(t, dir, "roles.yaml", "admins:\n  - jane.doe@roselleschools.org\n")
	assert.Eventually(t, func() bool {
		got, _ := h.Classify("jane.doe@roselleschools.org")
		return got == Admin
	}, 5*time.Second, 20*time.Millisecond)
}

func assertClassify(t *testing.T, c Classifier, email string, want Role) {
	t.Helper()
	got, ok := c.Classify(email)
	assert.True(t, ok, "Classify(%q) not recognized", email)
	assert.Equal(t, want, got, "Classify(%q)", email)
	assert.True(t, c.IsAllowed(email))
}

type testLogger struct {
	mu   sync.Mutex
	msgs map[string]int
}

func (l *testLogger) log(level string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.msgs == nil {
		l.msgs = make(map[string]int)
	}
	l.msgs[level]++
}

func (l *testLogger) count(level string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.msgs[level]
}

func (l *testLogger) Debug(string, ...interface{}) { l.log("debug") }
func (l *testLogger) Info(string, ...interface{})  { l.log("info") }
func (l *testLogger) Warn(string, ...interface{})  { l.log("warn") }
func (l *testLogger) Error(string, ...interface{}) { l.log("error") }
func (l *testLogger) Fatal(string, ...interface{}) { l.log("fatal") }
