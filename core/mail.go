package core

import (
	"bytes"
	"embed"
	htmltmpl "html/template"
	"net/mail"
	"path"
	"strings"
	"sync"
	texttmpl "text/template"

	"github.com/pkg/errors"
)

//go:embed all:templates/email
var templatesFS embed.FS

var (
	templates tmplCache
	tmplErr   error
	tmplInit  sync.Once
)

type (
	tmplCacheEntry struct {
		text *texttmpl.Template
		html *htmltmpl.Template
	}
	tmplCache map[string]*tmplCacheEntry // {name: entry}

	EmailMessage struct {
		To      []mail.Address
		Cc      []mail.Address
		Bcc     []mail.Address
		Subject string
		BodyStr string // simple text/plain, non-templated content

		// templated contents
		TemplateName string // without ext
		TemplateData interface{}
		TextContent  string
		HTMLContent  string
	}

	// EmailService is any service that can send emails
	EmailService interface {
		// SendMessages sends messages concurrently
		SendMessages(messages ...*EmailMessage)
	}
)

// Render fills TextContent & HTMLContent from BodyStr or the named template.
func (m *EmailMessage) Render() error {
	if m.BodyStr != "" {
		m.TextContent = m.BodyStr
		return nil
	}
	if m.TemplateName == "" {
		return nil
	}

	tmplInit.Do(parseTemplates) // only parse once during first render
	if tmplErr != nil {
		return tmplErr
	}
	entry, ok := templates[m.TemplateName]
	if !ok {
		return errors.Errorf("email template %q not found", m.TemplateName)
	}

	if entry.text != nil {
		var buff bytes.Buffer
		if err := entry.text.Execute(&buff, m.TemplateData); err != nil {
			return errors.Wrapf(err, "rendering %s.txt", m.TemplateName)
		}
		m.TextContent = buff.String()
	}
	if entry.html != nil {
		var buff bytes.Buffer
		if err := entry.html.Execute(&buff, m.TemplateData); err != nil {
			return errors.Wrapf(err, "rendering %s.gohtml", m.TemplateName)
		}
		m.HTMLContent = buff.String()
	}
	return nil
}

func (m *EmailMessage) HasRecipients() bool { return len(m.To) > 0 }
func (m *EmailMessage) HasContent() bool    { return (m.TextContent != "") || (m.HTMLContent != "") }

func parseTemplates() {
	templates = make(tmplCache)

	root := "templates/email"
	entries, err := templatesFS.ReadDir(root)
	if err != nil {
		tmplErr = errors.Wrap(err, "reading email templates")
		return
	}

	for _, de := range entries {
		fname := de.Name()
		ext := path.Ext(fname)
		if strings.HasPrefix(fname, "_") || !(ext == ".txt" || ext == ".gohtml") {
			continue
		}
		name := strings.TrimSuffix(fname, ext)
		entry, ok := templates[name]
		if !ok {
			entry = new(tmplCacheEntry)
			templates[name] = entry
		}
		if ext == ".txt" {
			tmpl, err := texttmpl.ParseFS(templatesFS, path.Join(root, "_base.txt"), path.Join(root, fname))
			if err != nil {
				tmplErr = errors.Wrapf(err, "parsing %s", fname)
				return
			}
			for _, t := range tmpl.Templates() {
				t.Option("missingkey=error")
			}
			entry.text = tmpl.Lookup(fname)
		} else {
			tmpl, err := htmltmpl.ParseFS(templatesFS, path.Join(root, "_base.gohtml"), path.Join(root, fname))
			if err != nil {
				tmplErr = errors.Wrapf(err, "parsing %s", fname)
				return
			}
			for _, t := range tmpl.Templates() {
				t.Option("missingkey=error")
			}
			entry.html = tmpl.Lookup(fname)
		}
	}
}
