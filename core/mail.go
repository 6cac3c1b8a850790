package core

import (
	"bytes"
	htmltmpl "html/template"
	"io/fs"
	"net/mail"
	"path"
	"strings"
	"sync"
	texttmpl "text/template"

	"github.com/pkg/errors"
)

// emailTemplate holds the plain text and HTML versions of a template, either may be nil.
type emailTemplate struct {
	text *texttmpl.Template
	html *htmltmpl.Template
}

var (
	templates  map[string]emailTemplate
	templateMu sync.RWMutex
)

type (
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

	ContextData struct {
		AppName         string
		FrontendBaseURL string
		Data            interface{}
	}

	// EmailService is any service that can send emails
	EmailService interface {
		// SendMessages sends messages concurrently
		SendMessages(messages ...*EmailMessage)
	}
)

func lookupTemplate(name string) (emailTemplate, bool) {
	templateMu.RLock()
	defer templateMu.RUnlock()
	tmpl, ok := templates[name]
	return tmpl, ok
}

// Render fills TextContent and HTMLContent, from BodyStr or from the template named TemplateName.
// An unknown template leaves the message empty.
func (m *EmailMessage) Render(conf *Config) error {
	if m.BodyStr != "" {
		m.TextContent = m.BodyStr
		return nil
	}
	tmpl, ok := lookupTemplate(m.TemplateName)
	if m.TemplateName == "" || !ok {
		return nil
	}

	data := ContextData{AppName: conf.AppName, FrontendBaseURL: conf.FrontendBaseURL, Data: m.TemplateData}
	var buf bytes.Buffer
	if tmpl.text != nil {
		if err := tmpl.text.Execute(&buf, data); err != nil {
			return errors.Wrapf(err, "rendering %s.txt", m.TemplateName)
		}
		m.TextContent = buf.String()
	}
	if tmpl.html != nil {
		buf.Reset()
		if err := tmpl.html.Execute(&buf, data); err != nil {
			return errors.Wrapf(err, "rendering %s.gohtml", m.TemplateName)
		}
		m.HTMLContent = buf.String()
	}
	return nil
}

func (m *EmailMessage) HasRecipients() bool { return len(m.To) > 0 }
func (m *EmailMessage) HasContent() bool    { return (m.TextContent != "") || (m.HTMLContent != "") }

// ParseEmailTemplates parses every email template under `dir` of `fsys`, replacing the parsed set.
// Files prefixed with "_" are the base layouts, parsed along each template of the same extension.
// Strict templates fail on missing keys.
func ParseEmailTemplates(fsys fs.FS, dir string, strict bool) error {
	fps, err := fs.Glob(fsys, path.Join(dir, "*"))
	if err != nil {
		return errors.Wrap(err, "listing email templates")
	}
	option := "missingkey=default"
	if strict {
		option = "missingkey=error"
	}

	parsed := make(map[string]emailTemplate)
	for _, fp := range fps {
		fname := path.Base(fp)
		ext := path.Ext(fname)
		if strings.HasPrefix(fname, "_") {
			continue
		}
		name := strings.TrimSuffix(fname, ext)
		tmpl := parsed[name]
		base := path.Join(dir, "_base"+ext)

		switch ext {
		case ".txt":
			if tmpl.text, err = texttmpl.ParseFS(fsys, fp, base); err != nil {
				return errors.Wrapf(err, "parsing %s", fp)
			}
			tmpl.text.Option(option)
		case ".gohtml":
			if tmpl.html, err = htmltmpl.ParseFS(fsys, fp, base); err != nil {
				return errors.Wrapf(err, "parsing %s", fp)
			}
			tmpl.html.Option(option)
		default:
			continue
		}
		parsed[name] = tmpl
	}

	templateMu.Lock()
	templates = parsed
	templateMu.Unlock()
	return nil
}
