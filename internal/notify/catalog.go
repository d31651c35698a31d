package notify

import (
	"embed"
	"encoding/json"
	"fmt"
	"path"

	"github.com/nicksnyder/go-i18n/v2/i18n"
	"golang.org/x/text/language"
)

//go:embed locales/*.json
var localeFS embed.FS

// Catalog renders localized subjects and bodies.
type Catalog struct {
	bundle        *i18n.Bundle
	defaultLocale string
}

func NewCatalog(defaultLocale string) (*Catalog, error) {
	if defaultLocale == "" {
		defaultLocale = "en"
	}
	bundle := i18n.NewBundle(language.English)
	bundle.RegisterUnmarshalFunc("json", json.Unmarshal)

	entries, err := localeFS.ReadDir("locales")
	if err != nil {
		return nil, fmt.Errorf("read locales dir: %w", err)
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		data, err := localeFS.ReadFile(path.Join("locales", e.Name()))
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", e.Name(), err)
		}
		if _, err := bundle.ParseMessageFileBytes(data, e.Name()); err != nil {
			return nil, fmt.Errorf("parse %s: %w", e.Name(), err)
		}
	}
	return &Catalog{bundle: bundle, defaultLocale: defaultLocale}, nil
}

func (c *Catalog) Render(template Template, locale string, data Data) (subject, body string, err error) {
	l := i18n.NewLocalizer(c.bundle, locale, c.defaultLocale)
	subject, err = l.Localize(&i18n.LocalizeConfig{MessageID: string(template) + ".subject", TemplateData: data})
	if err != nil {
		return "", "", fmt.Errorf("render %s subject: %w", template, err)
	}
	body, err = l.Localize(&i18n.LocalizeConfig{MessageID: string(template) + ".body", TemplateData: data})
	if err != nil {
		return "", "", fmt.Errorf("render %s body: %w", template, err)
	}
	return subject, body, nil
}
