package treepics

import (
	"bytes"
	_ "embed"
	"fmt"
	"html/template"
)

//go:embed assets/index.tmpl
var indexTmpl string

//go:embed assets/pane.tmpl
var paneTmpl string

//go:embed assets/style.css
var styleText string

//go:embed assets/map.js
var scriptText string

// MonthNames labels the month toggles.
var MonthNames = []string{"Jan", "Feb", "Mar", "Apr", "May", "Jun", "Jul", "Aug", "Sep", "Oct", "Nov", "Dec"}

var (
	indexT = template.Must(template.New("index").Funcs(tmplFunctions()).Parse(indexTmpl))
	paneT  = template.Must(template.New("pane").Funcs(tmplFunctions()).Parse(paneTmpl))
)

// RenderIndex renders the host page.
func RenderIndex(c *Config) ([]byte, error) {
	data := struct {
		Collection  string
		Description string
		Center      [2]float64
		Zoom        float64
		Months      []string
		Style       template.CSS
		Script      template.JS
	}{
		Collection:  c.Collection,
		Description: c.Description,
		Center:      c.Center,
		Zoom:        c.Zoom,
		Months:      MonthNames,
		Style:       template.CSS(styleText),
		Script:      template.JS(scriptText),
	}

	var tpl bytes.Buffer
	if err := indexT.Execute(&tpl, data); err != nil {
		return nil, fmt.Errorf("execute: %w", err)
	}
	return tpl.Bytes(), nil
}

// RenderPane renders the side pane: the selected cluster's photo list or the empty prompt.
func RenderPane(gv GalleryView) (string, error) {
	var tpl bytes.Buffer
	if err := paneT.Execute(&tpl, gv); err != nil {
		return "", fmt.Errorf("execute: %w", err)
	}
	return tpl.String(), nil
}

// tmplFunctions are functions available to our templates.
func tmplFunctions() template.FuncMap {
	return template.FuncMap{
		"Plural": func(n int, s string) string {
			if n == 1 {
				return s
			}
			return s + "s"
		},
	}
}
