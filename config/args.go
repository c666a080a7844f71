package config

import (
	"bytes"
	"text/template"

	"golang.org/x/xerrors"
)

// ArgsData is passed to every argument template of a miner.
type ArgsData struct {
	Name     string
	Worker   Identity
	Pool     string
	Wallet   string
	Password string
}

func parseArgs(args []string) ([]*template.Template, error) {
	tmpls := make([]*template.Template, 0, len(args))
	for i, arg := range args {
		tmpl, err := template.New("arg").Option("missingkey=error").Parse(arg)
		if err != nil {
			return nil, xerrors.Errorf("argument %d %q: %w", i, arg, err)
		}
		tmpls = append(tmpls, tmpl)
	}
	return tmpls, nil
}

// RenderArgs expands the argument templates of the miner for the given worker.
func (m *Miner) RenderArgs(worker Identity) ([]string, error) {
	tmpls, err := parseArgs(m.Args)
	if err != nil {
		return nil, err
	}

	data := ArgsData{
		Name:     m.Name,
		Worker:   worker,
		Pool:     m.Pool,
		Wallet:   m.Wallet,
		Password: m.Password,
	}
	out := make([]string, 0, len(tmpls))
	for i, tmpl := range tmpls {
		var buf bytes.Buffer
		if err := tmpl.Execute(&buf, data); err != nil {
			return nil, xerrors.Errorf("templating argument %d of %s failed: %w", i, m.Name, err)
		}
		out = append(out, buf.String())
	}
	return out, nil
}
