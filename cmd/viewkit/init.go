package main

import (
	"fmt"
	"os"
	"path/filepath"
	"text/template"

	"github.com/Masterminds/sprig/v3"
	"github.com/huandu/xstrings"
	"github.com/spf13/cobra"
)

var configTemplate = `# {{ .title | title }} viewkit configuration, generated {{ now | date "2006-01-02" }}
provider: badger
params:
  storage_path: {{ .storage | quote }}
log_level: {{ .logLevel | default "info" }}
`

var designTemplate = `# views of the {{ .design }} design document
views:
  by_type:
    map: |
      function(doc, meta) {
        emit([meta.type, meta.id], null);
      }
    reduce: _count
{{- if .field }}
  by_{{ .field }}:
    map: |
      function(doc, meta) {
        if (doc.{{ .field }} !== undefined) {
          emit(doc.{{ .field }}, null);
        }
      }
    reduce: _count
{{- end }}
`

type project struct {
	path     string
	title    string
	storage  string
	logLevel string
	field    string
}

func renderFile(path, text string, data map[string]any) error {
	tmpl, err := template.New(filepath.Base(path)).Funcs(sprig.TxtFuncMap()).Parse(text)
	if err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return tmpl.Execute(f, data)
}

// initProject writes a config file and a starter design document. It returns the design document name.
func initProject(p project) (string, error) {
	design := xstrings.ToSnakeCase(p.title)
	if err := os.MkdirAll(filepath.Join(p.path, "design"), 0755); err != nil {
		return "", err
	}
	data := map[string]any{
		"title":    p.title,
		"storage":  p.storage,
		"logLevel": p.logLevel,
		"design":   design,
		"field":    xstrings.ToSnakeCase(p.field),
	}
	if err := renderFile(filepath.Join(p.path, "viewkit.yaml"), configTemplate, data); err != nil {
		return "", err
	}
	if err := renderFile(filepath.Join(p.path, "design", design+".yaml"), designTemplate, data); err != nil {
		return "", err
	}
	return design, nil
}

func initCmd() *cobra.Command {
	var p project
	cmd := &cobra.Command{
		Use:   "init",
		Short: "create a new viewkit project",
		RunE: func(cmd *cobra.Command, _ []string) error {
			design, err := initProject(p)
			if err != nil {
				return fmt.Errorf("failed to initialize project: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "new project created: %v (design document %s)\n", p.path, design)
			fmt.Fprintf(cmd.OutOrStdout(), "run: viewkit serve --config %s --design %s\n",
				filepath.Join(p.path, "viewkit.yaml"), filepath.Join(p.path, "design"))
			return nil
		},
	}
	cmd.Flags().StringVarP(&p.path, "path", "p", ".", "path to project directory")
	cmd.Flags().StringVarP(&p.title, "title", "t", "my views", "title of the project, also used to name the design document")
	cmd.Flags().StringVar(&p.storage, "storage", "./data", "badger storage path")
	cmd.Flags().StringVar(&p.logLevel, "log-level", "info", "log level")
	cmd.Flags().StringVar(&p.field, "field", "", "document field to generate a starter view for")
	return cmd
}
