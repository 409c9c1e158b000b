package generator

const fileTmpl = `
{{- define "GoFile" -}}
// Code generated by cdrgen. DO NOT EDIT.
// Topic: {{ .Topic }}

package {{ .Package }}

import (
{{- range .Imports }}
	"{{ . }}"
{{- end }}
)
{{ range .Decls }}
{{- if .Alias }}{{ template "Alias" .Alias }}{{ end }}
{{- if .Enum }}{{ template "Enum" .Enum }}{{ end }}
{{- if .Struct }}{{ template "Struct" .Struct }}{{ end }}
{{- if .Union }}{{ template "Union" .Union }}{{ end }}
{{ end }}
{{- end -}}
`

const aliasTmpl = `
{{- define "Alias" }}
// {{ .Name }} is the IDL typedef {{ .IDLName }}.
type {{ .Name }} = {{ .Type }}
{{- end -}}
`

const enumTmpl = `
{{- define "Enum" }}
// {{ .Name }} is the IDL enum {{ .IDLName }}.
type {{ .Name }} int32

const (
{{- range .Enumerators }}
	{{ .Name }} {{ $.Name }} = {{ .Value }}
{{- end }}
)

func (e {{ .Name }}) String() string {
	switch e {
	{{- range .Enumerators }}
	case {{ .Name }}:
		return "{{ .IDLName }}"
	{{- end }}
	}
	return fmt.Sprintf("{{ .Name }}(%d)", int32(e))
}
{{- end -}}
`

const structTmpl = `
{{- define "Struct" }}
// {{ .Name }} is the IDL struct {{ .IDLName }}.
type {{ .Name }} struct {
{{- range .Fields }}
	{{ .Name }} {{ .Type }} ` + "`" + `idl:"{{ .IDLName }}"` + "`" + `
{{- end }}
}

var _{{ .Name }}Descriptor = descriptor.MustUnmarshal([]byte({{ .Descriptor }}))

// Descriptor returns the type descriptor of {{ .IDLName }}.
func (*{{ .Name }}) Descriptor() *descriptor.Descriptor { return _{{ .Name }}Descriptor }

// ToValue converts x to its positional value form.
func (x *{{ .Name }}) ToValue() value.Value {
	return value.Struct{
	{{- range .Fields }}
		{{ .ToValue }},
	{{- end }}
	}
}

// FromValue replaces the contents of x with v.
func (x *{{ .Name }}) FromValue(v value.Value) error {
{{- if .Fields }}
	s, err := value.AsStruct(v, {{ len .Fields }})
	if err != nil {
		return err
	}
	{{- range $i, $f := .Fields }}
	if x.{{ $f.Name }}, err = {{ $f.FromValue }}(s[{{ $i }}]); err != nil {
		return fmt.Errorf("{{ $f.IDLName }}: %w", err)
	}
	{{- end }}
	return nil
{{- else }}
	_, err := value.AsStruct(v, 0)
	return err
{{- end }}
}
{{- end -}}
`

const unionTmpl = `
{{- define "Union" }}
// {{ .Name }} is the IDL union {{ .IDLName }}. Disc selects the active field.
type {{ .Name }} struct {
	Disc {{ .DiscType }}
{{- range .Cases }}
	{{ .Name }} {{ .Type }} ` + "`" + `idl:"{{ .IDLName }}"` + "`" + `
{{- end }}
}

var _{{ .Name }}Descriptor = descriptor.MustUnmarshal([]byte({{ .Descriptor }}))

// Descriptor returns the type descriptor of {{ .IDLName }}.
func (*{{ .Name }}) Descriptor() *descriptor.Descriptor { return _{{ .Name }}Descriptor }

// ToValue converts x to a value.Union carrying the field Disc selects.
func (x *{{ .Name }}) ToValue() value.Value {
	u := value.Union{Disc: {{ .DiscToInt }}}
	switch u.Disc {
	{{- range .Cases }}
	{{- if .Default }}
	default:
		u.Value = {{ .ToValue }}
	{{- else if .Labels }}
	case {{ .Labels }}:
		u.Value = {{ .ToValue }}
	{{- end }}
	{{- end }}
	}
	return u
}

// FromValue replaces the contents of x with v.
func (x *{{ .Name }}) FromValue(v value.Value) error {
	u, err := value.AsUnion(v)
	if err != nil {
		return err
	}
	*x = {{ .Name }}{Disc: {{ .DiscFromInt }}}
	switch u.Disc {
	{{- range .Cases }}
	{{- if .Default }}
	default:
	{{- else if .Labels }}
	case {{ .Labels }}:
	{{- end }}
	{{- if or .Default .Labels }}
		if x.{{ .Name }}, err = {{ .FromValue }}(u.Value); err != nil {
			return fmt.Errorf("{{ .IDLName }}: %w", err)
		}
	{{- end }}
	{{- end }}
	}
	return nil
}
{{- end -}}
`
