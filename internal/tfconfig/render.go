package tfconfig

import (
	"bytes"
	"fmt"
	"text/template"
	"time"
)

// File names written into each workspace.
const (
	MainFile      = "main.tf"
	VariablesFile = "variables.tf"
	PlanFile      = "tfplan"
	StateFile     = "terraform.tfstate"
)

// CreatedByTag is the CreatedBy default tag value.
const CreatedByTag = "sandboxops"

// MainParams parameterizes main.tf.
type MainParams struct {
	WorkspaceID  string
	ModuleSource string
	CreatedAt    time.Time
}

var funcs = template.FuncMap{
	"quote": QuoteHCL,
	"hcl": func(v any) string {
		s, err := formatValue(v)
		if err != nil {
			return "null"
		}
		return s
	},
}

var mainTmpl = template.Must(template.New(MainFile).Funcs(funcs).Parse(`# Main Terraform configuration for AWS sandbox
terraform {
  required_version = ">= 1.0.0"
  required_providers {
    aws = {
      source  = "hashicorp/aws"
      version = ">= 4.0"
    }
    random = {
      source  = "hashicorp/random"
      version = ">= 3.0"
    }
  }
}

provider "aws" {
  region = var.region
}

module "aws_sandbox" {
  source = {{ quote .ModuleSource }}
{{ range .Defs }}
  {{ .Name }} = var.{{ .Name }}
{{- end }}

  default_tags = {
    CreatedBy    = {{ quote .CreatedBy }}
    WorkspaceID  = {{ quote .WorkspaceID }}
    CreationDate = {{ quote .CreationDate }}
    ManagedBy    = "terraform"
  }
}

output "sandbox_info" {
  description = "Complete sandbox information"
  value       = module.aws_sandbox.sandbox_configuration
}
`))

var variablesTmpl = template.Must(template.New(VariablesFile).Funcs(funcs).Parse(`# Variables for AWS sandbox configuration
{{ range .Defs }}
variable {{ quote .Name }} {
  description = {{ quote .Description }}
  type        = {{ .Type }}
  default     = {{ hcl .Default }}
}
{{ end -}}
`))

// RenderMain renders main.tf for a workspace.
func RenderMain(p MainParams) ([]byte, error) {
	if p.ModuleSource == "" {
		return nil, fmt.Errorf("module source is required")
	}
	data := struct {
		MainParams
		Defs         []VariableDef
		CreatedBy    string
		CreationDate string
	}{p, Definitions, CreatedByTag, p.CreatedAt.UTC().Format("2006-01-02")}

	var buf bytes.Buffer
	if err := mainTmpl.Execute(&buf, data); err != nil {
		return nil, fmt.Errorf("rendering %s: %w", MainFile, err)
	}
	return buf.Bytes(), nil
}

// RenderVariables renders variables.tf declaring every module input.
func RenderVariables() ([]byte, error) {
	var buf bytes.Buffer
	if err := variablesTmpl.Execute(&buf, struct{ Defs []VariableDef }{Definitions}); err != nil {
		return nil, fmt.Errorf("rendering %s: %w", VariablesFile, err)
	}
	return buf.Bytes(), nil
}
