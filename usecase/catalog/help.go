package catalog

import (
	"context"
	"fmt"
	"strings"

	"github.com/kompox/sandboxops/domain/model"
)

// HelpInput names a category and optionally one of its resources.
type HelpInput struct {
	Category string `json:"category"`
	Resource string `json:"resource,omitempty"`
}

// HelpOutput is the help text for a category or resource.
type HelpOutput struct {
	ResourceType         string          `json:"resourceType"`
	Description          string          `json:"description"`
	TerraformExamples    []string        `json:"terraformExamples"`
	DocumentationLinks   []Link          `json:"documentationLinks"`
	BestPractices        []string        `json:"bestPractices"`
	CommonConfigurations []Configuration `json:"commonConfigurations"`
}

// providerDocs is linked from every help page.
var providerDocs = Link{Title: "Terraform AWS Provider Documentation", URL: "https://registry.terraform.io/providers/hashicorp/aws/latest/docs"}

// Help returns examples, links and practices for a category, or for one
// resource when Resource is set.
func (u *UseCase) Help(_ context.Context, in *HelpInput) (*HelpOutput, error) {
	if in == nil || in.Category == "" {
		return nil, fmt.Errorf("%w: category is required", model.ErrCatalogNotFound)
	}
	cat, ok := u.Catalog.category(strings.ToLower(in.Category))
	if !ok {
		return nil, fmt.Errorf("%w: category %q", model.ErrCatalogNotFound, in.Category)
	}
	resources := cat.Resources
	kind := cat.Name
	if in.Resource != "" {
		r, ok := cat.resource(strings.ToLower(in.Resource))
		if !ok {
			return nil, fmt.Errorf("%w: resource %q in category %q", model.ErrCatalogNotFound, in.Resource, cat.Name)
		}
		resources = []Resource{*r}
		kind = cat.Name + "/" + r.Name
	}

	out := &HelpOutput{
		ResourceType:         kind,
		Description:          cat.Description,
		TerraformExamples:    []string{},
		DocumentationLinks:   []Link{},
		BestPractices:        append([]string{}, cat.BestPractices...),
		CommonConfigurations: []Configuration{},
	}
	if in.Resource != "" {
		out.Description = fmt.Sprintf("%s: %s", resources[0].Title, cat.Description)
	}
	for _, r := range resources {
		if r.Example != "" {
			out.TerraformExamples = append(out.TerraformExamples, r.Example)
		}
		if r.Documentation != nil {
			out.DocumentationLinks = append(out.DocumentationLinks, *r.Documentation)
		}
		out.BestPractices = append(out.BestPractices, r.BestPractices...)
		out.CommonConfigurations = append(out.CommonConfigurations, r.CommonConfigurations...)
	}
	out.DocumentationLinks = append(out.DocumentationLinks, providerDocs)
	return out, nil
}
