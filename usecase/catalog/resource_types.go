package catalog

import "context"

// ResourceType is a resource as listed by ResourceTypes.
type ResourceType struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// CategoryTypes lists the resources of one category.
type CategoryTypes struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Resources   []ResourceType `json:"resources"`
}

// ResourceTypesOutput lists every category in catalog order.
type ResourceTypesOutput struct {
	Categories []CategoryTypes `json:"categories"`
}

// ResourceTypes lists categories and their resources.
func (u *UseCase) ResourceTypes(_ context.Context) (*ResourceTypesOutput, error) {
	out := &ResourceTypesOutput{Categories: make([]CategoryTypes, 0, len(u.Catalog.Categories))}
	for _, c := range u.Catalog.Categories {
		ct := CategoryTypes{Name: c.Name, Description: c.Description, Resources: make([]ResourceType, 0, len(c.Resources))}
		for _, r := range c.Resources {
			ct.Resources = append(ct.Resources, ResourceType{Name: r.Name, Description: r.Title})
		}
		out.Categories = append(out.Categories, ct)
	}
	return out, nil
}
