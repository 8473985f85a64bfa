// Package catalog serves the resource-type catalog, per-resource help and a
// heuristic Terraform configuration review.
package catalog

import (
	_ "embed"
	"fmt"
	"sync"

	"gopkg.in/yaml.v3"
)

//go:embed catalog.yml
var catalogYAML []byte

// Link is a documentation reference.
type Link struct {
	Title string `yaml:"title" json:"title"`
	URL   string `yaml:"url" json:"url"`
}

// Configuration is a named, commonly used setup of a resource.
type Configuration struct {
	Name        string `yaml:"name" json:"name"`
	Description string `yaml:"description" json:"description"`
}

// Resource is one entry of a category.
type Resource struct {
	Name                 string          `yaml:"name"`
	Title                string          `yaml:"title"`
	Documentation        *Link           `yaml:"documentation"`
	Example              string          `yaml:"example"`
	BestPractices        []string        `yaml:"best_practices"`
	CommonConfigurations []Configuration `yaml:"common_configurations"`
}

// Category groups resources of one kind.
type Category struct {
	Name          string     `yaml:"name"`
	Description   string     `yaml:"description"`
	BestPractices []string   `yaml:"best_practices"`
	Resources     []Resource `yaml:"resources"`
}

// Catalog is the parsed catalog document.
type Catalog struct {
	Categories []Category `yaml:"categories"`
}

// Parse decodes a catalog document.
func Parse(data []byte) (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("parsing catalog: %w", err)
	}
	for i, cat := range c.Categories {
		if cat.Name == "" {
			return nil, fmt.Errorf("parsing catalog: category %d has no name", i)
		}
	}
	return &c, nil
}

var loadDefault = sync.OnceValues(func() (*Catalog, error) { return Parse(catalogYAML) })

// Default returns the embedded catalog.
func Default() (*Catalog, error) { return loadDefault() }

func (c *Catalog) category(name string) (*Category, bool) {
	for i := range c.Categories {
		if c.Categories[i].Name == name {
			return &c.Categories[i], true
		}
	}
	return nil, false
}

func (c *Category) resource(name string) (*Resource, bool) {
	for i := range c.Resources {
		if c.Resources[i].Name == name {
			return &c.Resources[i], true
		}
	}
	return nil, false
}

// UseCase serves catalog lookups and configuration analysis.
type UseCase struct {
	Catalog *Catalog
}

// New returns a use case backed by the embedded catalog.
func New() (*UseCase, error) {
	c, err := Default()
	if err != nil {
		return nil, err
	}
	return &UseCase{Catalog: c}, nil
}
