package config

import (
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

// CategoryEntry is one category and its seed queries.
type CategoryEntry struct {
	Name  string   `yaml:"name"`
	Seeds []string `yaml:"seeds"`
}

// CategoriesFile is the on-disk category list:
//
//	categories:
//	  - name: Neurodegenerative
//	    seeds: ["ADNI MRI dataset"]
type CategoriesFile struct {
	Categories []CategoryEntry `yaml:"categories"`
}

// LoadCategories parses a categories file.
func LoadCategories(path string) (*CategoriesFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "config: read categories file %s", path)
	}

	var f CategoriesFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, eris.Wrapf(err, "config: parse categories file %s", path)
	}

	seen := make(map[string]bool)
	out := f.Categories[:0]
	for _, c := range f.Categories {
		c.Name = strings.TrimSpace(c.Name)
		if c.Name == "" || seen[c.Name] {
			continue
		}
		seen[c.Name] = true
		out = append(out, c)
	}
	f.Categories = out
	if len(f.Categories) == 0 {
		return nil, eris.Errorf("config: categories file %s lists no categories", path)
	}
	return &f, nil
}

// Names returns the category names in file order.
func (f *CategoriesFile) Names() []string {
	names := make([]string, len(f.Categories))
	for i, c := range f.Categories {
		names[i] = c.Name
	}
	return names
}

// Seeds maps each category with seed queries to its seeds.
func (f *CategoriesFile) Seeds() map[string][]string {
	seeds := make(map[string][]string)
	for _, c := range f.Categories {
		if len(c.Seeds) > 0 {
			seeds[c.Name] = c.Seeds
		}
	}
	return seeds
}
