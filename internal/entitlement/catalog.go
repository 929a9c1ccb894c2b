package entitlement

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// FeatureAIAnalysis is the capability that unlocks provider-backed analysis.
const FeatureAIAnalysis = "ai_analysis"

// Plan is one entry of the plan catalog.
type Plan struct {
	ID       string   `yaml:"id"`
	Name     string   `yaml:"name"`
	Features []string `yaml:"features"`
}

type catalogFile struct {
	Plans []Plan `yaml:"plans"`
}

// Catalog maps plan ids to the features they grant. It is immutable after construction.
type Catalog struct {
	plans map[string]map[string]bool
}

// NewCatalog builds a catalog in which every listed plan grants AI analysis.
func NewCatalog(allowed []string) *Catalog {
	c := &Catalog{plans: make(map[string]map[string]bool, len(allowed))}
	for _, id := range allowed {
		c.add(Plan{ID: id, Features: []string{FeatureAIAnalysis}})
	}
	return c
}

// LoadCatalog reads a YAML plan catalog from path.
func LoadCatalog(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading plan catalog: %w", err)
	}
	return ParseCatalog(data)
}

// ParseCatalog parses a YAML document of the form:
//
//	plans:
//	  - id: pro
//	    features: [ai_analysis]
func ParseCatalog(data []byte) (*Catalog, error) {
	var f catalogFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parsing plan catalog: %w", err)
	}

	c := &Catalog{plans: make(map[string]map[string]bool, len(f.Plans))}
	for i, p := range f.Plans {
		if strings.TrimSpace(p.ID) == "" {
			return nil, fmt.Errorf("plan catalog entry %d: id is required", i)
		}
		if _, dup := c.plans[p.ID]; dup {
			return nil, fmt.Errorf("plan catalog: duplicate plan id %q", p.ID)
		}
		c.add(p)
	}
	return c, nil
}

func (c *Catalog) add(p Plan) {
	features := make(map[string]bool, len(p.Features))
	for _, f := range p.Features {
		features[strings.TrimSpace(f)] = true
	}
	c.plans[strings.TrimSpace(p.ID)] = features
}

// Grants reports whether planID is listed and grants feature.
func (c *Catalog) Grants(planID, feature string) bool {
	if c == nil || planID == "" {
		return false
	}
	return c.plans[planID][feature]
}

// Len returns the number of plans in the catalog.
func (c *Catalog) Len() int {
	if c == nil {
		return 0
	}
	return len(c.plans)
}
