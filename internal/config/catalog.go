package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Item types accepted by the pipeline and the ranking query.
const (
	TypeKnife = "knife"
	TypeGlove = "glove"
	TypeBoth  = "both"
)

// Export categories as Marketplace A reports them in the "type" column.
const (
	CategoryKnife  = "Knife"
	CategoryGloves = "Gloves"
)

var ErrInvalidItemType = errors.New("invalid item type: expected knife, glove or both")

var defaultItems = []string{
	"Butterfly Knife", "Falchion Knife", "Flip Knife", "Gut Knife", "Huntsman Knife",
	"Karambit", "M9 Bayonet", "Shadow Daggers", "Bowie Knife", "Stiletto Knife",
	"Talon Knife", "Ursus Knife", "Skeleton Knife", "Paracord Knife", "Survival Knife",
	"Bloodhound Gloves", "Broken Fang Gloves", "Driver Gloves", "Hand Wraps", "Hydra Gloves",
	"Moto Gloves", "Specialist Gloves", "Sport Gloves",
}

// Catalog is the static list of tracked base item names split into knives and gloves.
// Names are stored lower-cased since every consumer matches case-insensitively.
type Catalog struct {
	Knives []string
	Gloves []string
}

type catalogFile struct {
	Items []string `yaml:"items"`
}

func DefaultCatalog() *Catalog {
	return NewCatalog(defaultItems)
}

// NewCatalog classifies names: anything mentioning gloves or hand wraps is a glove.
func NewCatalog(items []string) *Catalog {
	c := &Catalog{}
	for _, item := range items {
		lc := strings.ToLower(strings.TrimSpace(item))
		if lc == "" {
			continue
		}
		if strings.Contains(lc, "gloves") || strings.Contains(lc, "hand wraps") {
			c.Gloves = append(c.Gloves, lc)
		} else {
			c.Knives = append(c.Knives, lc)
		}
	}
	return c
}

// LoadCatalog reads a YAML file of the form `items: [...]`.
func LoadCatalog(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read items file: %w", err)
	}
	var f catalogFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse items file: %w", err)
	}
	if len(f.Items) == 0 {
		return nil, fmt.Errorf("items file %s has no items", path)
	}
	return NewCatalog(f.Items), nil
}

// Filter returns the lower-cased name filters and the export categories for an item type.
func (c *Catalog) Filter(itemType string) ([]string, []string, error) {
	switch itemType {
	case TypeKnife:
		return clone(c.Knives), []string{CategoryKnife}, nil
	case TypeGlove:
		return clone(c.Gloves), []string{CategoryGloves}, nil
	case TypeBoth:
		names := append(clone(c.Knives), c.Gloves...)
		return names, []string{CategoryKnife, CategoryGloves}, nil
	default:
		return nil, nil, fmt.Errorf("%w: %q", ErrInvalidItemType, itemType)
	}
}

// Subtypes lists the options offered in the subtype selection step.
func (c *Catalog) Subtypes(itemType string) []string {
	names, _, err := c.Filter(itemType)
	if err != nil {
		return nil
	}
	return names
}

func ValidItemType(itemType string) bool {
	return itemType == TypeKnife || itemType == TypeGlove || itemType == TypeBoth
}

func clone(s []string) []string {
	out := make([]string, len(s))
	copy(out, s)
	return out
}
