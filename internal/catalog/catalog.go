// Package catalog provides the read-only list of purchasable templates and packages.
package catalog

import (
	"context"
	"errors"
	"fmt"

	"github.com/fjod/inviteu/internal/domain"
)

var ErrNotFound = errors.New("catalog entry not found")

// packageNamePrefix is prepended to package names when they are offered for sale.
const packageNamePrefix = "Paquete "

type Template struct {
	ID       string
	Name     string
	Category string
	Price    int64
}

type Package struct {
	ID       string
	Name     string
	MinPrice int64
	MaxPrice int64
	Featured bool
}

func (t Template) Entry() domain.CatalogEntry {
	return domain.CatalogEntry{
		ID:        t.ID,
		Kind:      domain.KindTemplate,
		Name:      t.Name,
		UnitPrice: t.Price,
	}
}

// Entry prices a package at its top tier.
func (p Package) Entry() domain.CatalogEntry {
	return domain.CatalogEntry{
		ID:        p.ID,
		Kind:      domain.KindPackage,
		Name:      packageNamePrefix + p.Name,
		UnitPrice: p.MaxPrice,
		MinPrice:  p.MinPrice,
	}
}

// Static serves a fixed catalog from memory.
type Static struct {
	templates []Template
	packages  []Package
}

func NewStatic(templates []Template, packages []Package) *Static {
	return &Static{templates: templates, packages: packages}
}

// Default returns the storefront's built-in catalog.
func Default() *Static {
	return NewStatic(DefaultTemplates(), DefaultPackages())
}

func (s *Static) FindTemplate(_ context.Context, id string) (domain.CatalogEntry, error) {
	for _, t := range s.templates {
		if t.ID == id {
			return t.Entry(), nil
		}
	}
	return domain.CatalogEntry{}, fmt.Errorf("%w: template %q", ErrNotFound, id)
}

func (s *Static) FindPackage(_ context.Context, id string) (domain.CatalogEntry, error) {
	for _, p := range s.packages {
		if p.ID == id {
			return p.Entry(), nil
		}
	}
	return domain.CatalogEntry{}, fmt.Errorf("%w: package %q", ErrNotFound, id)
}

func (s *Static) List(context.Context) ([]domain.CatalogEntry, error) {
	entries := make([]domain.CatalogEntry, 0, len(s.templates)+len(s.packages))
	for _, t := range s.templates {
		entries = append(entries, t.Entry())
	}
	for _, p := range s.packages {
		entries = append(entries, p.Entry())
	}
	return entries, nil
}

func DefaultTemplates() []Template {
	return []Template{
		{ID: "boda-elegante", Name: "Boda Elegante", Category: "bodas", Price: 299},
		{ID: "boda-rustica", Name: "Boda Rústica", Category: "bodas", Price: 299},
		{ID: "cumple-festivo", Name: "Cumpleaños Festivo", Category: "cumpleanos", Price: 199},
		{ID: "cumple-elegante", Name: "Cumpleaños Elegante", Category: "cumpleanos", Price: 199},
		{ID: "bautizo-angelical", Name: "Bautizo Angelical", Category: "bautizos", Price: 179},
		{ID: "baby-dulce", Name: "Baby Shower Dulce", Category: "baby-shower", Price: 159},
	}
}

func DefaultPackages() []Package {
	return []Package{
		{ID: "basico", Name: "Básico", MinPrice: 159, MaxPrice: 299},
		{ID: "intermedio", Name: "Intermedio", MinPrice: 299, MaxPrice: 499, Featured: true},
		{ID: "premium", Name: "Premium", MinPrice: 499, MaxPrice: 799},
	}
}
