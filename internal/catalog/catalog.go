// Package catalog defines tour packages and the store contract the assistant
// and the admin dashboard read them through.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

var (
	ErrNotFound = errors.New("package not found")
	ErrInvalid  = errors.New("invalid package")
)

// Package is a sellable multi-day tour.
type Package struct {
	ID           int      `json:"id"`
	Name         string   `json:"name"`
	DurationDays int      `json:"duration"`
	Price        int64    `json:"price"`
	MaxPeople    int      `json:"maxPeople"`
	Includes     []string `json:"includes"`
	Locations    []string `json:"locations"`
	Image        string   `json:"image"`
	Description  string   `json:"description"`
	// PrivateInfo is only ever shown to admins.
	PrivateInfo string `json:"privateInfo,omitempty"`
}

// Public returns a copy without admin-only fields.
func (p Package) Public() Package {
	p.PrivateInfo = ""
	return p
}

func (p Package) Validate() error {
	switch {
	case strings.TrimSpace(p.Name) == "":
		return fmt.Errorf("%w: name is required", ErrInvalid)
	case p.DurationDays < 1:
		return fmt.Errorf("%w: duration must be at least 1 day", ErrInvalid)
	case p.Price < 0:
		return fmt.Errorf("%w: price must not be negative", ErrInvalid)
	case p.MaxPeople < 1:
		return fmt.Errorf("%w: maxPeople must be at least 1", ErrInvalid)
	}
	return nil
}

// Patch is a partial update; nil fields are left untouched.
type Patch struct {
	Name         *string   `json:"name,omitempty"`
	DurationDays *int      `json:"duration,omitempty"`
	Price        *int64    `json:"price,omitempty"`
	MaxPeople    *int      `json:"maxPeople,omitempty"`
	Includes     *[]string `json:"includes,omitempty"`
	Locations    *[]string `json:"locations,omitempty"`
	Image        *string   `json:"image,omitempty"`
	Description  *string   `json:"description,omitempty"`
	PrivateInfo  *string   `json:"privateInfo,omitempty"`
}

// Apply returns p with the patch fields merged in. The id never changes.
func (pt Patch) Apply(p Package) Package {
	if pt.Name != nil {
		p.Name = *pt.Name
	}
	if pt.DurationDays != nil {
		p.DurationDays = *pt.DurationDays
	}
	if pt.Price != nil {
		p.Price = *pt.Price
	}
	if pt.MaxPeople != nil {
		p.MaxPeople = *pt.MaxPeople
	}
	if pt.Includes != nil {
		p.Includes = append([]string(nil), (*pt.Includes)...)
	}
	if pt.Locations != nil {
		p.Locations = append([]string(nil), (*pt.Locations)...)
	}
	if pt.Image != nil {
		p.Image = *pt.Image
	}
	if pt.Description != nil {
		p.Description = *pt.Description
	}
	if pt.PrivateInfo != nil {
		p.PrivateInfo = *pt.PrivateInfo
	}
	return p
}

// Reader is the read-only view the assistant needs.
type Reader interface {
	List(ctx context.Context) ([]Package, error)
	Get(ctx context.Context, id int) (Package, error)
}

// Store is the full keyed-record store used by the admin dashboard.
type Store interface {
	Reader
	Create(ctx context.Context, p Package) (Package, error)
	Update(ctx context.Context, id int, patch Patch) (Package, error)
	Delete(ctx context.Context, id int) error
}

// NextID mirrors how the site numbered packages: one past the highest id.
func NextID(pkgs []Package) int {
	max := 0
	for _, p := range pkgs {
		if p.ID > max {
			max = p.ID
		}
	}
	return max + 1
}

// Clone deep-copies the slice fields so callers cannot mutate store state.
func (p Package) Clone() Package {
	p.Includes = append([]string(nil), p.Includes...)
	p.Locations = append([]string(nil), p.Locations...)
	return p
}
