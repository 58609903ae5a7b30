package catalog

import (
	"errors"
	"strings"
)

var (
	ErrProductNotFound = errors.New("product not found")
	ErrCacheMiss       = errors.New("cache miss")
)

// Prices are in minor units (paise).
type Color struct {
	Name  string `json:"name"`
	Price int64  `json:"price"`
}

type Variant struct {
	ID     string  `json:"id"`
	Name   string  `json:"name"`
	Colors []Color `json:"colors"`
}

type Product struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Slug       string    `json:"slug"`
	Price      int64     `json:"price"`
	OfferPrice int64     `json:"offerPrice,omitempty"`
	Variants   []Variant `json:"variants"`
}

// BasePrice is the offer price when one is set, otherwise the list price.
func (p *Product) BasePrice() int64 {
	if p.OfferPrice > 0 {
		return p.OfferPrice
	}
	return p.Price
}

// FindVariant matches by id first, then case-insensitively by name.
func (p *Product) FindVariant(ref string) (*Variant, bool) {
	for i := range p.Variants {
		if p.Variants[i].ID == ref {
			return &p.Variants[i], true
		}
	}
	for i := range p.Variants {
		if strings.EqualFold(p.Variants[i].Name, ref) {
			return &p.Variants[i], true
		}
	}
	return nil, false
}

func (v *Variant) FindColor(name string) (*Color, bool) {
	for i := range v.Colors {
		if strings.EqualFold(v.Colors[i].Name, name) {
			return &v.Colors[i], true
		}
	}
	return nil, false
}

// ParseRef splits a cart reference of the form "productId|variantId|colorName".
// Missing parts come back empty.
func ParseRef(raw string) (productID, variantID, color string) {
	parts := strings.SplitN(strings.TrimSpace(raw), "|", 3)
	productID = strings.TrimSpace(parts[0])
	if len(parts) > 1 {
		variantID = strings.TrimSpace(parts[1])
	}
	if len(parts) > 2 {
		color = strings.TrimSpace(parts[2])
	}
	return productID, variantID, color
}
