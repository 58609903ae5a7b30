package catalog

import (
	"context"
	"errors"
	"math"

	"vox-be/internal/apperr"
)

// Line is one cart entry to be priced.
type Line struct {
	ProductID string
	VariantID string
	Color     string
	Quantity  int
}

type PricedLine struct {
	Line
	ProductName string
	UnitPrice   int64
	LineTotal   int64
}

type Quote struct {
	Lines []PricedLine
	Total int64
}

// Pricer derives the authoritative amount from catalog state. Client totals
// are only ever compared against its result.
type Pricer struct {
	lookup Lookup
}

func NewPricer(lookup Lookup) *Pricer {
	return &Pricer{lookup: lookup}
}

func (p *Pricer) Quote(ctx context.Context, lines []Line) (*Quote, error) {
	if len(lines) == 0 {
		return nil, apperr.Validation("cart is empty")
	}

	q := &Quote{Lines: make([]PricedLine, 0, len(lines))}
	for i, line := range lines {
		if line.ProductID == "" {
			return nil, apperr.Validationf("item %d: product reference is required", i+1)
		}
		if line.Quantity <= 0 {
			return nil, apperr.Validationf("item %d: quantity must be a positive integer", i+1)
		}

		product, err := p.lookup.GetProduct(ctx, line.ProductID)
		if errors.Is(err, ErrProductNotFound) {
			return nil, apperr.Validationf("item %d: unknown product %s", i+1, line.ProductID)
		}
		if err != nil {
			return nil, err
		}

		unit, err := UnitPrice(product, line.VariantID, line.Color)
		if err != nil {
			return nil, apperr.Validationf("item %d: %s", i+1, err.Error())
		}
		if unit <= 0 {
			return nil, apperr.Validationf("item %d: product %s has no price", i+1, line.ProductID)
		}

		if unit > math.MaxInt64/int64(line.Quantity) {
			return nil, apperr.Validationf("item %d: amount out of range", i+1)
		}
		total := unit * int64(line.Quantity)
		if q.Total > math.MaxInt64-total {
			return nil, apperr.Validation("order amount out of range")
		}

		q.Lines = append(q.Lines, PricedLine{
			Line:        line,
			ProductName: product.Name,
			UnitPrice:   unit,
			LineTotal:   total,
		})
		q.Total += total
	}

	return q, nil
}

// UnitPrice is the color price when the variant and color both match and the
// color carries a price, otherwise the product's base price.
func UnitPrice(p *Product, variantRef, color string) (int64, error) {
	if variantRef == "" {
		return p.BasePrice(), nil
	}

	v, ok := p.FindVariant(variantRef)
	if !ok {
		return 0, errors.New("unknown variant " + variantRef)
	}
	if color == "" {
		return p.BasePrice(), nil
	}

	c, ok := v.FindColor(color)
	if !ok {
		return 0, errors.New("unknown color " + color)
	}
	if c.Price > 0 {
		return c.Price, nil
	}
	return p.BasePrice(), nil
}
