// Package domain contains core domain types for the skincare assistant.
package domain

import "strings"

// Product is a row of the product table.
type Product struct {
	ID             string   `json:"id"`
	Name           string   `json:"name"`
	Description    string   `json:"description"`
	ImageURL       string   `json:"image_url"`
	ProductURL     string   `json:"product_url"`
	Category       string   `json:"category"`
	SkinConcerns   []string `json:"skin_concerns"`
	KeyIngredients []string `json:"key_ingredients"`
	// IsAlternative is set when the product was only picked to fill the card slots.
	IsAlternative bool `json:"isAlternative,omitempty"`
}

// HasConcern reports whether the product lists the given skin concern.
func (p *Product) HasConcern(concern string) bool {
	concern = strings.ToLower(strings.TrimSpace(concern))
	for _, c := range p.SkinConcerns {
		if strings.ToLower(c) == concern {
			return true
		}
	}
	return false
}

// ProductIDs returns the ids of the given products in order.
func ProductIDs(products []Product) []string {
	ids := make([]string, 0, len(products))
	for _, p := range products {
		ids = append(ids, p.ID)
	}
	return ids
}
