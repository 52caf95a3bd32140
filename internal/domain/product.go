package domain

// Product is the display data for a SKU. It carries no price.
type Product struct {
	SKU          string `json:"sku"`
	Name         string `json:"name"`
	Presentation string `json:"presentation,omitempty"`
}
