package domain

// CartItem is one purchasable course held in the cart with its price snapshot.
type CartItem struct {
	ID    string  `json:"id"`
	Title string  `json:"title"`
	Price float64 `json:"price"`
	Image string  `json:"image,omitempty"`
}

// CartState is the cart as shown to the storefront. IsCartOpen is a UI flag
// and is never persisted.
type CartState struct {
	Items      []CartItem `json:"items"`
	TotalItems int        `json:"totalItems"`
	TotalPrice float64    `json:"totalPrice"`
	IsCartOpen bool       `json:"isCartOpen"`
}

type CartSummary struct {
	Subtotal float64 `json:"subtotal"`
	Tax      float64 `json:"tax"`
	Total    float64 `json:"total"`
}
