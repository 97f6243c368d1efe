package domain

import "time"

type Course struct {
	ID          string    `json:"id"`
	CategoryKey string    `json:"categoryKey,omitempty"`
	Key         string    `json:"key"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	Price       float64   `json:"price"`
	Currency    string    `json:"currency"`
	Image       string    `json:"image,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
}

// CartItem snapshots the course for the cart.
func (c Course) CartItem() CartItem {
	return CartItem{ID: c.ID, Title: c.Title, Price: c.Price, Image: c.Image}
}
