package domain

import "time"

// Category groups courses on the storefront. Key is the stable identifier
// courses reference; CourseCount is filled in by listings.
type Category struct {
	ID          string    `json:"id"`
	Key         string    `json:"key"`
	Name        string    `json:"name"`
	Slug        string    `json:"slug,omitempty"`
	Description string    `json:"description,omitempty"`
	CourseCount int       `json:"courseCount"`
	CreatedAt   time.Time `json:"createdAt"`
}
