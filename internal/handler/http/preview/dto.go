// Package preview provides the HTTP handler for POST /preview.
package preview

import "centscape-preview/internal/domain/entity"

// Request is the POST /preview body.
type Request struct {
	URL     string `json:"url" example:"https://shop.example.com/products/desk-lamp"`
	RawHTML string `json:"raw_html,omitempty" example:"<html><head><meta property=\"og:title\" content=\"Desk Lamp\"></head></html>"`
}

// DTO is the preview returned to clients. Absent fields are null, never
// omitted.
type DTO struct {
	Title     *string  `json:"title" example:"Desk Lamp"`
	Image     *string  `json:"image" example:"https://shop.example.com/images/lamp.jpg"`
	Price     *float64 `json:"price" example:"49.99"`
	Currency  *string  `json:"currency" example:"USD"`
	SiteName  *string  `json:"siteName" example:"Example Shop"`
	SourceURL string   `json:"sourceUrl" example:"https://shop.example.com/products/desk-lamp"`
}

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error string `json:"error" example:"invalid url"`
}

func toDTO(p *entity.Preview) DTO {
	return DTO{
		Title:     p.Title,
		Image:     p.Image,
		Price:     p.Price,
		Currency:  p.Currency,
		SiteName:  p.SiteName,
		SourceURL: p.SourceURL,
	}
}
