package models

// Query parameters of the read-only HTTP API.

type RegimeRequest struct {
	Symbol string `query:"symbol" json:"symbol" validate:"required"`
}

type SignalsRequest struct {
	Symbol string `query:"symbol" json:"symbol"`
	Limit  int    `query:"limit" json:"limit" default:"50" validate:"gte=1,lte=100"`
}

type ClosedPositionsRequest struct {
	Symbol string `query:"symbol" json:"symbol"`
	Limit  int    `query:"limit" json:"limit" default:"100" validate:"gte=1,lte=1000"`
}
