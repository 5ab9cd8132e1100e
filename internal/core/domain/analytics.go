package domain

import "github.com/shopspring/decimal"

// Uncategorized is the bucket for products with no category assignment.
const Uncategorized = "uncategorized"

type TypeCount struct {
	FileType FileType `json:"filetype"`
	Count    int      `json:"count"`
}

type DashboardStats struct {
	TypeCounts       []TypeCount `json:"type_counts"`
	Sizes            []int64     `json:"sizes"`
	AveragePageCount *float64    `json:"average_page_count"`
	DocumentCount    int         `json:"document_count"`
}

type SupplierUsage struct {
	SupplierID    int64  `json:"supplier_id"`
	SupplierName  string `json:"supplier_name"`
	DocumentCount int    `json:"document_count"`
}

type ProductTotals struct {
	Product       string          `json:"product"`
	TotalQuantity decimal.Decimal `json:"total_quantity"`
	TotalValue    decimal.Decimal `json:"total_value"`
}

type CategoryTotals struct {
	Category      string          `json:"category"`
	TotalQuantity decimal.Decimal `json:"total_quantity"`
	TotalValue    decimal.Decimal `json:"total_value"`
	Products      []string        `json:"products"`
}

type MonthlyPoint struct {
	Month            Month           `json:"month"`
	TotalQuantity    decimal.Decimal `json:"total_quantity"`
	TotalValue       decimal.Decimal `json:"total_value"`
	AverageUnitPrice decimal.Decimal `json:"average_unit_price"`
}

type CategoryAssignment struct {
	Product  string `json:"product"`
	Category string `json:"category"`
}

type ProductForecast struct {
	Product           string  `json:"product"`
	CurrentMonth      *Month  `json:"current_month,omitempty"`
	CurrentQuantity   float64 `json:"current_quantity"`
	ProjectedQuantity float64 `json:"projected_quantity"`
	HorizonMonths     int     `json:"horizon_months"`
	Trend             float64 `json:"trend"`
	DataPoints        int     `json:"data_points"`
}

type Forecast struct {
	Products    []ProductForecast `json:"products"`
	Suggestions []string          `json:"suggestions"`
}

// ProductSort names the metric a product ranking is ordered by.
type ProductSort string

const (
	SortByValue    ProductSort = "value"
	SortByQuantity ProductSort = "quantity"
)
