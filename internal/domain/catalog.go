package domain

// Product is one entry of the demo catalog served by the REST backend.
type Product struct {
	ID          int64   `json:"id"`
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Price       float64 `json:"price"`
	Stock       int     `json:"stock"`
}

// Order is one customer order of the demo backend. Status is one of
// pending, shipped, delivered, cancelled.
type Order struct {
	ID         int64   `json:"id"`
	CustomerID int64   `json:"customerId"`
	ProductID  int64   `json:"productId"`
	Quantity   int     `json:"quantity"`
	Status     string  `json:"status"`
	Total      float64 `json:"total"`
}
