package domain

// Book is the catalog record. Stock is mutated only through the borrow
// path; Price is a display field overwritten at read time by pricing
// enrichment and never written back to the store.
type Book struct {
	ID     int64   `json:"id"`
	Title  string  `json:"title"`
	Author string  `json:"author"`
	Stock  int     `json:"stock"`
	Price  float64 `json:"price"`
}
