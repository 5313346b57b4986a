package domain

// CatalogItem is a purchasable book. The core only reads it.
type CatalogItem struct {
	ID              string `json:"id"`
	Code            int64  `json:"code"`
	Name            string `json:"name"`
	Author          string `json:"author"`
	ImageURL        string `json:"image"`
	Price           Money  `json:"price"`
	DiscountedPrice Money  `json:"discountedPrice"`
	DiscountRate    string `json:"discountRate"`
	Genre           string `json:"genre"`
	Description     string `json:"description"`
}
