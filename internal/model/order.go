package model

// CartItem is one line of a table's open order.
//
// Fields:
//
//	MenuItemID – identifier of the dish on the menu.
//	Name       – display name captured when the line was added.
//	Price      – unit price in cents.
//	Quantity   – units ordered; lines never persist with zero.
//	Image      – optional picture URL.
type CartItem struct {
	MenuItemID int    `json:"menuItemId"`
	Name       string `json:"name"`
	Price      int    `json:"price"`
	Quantity   int    `json:"quantity"`
	Image      string `json:"image"`
}
