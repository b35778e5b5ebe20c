package models

// Category represents a spending category label.
// The taxonomy in force is declared by the loaded rule set; the constants below
// are the labels shipped with the default rules.
type Category string

const (
	CategoryFinancial     Category = "Financial Services"
	CategoryUtilities     Category = "Phone/Utilities"
	CategorySubscriptions Category = "Tech & Subs"
	CategoryTransport     Category = "Transportation"
	CategoryGroceries     Category = "Grocery/Daily"
	CategoryFastFood      Category = "Fast Food"
	CategoryDining        Category = "Dining/Restaurants"
	CategoryDelivery      Category = "Delivery"
	CategoryServices      Category = "Services/Laundry"
	CategoryEntertainment Category = "Entertainment"
	CategoryRetail        Category = "Retail/Shopping"
	CategoryCash          Category = "ATM/Cash"
	CategoryVending       Category = "Vending/Snacks"
	CategoryHealthcare    Category = "Healthcare"
	CategoryHome          Category = "Home/Hardware"

	// Sentinels. Never produced by a rule.
	CategoryExcluded      Category = "Excluded"
	CategoryUncategorized Category = "Other/Uncategorized"
)

// IsSentinel reports whether c is one of the fixed non-rule labels.
func (c Category) IsSentinel() bool {
	return c == CategoryExcluded || c == CategoryUncategorized
}
