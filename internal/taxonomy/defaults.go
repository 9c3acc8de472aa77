package taxonomy

import "github.com/erazemk/popis/internal/model"

// Defaults are seeded into a kind the first time it is found empty.
var Defaults = map[model.Kind][]string{
	model.KindCategory: {
		"Electronics", "Tools", "Furniture", "Office Supplies", "Kitchen", "Clothing", "Books", "Other",
	},
	model.KindSubcategory: {
		"Accessories", "Cables", "Hand Tools", "Power Tools", "Parts", "General",
	},
	model.KindStorageLocation: {
		"Warehouse", "Garage", "Basement", "Attic", "Office", "Storage Unit",
	},
	model.KindBinLocation: {
		"A1", "A2", "A3", "B1", "B2", "B3",
	},
	model.KindRoom: {
		"Living Room", "Kitchen", "Bedroom", "Office", "Garage", "Basement",
	},
	model.KindVendor: {
		"Amazon", "eBay", "Home Depot", "Local Store", "Other",
	},
	model.KindProject: {
		"General", "Personal", "Resale",
	},
}
