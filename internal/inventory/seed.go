package inventory

// Seed loads the demo catalogue, a few orders and the default admin
// account. Mutations run through the normal store methods so the event
// log starts with the matching Created/OrderPlaced history.
func Seed(s *Store) error {
	if _, err := s.CreateUser(UserInput{
		Username: "admin",
		Password: "change-me-please",
		FullName: "Admin User",
		Role:     "admin",
	}); err != nil {
		return err
	}

	products := []ProductInput{
		{Name: "Wireless Headphones", SKU: "WH-0023-B", Category: "Electronics", Quantity: 25, ReorderLevel: 10, Price: 7999},
		{Name: "Smart Watches", SKU: "SW-1010-S", Category: "Wearables", Quantity: 2, ReorderLevel: 10, Price: 12999},
		{Name: "Bluetooth Speakers", SKU: "BS-4560-P", Category: "Audio", Quantity: 42, ReorderLevel: 15, Price: 5999},
		{Name: "USB-C Cables", SKU: "CB-3454-U", Category: "Accessories", Quantity: 8, ReorderLevel: 20, Price: 1599},
		{Name: "Phone Cases", SKU: "PC-7890-V", Category: "Accessories", Quantity: 65, ReorderLevel: 25, Price: 1999},
	}
	for _, in := range products {
		if _, err := s.CreateProduct(in); err != nil {
			return err
		}
	}

	orders := []OrderInput{
		{OrderNumber: "ORD-45782", Status: string(OrderStatusPending), Total: 24500},
		{OrderNumber: "ORD-45783", Status: string(OrderStatusPending), Total: 15999},
		{OrderNumber: "ORD-45784", Status: string(OrderStatusShipped), Total: 9999},
	}
	for _, in := range orders {
		if _, err := s.PlaceOrder(in); err != nil {
			return err
		}
	}

	_, err := s.RecordNotice(NoticeInput{
		Description: "TechSupplyCo updated their delivery timeframe to 3-5 days",
	})
	return err
}
