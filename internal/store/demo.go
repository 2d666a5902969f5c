package store

import "github.com/ginjaninja78/billing-inquiry/internal/types"

// demoRecords are served when no dataset has been uploaded yet.
var demoRecords = []types.BillingRecord{
	{
		ID:                 "1",
		AccountNumber:      "100-001-234",
		AccountName:        "Juan Dela Cruz",
		Address:            "Purok 1, Poblacion",
		Amount:             520.50,
		DueDate:            "2023-11-15",
		AmountAfterDueDate: 572.55,
	},
	{
		ID:                 "2",
		AccountNumber:      "100-002-567",
		AccountName:        "Maria Santos",
		Address:            "Barangay San Jose",
		Amount:             380.00,
		DueDate:            "2023-11-15",
		AmountAfterDueDate: 418.00,
	},
	{
		ID:                 "3",
		AccountNumber:      "100-003-890",
		AccountName:        "Buenavista Elementary School",
		Address:            "Highway Road, Centro",
		Amount:             3200.00,
		DueDate:            "2023-11-15",
		AmountAfterDueDate: 3520.00,
	},
	{
		ID:                 "4",
		AccountNumber:      "100-004-111",
		AccountName:        "Ricardo Dalisay",
		Address:            "Sitio Kawayan",
		Amount:             250.75,
		DueDate:            "2023-11-15",
		AmountAfterDueDate: 275.80,
	},
}

// DemoRecords returns a fresh copy of the sample dataset.
func DemoRecords() []types.BillingRecord {
	return Clone(demoRecords)
}
