package schema

// LoyaltyCardTable represents the 'loyalty.card' table
type LoyaltyCardTable struct {
	Table      string
	ID         string
	ProgramID  string
	CustomerID string
	BusinessID string
	Balance    string
	Status     string
	IssuedAt   string
}

// LoyaltyCard is the schema definition for loyalty.card
var LoyaltyCard = LoyaltyCardTable{
	Table:      "loyalty.card",
	ID:         "id",
	ProgramID:  "programid",
	CustomerID: "customerid",
	BusinessID: "businessid",
	Balance:    "balance",
	Status:     "status",
	IssuedAt:   "issuedat",
}
