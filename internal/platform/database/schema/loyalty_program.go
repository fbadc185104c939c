package schema

// LoyaltyProgramTable represents the 'loyalty.program' table
type LoyaltyProgramTable struct {
	Table          string
	ID             string
	BusinessID     string
	Name           string
	PointsPerVisit string
	Status         string
	CreatedAt      string
}

// LoyaltyProgram is the schema definition for loyalty.program
var LoyaltyProgram = LoyaltyProgramTable{
	Table:          "loyalty.program",
	ID:             "id",
	BusinessID:     "businessid",
	Name:           "name",
	PointsPerVisit: "pointspervisit",
	Status:         "status",
	CreatedAt:      "createdat",
}
