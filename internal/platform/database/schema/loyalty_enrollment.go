package schema

// LoyaltyEnrollmentTable represents the 'loyalty.enrollment' table
type LoyaltyEnrollmentTable struct {
	Table      string
	ID         string
	ProgramID  string
	CustomerID string
	Points     string
	Status     string
	EnrolledAt string
}

// LoyaltyEnrollment is the schema definition for loyalty.enrollment
var LoyaltyEnrollment = LoyaltyEnrollmentTable{
	Table:      "loyalty.enrollment",
	ID:         "id",
	ProgramID:  "programid",
	CustomerID: "customerid",
	Points:     "points",
	Status:     "status",
	EnrolledAt: "enrolledat",
}
