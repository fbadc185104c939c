package schema

// AuthAuditLogTable represents the 'auth.auditlog' table
type AuthAuditLogTable struct {
	Table        string
	ID           string
	PrincipalID  string
	Action       string
	ResourceType string
	ResourceID   string
	Result       string
	Reason       string
	IPAddress    string
	UserAgent    string
	CreatedAt    string
}

// AuthAuditLog is the schema definition for auth.auditlog
var AuthAuditLog = AuthAuditLogTable{
	Table:        "auth.auditlog",
	ID:           "id",
	PrincipalID:  "principalid",
	Action:       "action",
	ResourceType: "resourcetype",
	ResourceID:   "resourceid",
	Result:       "result",
	Reason:       "reason",
	IPAddress:    "ipaddress",
	UserAgent:    "useragent",
	CreatedAt:    "createdat",
}
