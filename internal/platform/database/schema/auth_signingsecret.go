package schema

// AuthSigningSecretTable represents the 'auth.signingsecret' table
type AuthSigningSecretTable struct {
	Table         string
	Version       string
	Material      string
	CreatedAt     string
	RetiredAt     string
	StrengthScore string
}

// AuthSigningSecret is the schema definition for auth.signingsecret
var AuthSigningSecret = AuthSigningSecretTable{
	Table:         "auth.signingsecret",
	Version:       "version",
	Material:      "material",
	CreatedAt:     "createdat",
	RetiredAt:     "retiredat",
	StrengthScore: "strengthscore",
}
