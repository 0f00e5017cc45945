package model

// Settings is the persisted user configuration. It is read at startup and
// mutated only through the settings store's validated write path.
type Settings struct {
	APIKey          string `json:"api_key"`
	APIKeyValidated bool   `json:"api_key_validated"`
	SaveDirectory   string `json:"save_directory"`
}
