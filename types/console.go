package types

// ConsoleConfig is supplied on topic "config/console".
type ConsoleConfig struct {
	Default string `json:"default"`          // capability name used by a bare "read"
	Domain  string `json:"domain,omitempty"` // default "range"
	Prompt  string `json:"prompt,omitempty"`
}
