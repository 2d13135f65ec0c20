package config

// Secret holds a credential such as a webhook URL or a bot token. Every
// stringification path redacts it; the raw value is only reachable through
// Reveal, which keeps accidental logging of the config struct harmless.
type Secret string

// Reveal returns the raw credential for wiring into a client
func (s Secret) Reveal() string {
	return string(s)
}

func (s Secret) String() string {
	if s == "" {
		return ""
	}
	return "[REDACTED]"
}

// MarshalYAML redacts the secret when the config is dumped as YAML
func (s Secret) MarshalYAML() (interface{}, error) {
	if s == "" {
		return "", nil
	}
	return "[REDACTED]", nil
}

// MarshalJSON redacts the secret when the config is dumped as JSON
func (s Secret) MarshalJSON() ([]byte, error) {
	return []byte(`"[REDACTED]"`), nil
}

// GoString redacts the secret under the %#v verb
func (s Secret) GoString() string {
	if s == "" {
		return `""`
	}
	return `"[REDACTED]"`
}
