package common

// SecretValue is a string that is protected from being logged.
// Connection strings carry credentials; log the SecretValue, not the raw string.
type SecretValue string

// String returns a masked representation of the secret value
func (s SecretValue) String() string {
	return "********"
}

// Reveal returns the underlying value for actual use
func (s SecretValue) Reveal() string {
	return string(s)
}
