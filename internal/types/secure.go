package types

import "log/slog"

const redacted = "[redacted]"

// SecretString holds a credential such as the admin key hash, a database
// URL or a webhook URL. fmt, encoding/json and slog all see a placeholder;
// call Unmask where the raw value is handed to a driver or client.
type SecretString string

func (s SecretString) String() string { return redacted }

func (s SecretString) GoString() string { return redacted }

// LogValue keeps secrets out of structured logs even when a whole config
// struct is logged.
func (s SecretString) LogValue() slog.Value {
	return slog.StringValue(redacted)
}

func (s SecretString) MarshalJSON() ([]byte, error) {
	return []byte(`"` + redacted + `"`), nil
}

// Unmask returns the raw value.
func (s SecretString) Unmask() string {
	return string(s)
}

// IsSet reports whether a value was configured.
func (s SecretString) IsSet() bool {
	return s != ""
}
