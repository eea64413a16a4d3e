// Package credential resolves the service-account key used to reach the
// managed document store.
package credential

import (
	"errors"
	"fmt"
	"os"

	"github.com/bytedance/sonic"
)

// ErrNotFound is returned when neither the env var nor the key file is present
var ErrNotFound = errors.New("no credentials found")

// Credentials is a resolved service-account key
type Credentials struct {
	JSON        []byte
	ProjectID   string
	ClientEmail string
	// Source is "env:<NAME>" or "file:<path>"
	Source string
}

type serviceAccount struct {
	Type        string `json:"type"`
	ProjectID   string `json:"project_id"`
	ClientEmail string `json:"client_email"`
}

// Load reads the JSON blob from the env var envKey if it is set and non-empty,
// otherwise from filePath. It fails when neither source is available or the
// content is not a JSON object.
func Load(envKey, filePath string) (*Credentials, error) {
	if envKey != "" {
		if blob := os.Getenv(envKey); blob != "" {
			return parse([]byte(blob), "env:"+envKey)
		}
	}

	if filePath != "" {
		data, err := os.ReadFile(filePath)
		if err == nil {
			return parse(data, "file:"+filePath)
		}
		if !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("failed to read credentials file %s: %w", filePath, err)
		}
	}

	return nil, fmt.Errorf("%w: set %s or provide %s", ErrNotFound, envKey, filePath)
}

func parse(data []byte, source string) (*Credentials, error) {
	var sa serviceAccount
	if err := sonic.Unmarshal(data, &sa); err != nil {
		return nil, fmt.Errorf("invalid credentials from %s: %w", source, err)
	}

	return &Credentials{
		JSON:        data,
		ProjectID:   sa.ProjectID,
		ClientEmail: sa.ClientEmail,
		Source:      source,
	}, nil
}
