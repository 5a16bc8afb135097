package pluginctx

import (
	"fmt"
	"strings"

	"github.com/vinayprograms/pluginkit/errors"
)

// Manifest describes a plugin. Only ID is required.
type Manifest struct {
	ID          string `json:"id" toml:"id"`
	Name        string `json:"name,omitempty" toml:"name"`
	Version     string `json:"version,omitempty" toml:"version"`
	Description string `json:"description,omitempty" toml:"description"`
	Author      string `json:"author,omitempty" toml:"author"`
}

// Validate checks that the manifest identifies a plugin usable as a
// settings namespace.
func (m Manifest) Validate() error {
	id := strings.TrimSpace(m.ID)
	if id == "" {
		return errors.InvalidInput("plugin id is required")
	}
	if id != m.ID || strings.ContainsAny(id, ". \t*>") {
		return errors.InvalidInput(fmt.Sprintf("plugin id %q is not a valid namespace", m.ID),
			errors.WithMetadata("plugin_id", m.ID))
	}
	return nil
}

// DisplayName returns Name, falling back to ID.
func (m Manifest) DisplayName() string {
	if m.Name != "" {
		return m.Name
	}
	return m.ID
}
