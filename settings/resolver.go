package settings

import (
	"strings"
	"unicode"

	"github.com/vinayprograms/pluginkit/errors"
)

// Resolution is the outcome of resolving a key for a calling plugin.
type Resolution struct {
	Key      string // Fully-qualified key
	CanRead  bool
	CanWrite bool
}

// Resolve qualifies key for pluginID and determines what the caller may do
// with it. It performs no I/O. An abbreviated key always targets the caller,
// even when another plugin owns a public key of the same shape.
func Resolve(pluginID, key string) (Resolution, error) {
	key = strings.TrimSpace(key)
	if key == "" || key == "." {
		return Resolution{}, errors.InvalidKey("settings key is empty",
			errors.WithPluginID(pluginID), errors.WithMetadata("key", key))
	}

	if strings.HasPrefix(key, ".") {
		qualified := pluginID + key
		if err := checkSegments(pluginID, qualified); err != nil {
			return Resolution{}, err
		}
		return Resolution{Key: qualified, CanRead: true, CanWrite: true}, nil
	}

	if err := checkSegments(pluginID, key); err != nil {
		return Resolution{}, err
	}

	owner, _, _ := strings.Cut(key, ".")
	if owner == pluginID {
		return Resolution{Key: key, CanRead: true, CanWrite: true}, nil
	}
	return Resolution{Key: key, CanRead: IsPublic(key)}, nil
}

// IsPublic reports whether the final segment of key is fully upper-case,
// which marks a setting readable by other plugins.
func IsPublic(key string) bool {
	last := key[strings.LastIndexByte(key, '.')+1:]
	hasLetter := false
	for _, r := range last {
		if unicode.IsLetter(r) {
			hasLetter = true
			if !unicode.IsUpper(r) {
				return false
			}
		}
	}
	return hasLetter
}

func checkSegments(pluginID, key string) error {
	for _, seg := range strings.Split(key, ".") {
		if seg == "" {
			return errors.InvalidKey("settings key has an empty segment",
				errors.WithPluginID(pluginID), errors.WithMetadata("key", key))
		}
	}
	return nil
}
