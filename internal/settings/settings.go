// Package settings holds the operator's display and notification
// preferences and keeps them persisted.
package settings

import (
	"encoding/json"
	"errors"
	"fmt"
)

// DefaultKey names the persisted settings entry.
const DefaultKey = "dashboard-settings"

// ErrInvalid marks input that cannot be decoded into Settings.
var ErrInvalid = errors.New("invalid settings")

type Theme string

const (
	ThemeLight Theme = "light"
	ThemeDark  Theme = "dark"
)

type NotificationSettings struct {
	Enabled     bool `json:"enabled"`
	OnNew       bool `json:"onNew"`
	OnCancelled bool `json:"onCancelled"`
}

type Settings struct {
	Theme             Theme                `json:"theme"`
	AnimationsEnabled bool                 `json:"animationsEnabled"`
	Notifications     NotificationSettings `json:"notifications"`
}

// Defaults is what a first-time operator sees.
func Defaults() Settings {
	return Settings{
		Theme:             ThemeDark,
		AnimationsEnabled: true,
		Notifications: NotificationSettings{
			Enabled:     false,
			OnNew:       true,
			OnCancelled: true,
		},
	}
}

// Merge overlays raw JSON on base. Fields absent from raw, nested ones
// included, keep base's values. On error base is returned unchanged.
func Merge(base Settings, raw []byte) (Settings, error) {
	merged := base
	if err := json.Unmarshal(raw, &merged); err != nil {
		return base, fmt.Errorf("settings: decode: %w: %w", ErrInvalid, err)
	}
	return merged, nil
}

// ThemeClass is the class set on the page root element.
func (s Settings) ThemeClass() string {
	if s.Theme == ThemeLight {
		return string(ThemeLight)
	}
	return string(ThemeDark)
}
