package ecp

import (
	"fmt"
	"sort"
)

// remoteKeys maps snake_case key identifiers to ECP keypress names.
var remoteKeys = map[string]string{
	"back":         "Back",
	"backspace":    "Backspace",
	"channel_down": "ChannelDown",
	"channel_up":   "ChannelUp",
	"down":         "Down",
	"enter":        "Enter",
	"find_remote":  "FindRemote",
	"forward":      "Fwd",
	"home":         "Home",
	"info":         "Info",
	"input_av1":    "InputAV1",
	"input_hdmi1":  "InputHDMI1",
	"input_hdmi2":  "InputHDMI2",
	"input_hdmi3":  "InputHDMI3",
	"input_hdmi4":  "InputHDMI4",
	"input_tuner":  "InputTuner",
	"left":         "Left",
	"play":         "Play",
	"power":        "Power",
	"poweroff":     "PowerOff",
	"poweron":      "PowerOn",
	"replay":       "InstantReplay",
	"reverse":      "Rev",
	"right":        "Right",
	"search":       "Search",
	"select":       "Select",
	"up":           "Up",
	"volume_down":  "VolumeDown",
	"volume_mute":  "VolumeMute",
	"volume_up":    "VolumeUp",
}

// KeyName returns the ECP keypress name for a key identifier.
func KeyName(key string) (string, error) {
	name, ok := remoteKeys[key]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	return name, nil
}

// ValidKey reports whether key is a known remote key identifier.
func ValidKey(key string) bool {
	_, ok := remoteKeys[key]
	return ok
}

// Keys returns all known key identifiers, sorted.
func Keys() []string {
	keys := make([]string, 0, len(remoteKeys))
	for k := range remoteKeys {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
