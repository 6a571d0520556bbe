package ecp

import (
	"encoding/xml"
	"fmt"
	"strings"
)

// DefaultBrand is reported when the device does not name its vendor.
const DefaultBrand = "Roku"

// PowerModeOn is the device-info power mode of an active device.
const PowerModeOn = "PowerOn"

// Info is the static device descriptor from /query/device-info.
type Info struct {
	Name            string `json:"name"`
	Brand           string `json:"brand"`
	ModelName       string `json:"model_name"`
	ModelNumber     string `json:"model_number"`
	SoftwareVersion string `json:"software_version"`
	SerialNumber    string `json:"serial_number"`
	DeviceID        string `json:"device_id"`
	PowerMode       string `json:"power_mode"`
	IsTV            bool   `json:"is_tv"`
}

// State is the power state derived from device-info.
type State struct {
	Standby bool `json:"standby"`
}

// Application is an installed channel, the home screen, or a screensaver.
type Application struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Version     string `json:"version,omitempty"`
	Screensaver bool   `json:"screensaver,omitempty"`
}

// Device is a point-in-time snapshot of a device.
//
// A Device is never modified after Client.Update returns it. Consumers that
// need a newer view call Update again and replace their reference.
type Device struct {
	Info  Info          `json:"info"`
	State State         `json:"state"`
	Apps  []Application `json:"apps"`

	// App is the foreground application, or nil when the device reports none.
	App *Application `json:"app,omitempty"`
}

type xmlDeviceInfo struct {
	XMLName            xml.Name `xml:"device-info"`
	SerialNumber       string   `xml:"serial-number"`
	DeviceID           string   `xml:"device-id"`
	VendorName         string   `xml:"vendor-name"`
	ModelName          string   `xml:"model-name"`
	ModelNumber        string   `xml:"model-number"`
	FriendlyDeviceName string   `xml:"friendly-device-name"`
	UserDeviceName     string   `xml:"user-device-name"`
	SoftwareVersion    string   `xml:"software-version"`
	PowerMode          string   `xml:"power-mode"`
	IsTV               string   `xml:"is-tv"`
}

type xmlApp struct {
	ID      string `xml:"id,attr"`
	Type    string `xml:"type,attr"`
	Version string `xml:"version,attr"`
	Name    string `xml:",chardata"`
}

type xmlApps struct {
	XMLName xml.Name `xml:"apps"`
	Apps    []xmlApp `xml:"app"`
}

type xmlActiveApp struct {
	XMLName     xml.Name `xml:"active-app"`
	App         *xmlApp  `xml:"app"`
	Screensaver *xmlApp  `xml:"screensaver"`
}

// parseDeviceInfo decodes a /query/device-info document.
func parseDeviceInfo(data []byte) (Info, State, error) {
	var raw xmlDeviceInfo
	if err := xml.Unmarshal(data, &raw); err != nil {
		return Info{}, State{}, fmt.Errorf("%w: device-info: %w", ErrInvalidResponse, err)
	}

	info := Info{
		Brand:           strings.TrimSpace(raw.VendorName),
		ModelName:       strings.TrimSpace(raw.ModelName),
		ModelNumber:     strings.TrimSpace(raw.ModelNumber),
		SoftwareVersion: strings.TrimSpace(raw.SoftwareVersion),
		SerialNumber:    strings.TrimSpace(raw.SerialNumber),
		DeviceID:        strings.TrimSpace(raw.DeviceID),
		PowerMode:       strings.TrimSpace(raw.PowerMode),
		IsTV:            strings.EqualFold(strings.TrimSpace(raw.IsTV), "true"),
	}
	if info.Brand == "" {
		info.Brand = DefaultBrand
	}

	switch {
	case strings.TrimSpace(raw.UserDeviceName) != "":
		info.Name = strings.TrimSpace(raw.UserDeviceName)
	case strings.TrimSpace(raw.FriendlyDeviceName) != "":
		info.Name = strings.TrimSpace(raw.FriendlyDeviceName)
	case info.SerialNumber != "":
		info.Name = info.Brand + " " + info.SerialNumber
	default:
		info.Name = info.Brand
	}

	// Older players omit power-mode entirely and are never in standby.
	state := State{Standby: info.PowerMode != "" && info.PowerMode != PowerModeOn}

	return info, state, nil
}

// parseApps decodes a /query/apps document, preserving device order.
func parseApps(data []byte) ([]Application, error) {
	var raw xmlApps
	if err := xml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: apps: %w", ErrInvalidResponse, err)
	}

	apps := make([]Application, 0, len(raw.Apps))
	for _, a := range raw.Apps {
		apps = append(apps, Application{
			ID:      strings.TrimSpace(a.ID),
			Name:    strings.TrimSpace(a.Name),
			Version: strings.TrimSpace(a.Version),
		})
	}
	return apps, nil
}

// parseActiveApp decodes a /query/active-app document. A running
// screensaver takes precedence over the application underneath it.
func parseActiveApp(data []byte) (*Application, error) {
	var raw xmlActiveApp
	if err := xml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: active-app: %w", ErrInvalidResponse, err)
	}

	if raw.Screensaver != nil {
		return &Application{
			ID:          strings.TrimSpace(raw.Screensaver.ID),
			Name:        strings.TrimSpace(raw.Screensaver.Name),
			Version:     strings.TrimSpace(raw.Screensaver.Version),
			Screensaver: true,
		}, nil
	}

	if raw.App == nil {
		return nil, nil //nolint:nilnil // no foreground application is a valid answer
	}

	name := strings.TrimSpace(raw.App.Name)
	if name == "" && raw.App.ID == "" {
		return nil, nil //nolint:nilnil // empty <app/> element
	}

	return &Application{
		ID:      strings.TrimSpace(raw.App.ID),
		Name:    name,
		Version: strings.TrimSpace(raw.App.Version),
	}, nil
}
