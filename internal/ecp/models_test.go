package ecp

import "testing"

func TestParseDeviceInfo_NameFallbacks(t *testing.T) {
	tests := []struct {
		name string
		xml  string
		want string
	}{
		{
			name: "user name wins",
			xml:  `<device-info><user-device-name>Den</user-device-name><friendly-device-name>Roku Express</friendly-device-name></device-info>`,
			want: "Den",
		},
		{
			name: "friendly name",
			xml:  `<device-info><friendly-device-name>Roku Express</friendly-device-name></device-info>`,
			want: "Roku Express",
		},
		{
			name: "serial",
			xml:  `<device-info><serial-number>X123</serial-number></device-info>`,
			want: "Roku X123",
		},
		{
			name: "brand only",
			xml:  `<device-info></device-info>`,
			want: "Roku",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			info, _, err := parseDeviceInfo([]byte(tt.xml))
			if err != nil {
				t.Fatalf("parseDeviceInfo() error = %v", err)
			}
			if info.Name != tt.want {
				t.Errorf("Name = %q, want %q", info.Name, tt.want)
			}
		})
	}
}

func TestParseDeviceInfo_Standby(t *testing.T) {
	tests := []struct {
		powerMode string
		want      bool
	}{
		{powerMode: "PowerOn", want: false},
		{powerMode: "DisplayOff", want: true},
		{powerMode: "Ready", want: true},
		{powerMode: "", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.powerMode, func(t *testing.T) {
			doc := "<device-info><power-mode>" + tt.powerMode + "</power-mode></device-info>"
			_, state, err := parseDeviceInfo([]byte(doc))
			if err != nil {
				t.Fatalf("parseDeviceInfo() error = %v", err)
			}
			if state.Standby != tt.want {
				t.Errorf("Standby = %v, want %v", state.Standby, tt.want)
			}
		})
	}
}

func TestParseActiveApp_Empty(t *testing.T) {
	app, err := parseActiveApp([]byte(`<active-app></active-app>`))
	if err != nil {
		t.Fatalf("parseActiveApp() error = %v", err)
	}
	if app != nil {
		t.Errorf("app = %+v, want nil", app)
	}
}

func TestParseActiveApp_Entity(t *testing.T) {
	app, err := parseActiveApp([]byte(`<active-app><app id="74519">Pluto TV - It&apos;s Free TV</app></active-app>`))
	if err != nil {
		t.Fatalf("parseActiveApp() error = %v", err)
	}
	if app == nil || app.Name != "Pluto TV - It's Free TV" {
		t.Errorf("app = %+v", app)
	}
}
