package roku

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/nerrad567/gray-logic-roku/internal/ecp"
)

var errFakeConnection = errors.New("connection refused")

// fakeClient implements DeviceClient for testing.
type fakeClient struct {
	mu        sync.Mutex
	device    *ecp.Device
	updateErr error
	failKeys  map[string]error
	calls     []string
	updates   int

	// keyDelay is slept before each keypress is recorded.
	keyDelay time.Duration
}

func newFakeClient(dev *ecp.Device) *fakeClient {
	return &fakeClient{
		device:   dev,
		failKeys: make(map[string]error),
	}
}

func (f *fakeClient) Update(_ context.Context) (*ecp.Device, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updates++
	if f.updateErr != nil {
		return nil, f.updateErr
	}
	return f.device, nil
}

func (f *fakeClient) Remote(_ context.Context, key string) error {
	f.mu.Lock()
	delay := f.keyDelay
	f.mu.Unlock()
	time.Sleep(delay)

	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, "remote:"+key)
	if err, ok := f.failKeys[key]; ok {
		return err
	}
	return nil
}

func (f *fakeClient) Launch(_ context.Context, appID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, "launch:"+appID)
	return f.updateErr
}

func (f *fakeClient) Tune(_ context.Context, channel string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, "tune:"+channel)
	return f.updateErr
}

func (f *fakeClient) AppIconURL(appID string) string {
	return "http://192.168.1.160:8060/query/icon/" + appID
}

func (f *fakeClient) setDevice(dev *ecp.Device) {
	f.mu.Lock()
	f.device = dev
	f.mu.Unlock()
}

func (f *fakeClient) setUpdateErr(err error) {
	f.mu.Lock()
	f.updateErr = err
	f.mu.Unlock()
}

func (f *fakeClient) getCalls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.calls))
	copy(out, f.calls)
	return out
}

func (f *fakeClient) getUpdates() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.updates
}

// testDevice builds a snapshot with the usual channel list.
func testDevice(serial string, app *ecp.Application, standby bool) *ecp.Device {
	powerMode := ecp.PowerModeOn
	if standby {
		powerMode = "DisplayOff"
	}
	return &ecp.Device{
		Info: ecp.Info{
			Name:            "My Roku 3",
			Brand:           "Roku",
			ModelName:       "Roku 3",
			ModelNumber:     "4200X",
			SoftwareVersion: "7.5.0",
			SerialNumber:    serial,
			PowerMode:       powerMode,
		},
		State: ecp.State{Standby: standby},
		Apps: []ecp.Application{
			{ID: "31012", Name: "Roku Channel Store"},
			{ID: "12", Name: "Netflix"},
			{ID: "2285", Name: "Hulu"},
			{ID: "74519", Name: "Pluto TV"},
		},
		App: app,
	}
}

var (
	appHome        = &ecp.Application{Name: "Roku"}
	appNetflix     = &ecp.Application{ID: "12", Name: "Netflix", Version: "4.1.218"}
	appScreensaver = &ecp.Application{ID: "55545", Name: "Default screensaver", Screensaver: true}
	appPowerSaver  = &ecp.Application{Name: "Power Saver"}
)

// newTestSession returns a refreshed session backed by a fake client.
func newTestSession(dev *ecp.Device) (*Session, *fakeClient) {
	client := newFakeClient(dev)
	s := NewSession(Identity{Host: "192.168.1.160"}, client)
	if dev != nil {
		//nolint:errcheck // fake client cannot fail here
		s.Refresh(context.Background())
	}
	return s, client
}
