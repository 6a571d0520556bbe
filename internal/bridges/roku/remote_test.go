package roku

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/nerrad567/gray-logic-roku/internal/ecp"
)

func TestRemoteSendCommandSequence(t *testing.T) {
	s, client := newTestSession(testDevice("S", appHome, false))
	r := NewRemote(s)

	err := r.SendCommand(context.Background(), []string{"up", "select", "back"}, 2)
	if err != nil {
		t.Fatalf("SendCommand() error = %v", err)
	}

	want := []string{
		"remote:up", "remote:select", "remote:back",
		"remote:up", "remote:select", "remote:back",
	}
	if got := client.getCalls(); !reflect.DeepEqual(got, want) {
		t.Errorf("calls = %v, want %v", got, want)
	}
}

func TestRemoteSendCommandRepeatCount(t *testing.T) {
	tests := []struct {
		name   string
		repeat int
		want   int
	}{
		{"zero means once", 0, 1},
		{"negative means once", -3, 1},
		{"one", 1, 1},
		{"three", 3, 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, client := newTestSession(testDevice("S", appHome, false))
			r := NewRemote(s)

			if err := r.SendCommand(context.Background(), []string{"home"}, tt.repeat); err != nil {
				t.Fatalf("SendCommand() error = %v", err)
			}
			if got := len(client.getCalls()); got != tt.want {
				t.Errorf("keypresses = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestRemoteSendCommandStopsOnError(t *testing.T) {
	s, client := newTestSession(testDevice("S", appHome, false))
	r := NewRemote(s)
	client.failKeys["select"] = errFakeConnection

	err := r.SendCommand(context.Background(), []string{"up", "select", "back"}, 2)
	if !errors.Is(err, ErrDeviceUnreachable) {
		t.Fatalf("SendCommand() error = %v, want ErrDeviceUnreachable", err)
	}

	want := []string{"remote:up", "remote:select"}
	if got := client.getCalls(); !reflect.DeepEqual(got, want) {
		t.Errorf("calls = %v, want %v", got, want)
	}
}

func TestRemoteSendCommandInvalidKey(t *testing.T) {
	s, client := newTestSession(testDevice("S", appHome, false))
	r := NewRemote(s)
	client.failKeys["bogus"] = ecp.ErrInvalidKey

	err := r.SendCommand(context.Background(), []string{"bogus"}, 1)
	if !errors.Is(err, ErrInvalidParameters) {
		t.Errorf("SendCommand() error = %v, want ErrInvalidParameters", err)
	}
}

func TestRemoteIsOn(t *testing.T) {
	tests := []struct {
		name string
		dev  *ecp.Device
		want bool
	}{
		{"never refreshed", nil, false},
		{"standby", testDevice("S", appHome, true), false},
		{"active", testDevice("S", appNetflix, false), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, _ := newTestSession(tt.dev)
			r := NewRemote(s)
			if got := r.IsOn(); got != tt.want {
				t.Errorf("IsOn() = %v, want %v", got, tt.want)
			}
			if r.ShouldPoll() {
				t.Error("ShouldPoll() should be false")
			}
		})
	}
}

func TestRemoteFollowsSessionUpdates(t *testing.T) {
	s, client := newTestSession(testDevice("S", appHome, true))
	r := NewRemote(s)

	var changes int
	r.SetOnChange(func(*Remote) { changes++ })

	client.setDevice(testDevice("S", appHome, false))
	if err := s.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}

	if changes != 1 {
		t.Errorf("onChange called %d times, want 1", changes)
	}
	if !r.IsOn() {
		t.Error("IsOn() should follow the refreshed snapshot")
	}
	if snap := r.Snapshot(); !snap.Available || !snap.IsOn {
		t.Errorf("Snapshot() = %+v, want available and on", snap)
	}
}

func TestRemoteSendCommandRepeatLimit(t *testing.T) {
	s, client := newTestSession(testDevice("S", appHome, false))
	r := NewRemote(s)

	err := r.SendCommand(context.Background(), []string{"up"}, MaxRepeatCount+1)
	if !errors.Is(err, ErrInvalidParameters) {
		t.Errorf("SendCommand() error = %v, want ErrInvalidParameters", err)
	}
	if calls := client.getCalls(); len(calls) != 0 {
		t.Errorf("calls = %v, want none", calls)
	}
}
