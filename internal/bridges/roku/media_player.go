package roku

import (
	"context"
	"sort"
	"sync"

	"github.com/nerrad567/gray-logic-roku/internal/ecp"
)

// PlaybackState is the media player state derived from a snapshot.
type PlaybackState string

// Playback states. StateUnknown is reported when no application is known.
const (
	StateUnknown PlaybackState = ""
	StateStandby PlaybackState = "standby"
	StateIdle    PlaybackState = "idle"
	StateHome    PlaybackState = "home"
	StatePlaying PlaybackState = "playing"
)

// Application name sentinels and media types.
const (
	// SourceHome is the synthetic first entry of every source list.
	SourceHome = "Home"

	// AppNameHome is the name the device reports for its home screen.
	AppNameHome = "Roku"

	// AppNamePowerSaver is the name the device reports for its screensaver.
	AppNamePowerSaver = "Power Saver"

	// MediaTypeChannel is the only media type PlayMedia accepts.
	MediaTypeChannel = "channel"
)

// Feature is a bit flag describing a supported media player command.
type Feature uint32

// Supported media player features.
const (
	FeaturePreviousTrack Feature = 1 << iota
	FeatureNextTrack
	FeatureVolumeSet
	FeatureVolumeMute
	FeatureSelectSource
	FeaturePlay
	FeaturePlayMedia
	FeatureTurnOn
	FeatureTurnOff
)

// SupportedFeatures is the feature set of every Roku media player.
const SupportedFeatures = FeaturePreviousTrack | FeatureNextTrack | FeatureVolumeSet |
	FeatureVolumeMute | FeatureSelectSource | FeaturePlay | FeaturePlayMedia |
	FeatureTurnOn | FeatureTurnOff

// MediaPlayer is the polling media-player view of a device.
//
// Everything except the source list and channel index is computed on demand
// from the session snapshot. The source list and channel index are rebuilt
// inside every successful refresh, so they always match Current.
type MediaPlayer struct {
	baseEntity
	logger Logger

	mu       sync.RWMutex
	sources  []string
	channels map[string]string
}

// NewMediaPlayer creates a media player over session. If the session
// already holds a snapshot, the source list is built from it.
func NewMediaPlayer(session *Session, logger Logger) *MediaPlayer {
	m := &MediaPlayer{
		baseEntity: baseEntity{session: session},
		logger:     logger,
		channels:   make(map[string]string),
	}
	if dev := session.Current(); dev != nil {
		m.rebuildSources(dev)
	}
	session.OnUpdate(func(dev *ecp.Device, available bool) {
		if available && dev != nil {
			m.rebuildSources(dev)
		}
	})
	return m
}

// ShouldPoll is always true; the scheduler calls Update on its cadence.
func (m *MediaPlayer) ShouldPoll() bool {
	return true
}

// Update refreshes the session. Connectivity failures only clear
// availability and are never returned.
func (m *MediaPlayer) Update(ctx context.Context) {
	if err := m.session.Refresh(ctx); err != nil && m.logger != nil {
		m.logger.Debug("media player update failed",
			"host", m.session.Identity().Host,
			"error", err)
	}
}

func (m *MediaPlayer) rebuildSources(dev *ecp.Device) {
	channels := make(map[string]string, len(dev.Apps))
	for _, app := range dev.Apps {
		channels[app.Name] = app.ID
	}

	names := make([]string, 0, len(channels))
	for name := range channels {
		names = append(names, name)
	}
	sort.Strings(names)

	sources := make([]string, 0, len(names)+1)
	sources = append(sources, SourceHome)
	sources = append(sources, names...)

	m.mu.Lock()
	m.sources = sources
	m.channels = channels
	m.mu.Unlock()
}

// State returns the playback state in precedence order standby, unknown,
// idle, home, playing.
func (m *MediaPlayer) State() PlaybackState {
	return playbackState(m.session.Current())
}

func playbackState(dev *ecp.Device) PlaybackState {
	if dev == nil {
		return StateUnknown
	}
	if dev.State.Standby {
		return StateStandby
	}
	if dev.App == nil {
		return StateUnknown
	}
	if dev.App.Name == AppNamePowerSaver || dev.App.Screensaver {
		return StateIdle
	}
	if dev.App.Name == AppNameHome {
		return StateHome
	}
	return StatePlaying
}

// SupportedFeatures returns the supported command flags.
func (m *MediaPlayer) SupportedFeatures() Feature {
	return SupportedFeatures
}

// SourceList returns a copy of the source list.
func (m *MediaPlayer) SourceList() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, len(m.sources))
	copy(out, m.sources)
	return out
}

// ChannelID returns the application id for a source name.
func (m *MediaPlayer) ChannelID(name string) (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.channels[name]
	return id, ok
}

func currentApp(dev *ecp.Device) *ecp.Application {
	if dev == nil {
		return nil
	}
	return dev.App
}

// AppName returns the foreground application name, or "".
func (m *MediaPlayer) AppName() string {
	if app := currentApp(m.session.Current()); app != nil {
		return app.Name
	}
	return ""
}

// AppID returns the foreground application id, or "".
func (m *MediaPlayer) AppID() string {
	if app := currentApp(m.session.Current()); app != nil {
		return app.ID
	}
	return ""
}

// Source returns the current input source, which is the application name.
func (m *MediaPlayer) Source() string {
	return m.AppName()
}

// MediaContentType returns "channel", or "" when no application is running
// or the foreground application is the home screen or screensaver.
func (m *MediaPlayer) MediaContentType() string {
	return mediaContentType(currentApp(m.session.Current()))
}

func mediaContentType(app *ecp.Application) string {
	if app == nil || app.Name == AppNamePowerSaver || app.Name == AppNameHome {
		return ""
	}
	return MediaTypeChannel
}

// MediaImageURL returns the channel icon URL, or "" when there is no
// content type or the application has no id.
func (m *MediaPlayer) MediaImageURL() string {
	return m.mediaImageURL(currentApp(m.session.Current()))
}

func (m *MediaPlayer) mediaImageURL(app *ecp.Application) string {
	if mediaContentType(app) == "" || app.ID == "" {
		return ""
	}
	return m.session.Client().AppIconURL(app.ID)
}

// TurnOn powers the device on.
func (m *MediaPlayer) TurnOn(ctx context.Context) error {
	return m.remote(ctx, "poweron")
}

// TurnOff puts the device into standby.
func (m *MediaPlayer) TurnOff(ctx context.Context) error {
	return m.remote(ctx, "poweroff")
}

// PlayPause toggles playback.
func (m *MediaPlayer) PlayPause(ctx context.Context) error {
	return m.remote(ctx, "play")
}

// Previous skips backwards.
func (m *MediaPlayer) Previous(ctx context.Context) error {
	return m.remote(ctx, "reverse")
}

// Next skips forwards.
func (m *MediaPlayer) Next(ctx context.Context) error {
	return m.remote(ctx, "forward")
}

// MuteVolume toggles mute. The device only offers a toggle, so the
// requested value is not sent.
func (m *MediaPlayer) MuteVolume(ctx context.Context, _ bool) error {
	return m.remote(ctx, "volume_mute")
}

// VolumeUp raises the volume one step.
func (m *MediaPlayer) VolumeUp(ctx context.Context) error {
	return m.remote(ctx, "volume_up")
}

// VolumeDown lowers the volume one step.
func (m *MediaPlayer) VolumeDown(ctx context.Context) error {
	return m.remote(ctx, "volume_down")
}

// SelectSource opens the home screen for "Home" and launches the matching
// channel otherwise. Names missing from the channel index are ignored.
func (m *MediaPlayer) SelectSource(ctx context.Context, source string) error {
	if source == SourceHome {
		return m.remote(ctx, "home")
	}

	id, ok := m.ChannelID(source)
	if !ok {
		if m.logger != nil {
			m.logger.Debug("ignoring unknown source",
				"host", m.session.Identity().Host,
				"source", source)
		}
		return nil
	}

	if err := m.session.Client().Launch(ctx, id); err != nil {
		return m.unreachable(err)
	}
	return nil
}

// PlayMedia tunes to a channel. Media types other than "channel" are
// logged and dropped without contacting the device.
func (m *MediaPlayer) PlayMedia(ctx context.Context, mediaType, mediaID string) error {
	if mediaType != MediaTypeChannel {
		if m.logger != nil {
			m.logger.Error("invalid media type, only channel is supported",
				"host", m.session.Identity().Host,
				"media_type", mediaType)
		}
		return nil
	}

	if err := m.session.Client().Tune(ctx, mediaID); err != nil {
		return m.unreachable(err)
	}
	return nil
}

func (m *MediaPlayer) remote(ctx context.Context, key string) error {
	if err := m.session.Client().Remote(ctx, key); err != nil {
		return m.unreachable(err)
	}
	return nil
}

func (m *MediaPlayer) unreachable(err error) error {
	return wrapCommandError(m.session.Identity().Host, err)
}

// MediaPlayerState is the published view of a media player.
type MediaPlayerState struct {
	Available         bool          `json:"available"`
	State             PlaybackState `json:"state,omitempty"`
	AppName           string        `json:"app_name,omitempty"`
	AppID             string        `json:"app_id,omitempty"`
	Source            string        `json:"source,omitempty"`
	SourceList        []string      `json:"source_list"`
	MediaContentType  string        `json:"media_content_type,omitempty"`
	MediaImageURL     string        `json:"media_image_url,omitempty"`
	SupportedFeatures Feature       `json:"supported_features"`
}

// Snapshot returns all properties computed from a single device snapshot.
func (m *MediaPlayer) Snapshot() MediaPlayerState {
	dev := m.session.Current()
	app := currentApp(dev)

	st := MediaPlayerState{
		Available:         m.Available(),
		State:             playbackState(dev),
		SourceList:        m.SourceList(),
		MediaContentType:  mediaContentType(app),
		MediaImageURL:     m.mediaImageURL(app),
		SupportedFeatures: SupportedFeatures,
	}
	if app != nil {
		st.AppName = app.Name
		st.AppID = app.ID
		st.Source = app.Name
	}
	return st
}
