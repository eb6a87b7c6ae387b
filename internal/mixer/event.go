package mixer

// EventKind identifies what stopped
type EventKind string

const (
	EventChannelStopped EventKind = "channel_stopped"
	EventMusicStopped   EventKind = "music_stopped"
)

// StopReason explains why playback ended
type StopReason string

const (
	ReasonFinished StopReason = "finished"
	ReasonHalted   StopReason = "halted"
	ReasonFaded    StopReason = "faded"
	ReasonExpired  StopReason = "expired"
	ReasonFreed    StopReason = "freed"
	ReasonReplaced StopReason = "replaced"
)

// Event describes the end of one playback. Channel is -1 for music.
type Event struct {
	Kind     EventKind
	Channel  int
	Name     string
	Reason   StopReason
	PlayedMs int64
}

// Observer receives events after the engine lock is released
type Observer func(Event)
