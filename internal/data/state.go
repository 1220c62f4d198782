package data

import "strings"

// State is the normalized torrent state shared by all clients.
type State string

const (
	StateDownloading State = "downloading"
	StateSeeding     State = "seeding"
	StatePaused      State = "paused"
	StateChecking    State = "checking"
	StateQueued      State = "queued"
	StateError       State = "error"
	StateUnknown     State = "unknown"
)

var stateAliases = map[string]State{
	"downloading": StateDownloading,
	"allocating":  StateDownloading,
	"moving":      StateDownloading,
	"seeding":     StateSeeding,
	"finished":    StateSeeding,
	"paused":      StatePaused,
	"stopped":     StatePaused,
	"checking":    StateChecking,
	"checked":     StateChecking,
	"hashing":     StateChecking,
	"queued":      StateQueued,
	"error":       StateError,
}

// NormalizeState maps a client's own state vocabulary onto State. uTorrent
// decorates its words ("[F] Seeding", "Queued Seed", "Checked 42.0 %",
// "Error: ...") so only the leading word is considered.
func NormalizeState(raw string) State {
	s := strings.ToLower(strings.TrimSpace(raw))
	s = strings.TrimSpace(strings.TrimPrefix(s, "[f]"))
	if st, ok := stateAliases[s]; ok {
		return st
	}
	if f := strings.Fields(s); len(f) > 0 {
		if st, ok := stateAliases[strings.TrimRight(f[0], ":")]; ok {
			return st
		}
	}
	return StateUnknown
}
