package platform

import (
	"runtime"
	"sort"
	"sync"

	"github.com/kbukum/voicekit/config"
)

// Platform names the native backends of one platform in priority order.
type Platform struct {
	// TTS lists synthesis backend names.
	TTS []string
	// STT lists optional recognizer names. They are only built when enabled
	// in the recognition config.
	STT []string
}

// Generic is the platform used when the running OS has no registration.
const Generic = "generic"

var (
	mu        sync.RWMutex
	platforms = map[string]Platform{}
)

func init() {
	Register("linux", Platform{
		TTS: []string{config.BackendEspeak, config.BackendStream},
		STT: []string{config.BackendCloudSpeech},
	})
	Register("darwin", Platform{
		TTS: []string{config.BackendSay},
		STT: []string{config.BackendCloudSpeech},
	})
	Register(Generic, Platform{})
}

// Register adds or replaces the platform id.
func Register(id string, p Platform) {
	mu.Lock()
	defer mu.Unlock()
	platforms[id] = p
}

// Lookup returns the platform registered as id.
func Lookup(id string) (Platform, bool) {
	mu.RLock()
	defer mu.RUnlock()
	p, ok := platforms[id]
	return p, ok
}

// List returns the sorted registered platform ids.
func List() []string {
	mu.RLock()
	defer mu.RUnlock()
	ids := make([]string, 0, len(platforms))
	for id := range platforms {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Resolve returns the platform id to use: override when set, otherwise
// runtime.GOOS, falling back to Generic for unregistered ids.
func Resolve(override string) string {
	id := override
	if id == "" {
		id = runtime.GOOS
	}
	if _, ok := Lookup(id); !ok {
		return Generic
	}
	return id
}
