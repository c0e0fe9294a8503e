package gateway

import (
	"strconv"
	"strings"
)

// Intents selects which dispatch events the server sends.
type Intents uint64

const (
	// IntentUserUpdates covers UserUpdated and UserCurrentRoomUpdated.
	IntentUserUpdates Intents = 1 << iota
	// IntentRoomUpdates covers room and room connection events.
	IntentRoomUpdates
	// IntentMessages covers MessageCreated and MessageRemoved.
	IntentMessages
	// IntentTyping covers UserStartedTyping and UserStoppedTyping.
	IntentTyping
	// IntentModeration covers BanCreated and BanRemoved.
	IntentModeration

	IntentsAll = IntentUserUpdates | IntentRoomUpdates | IntentMessages | IntentTyping | IntentModeration
)

var intentNames = []struct {
	name   string
	intent Intents
}{
	{"users", IntentUserUpdates},
	{"rooms", IntentRoomUpdates},
	{"messages", IntentMessages},
	{"typing", IntentTyping},
	{"moderation", IntentModeration},
}

// ParseIntents accepts a number, "all", or a comma separated list of
// users, rooms, messages, typing and moderation.
func ParseIntents(s string) (Intents, bool) {
	s = strings.TrimSpace(s)
	if n, err := strconv.ParseUint(s, 10, 64); err == nil {
		return Intents(n), true
	}
	if strings.EqualFold(s, "all") {
		return IntentsAll, true
	}

	var intents Intents
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		found := false
		for _, in := range intentNames {
			if strings.EqualFold(part, in.name) {
				intents |= in.intent
				found = true
				break
			}
		}
		if !found {
			return 0, false
		}
	}
	return intents, true
}

func (i Intents) String() string {
	var names []string
	for _, in := range intentNames {
		if i&in.intent != 0 {
			names = append(names, in.name)
		}
	}
	if len(names) == 0 {
		return strconv.FormatUint(uint64(i), 10)
	}
	return strings.Join(names, ",")
}
