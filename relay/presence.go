package relay

import (
	"hash/fnv"
)

// display colors assigned by hashing the user id into a fixed palette.
// Stable across sessions and peers without any coordination; collisions
// are tolerated.
var presencePalette = []string{
	"#e6194b",
	"#3cb44b",
	"#ffe119",
	"#4363d8",
	"#f58231",
	"#911eb4",
	"#46f0f0",
	"#f032e6",
	"#bcf60c",
	"#fabebe",
	"#008080",
	"#e6beff",
}

func PresenceColor(userId string) string {
	h := fnv.New32a()
	h.Write([]byte(userId))
	return presencePalette[int(h.Sum32()%uint32(len(presencePalette)))]
}

// defaultPresence fills in name and color without clobbering caller keys
func defaultPresence(userId string, presence PresenceInfo) PresenceInfo {
	merged := PresenceInfo{}
	for k, v := range presence {
		merged[k] = v
	}
	if _, ok := merged["name"]; !ok {
		merged["name"] = userId
	}
	if _, ok := merged["color"]; !ok {
		merged["color"] = PresenceColor(userId)
	}
	return merged
}
