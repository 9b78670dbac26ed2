package domain

import "strings"

type SportType string

const (
	SportRun           SportType = "RUN"
	SportTrailRun      SportType = "TRAIL_RUN"
	SportIndoorRun     SportType = "INDOOR_RUN"
	SportHike          SportType = "HIKE"
	SportWalk          SportType = "WALK"
	SportRide          SportType = "RIDE"
	SportIndoorRide    SportType = "INDOOR_RIDE"
	SportSwim          SportType = "SWIM"
	SportOpenWaterSwim SportType = "OPEN_WATER_SWIM"
	SportStairmaster   SportType = "STAIRMASTER"
	SportRopeJumping   SportType = "ROPE_JUMPING"
	SportUnknown       SportType = "UNKNOWN"
)

var sportTypes = []SportType{
	SportRun, SportTrailRun, SportIndoorRun, SportHike, SportWalk,
	SportRide, SportIndoorRide, SportSwim, SportOpenWaterSwim,
	SportStairmaster, SportRopeJumping,
}

// ParseSportType matches s against the known sport types ignoring case and
// separators, so "TrailRun", "trail_run" and "TRAIL-RUN" are equivalent.
// Unrecognised values map to SportUnknown.
func ParseSportType(s string) SportType {
	key := sportKey(s)
	if key == "" {
		return SportUnknown
	}
	for _, st := range sportTypes {
		if sportKey(string(st)) == key {
			return st
		}
	}
	return SportUnknown
}

// ParseSportTypeWithAliases consults aliases (keyed by normalised name) before
// falling back to ParseSportType.
func ParseSportTypeWithAliases(s string, aliases map[string]SportType) SportType {
	if st, ok := aliases[sportKey(s)]; ok {
		return st
	}
	return ParseSportType(s)
}

func sportKey(s string) string {
	var sb strings.Builder
	for _, r := range strings.ToLower(s) {
		if r == '_' || r == '-' || r == ' ' {
			continue
		}
		sb.WriteRune(r)
	}
	return sb.String()
}
