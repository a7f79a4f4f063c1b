package model

import (
	"encoding/json"
	"strings"
)

// EntityType is the closed set of entity tags a telemetry identifier can carry.
type EntityType int

const (
	EntityOther EntityType = iota
	EntityPrimarySubstation
	EntitySwitch
)

func (t EntityType) String() string {
	switch t {
	case EntityPrimarySubstation:
		return "GI"
	case EntitySwitch:
		return "LBS"
	default:
		return "OTHER"
	}
}

func (t EntityType) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

func (t *EntityType) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	*t = ParseEntityType(s)
	return nil
}

// ParseEntityType accepts the tag names produced by String.
func ParseEntityType(s string) EntityType {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "GI":
		return EntityPrimarySubstation
	case "LBS":
		return EntitySwitch
	default:
		return EntityOther
	}
}

// Membership says which asset registry an identifier was found in.
type Membership int

const (
	MembershipUnknown Membership = iota
	MembershipPrimary
	MembershipExtended
)

// NamePrefix returns the upper-cased part of a station name before the first delimiter.
func NamePrefix(stationName string) string {
	name := strings.TrimSpace(stationName)
	if i := strings.IndexAny(name, "-_ "); i >= 0 {
		name = name[:i]
	}
	return strings.ToUpper(name)
}

// Classify resolves the entity type of an identifier.
//
// Registry membership is authoritative: a primary asset record always yields
// EntityPrimarySubstation and an extended keypoint is never one, whatever its
// name says. Only identifiers absent from both registries fall back to the
// station name prefix.
func Classify(stationName string, m Membership) EntityType {
	prefix := NamePrefix(stationName)
	switch m {
	case MembershipPrimary:
		return EntityPrimarySubstation
	case MembershipExtended:
		if prefix == "LBS" {
			return EntitySwitch
		}
		return EntityOther
	}
	switch prefix {
	case "GI":
		return EntityPrimarySubstation
	case "LBS":
		return EntitySwitch
	default:
		return EntityOther
	}
}
