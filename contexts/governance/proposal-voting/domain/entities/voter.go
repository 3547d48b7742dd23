package entities

import "strings"

// VoterID identifies one of the five fixed committee members.
type VoterID string

const (
	VoterAthena        VoterID = "athena"
	VoterHephaestus    VoterID = "hephaestus"
	VoterHermes        VoterID = "hermes"
	VoterNurPrometheus VoterID = "nur_prometheus"
	VoterAegis         VoterID = "aegis"
)

// CommitteeSize is the number of distinct votes that completes a ballot.
const CommitteeSize = 5

// Committee returns the voter identities in dispatch order.
func Committee() []VoterID {
	return []VoterID{VoterAthena, VoterHephaestus, VoterHermes, VoterNurPrometheus, VoterAegis}
}

func ParseVoterID(raw string) (VoterID, bool) {
	id := VoterID(strings.ToLower(strings.TrimSpace(raw)))
	if !id.Valid() {
		return "", false
	}
	return id, true
}

func (v VoterID) Valid() bool {
	switch v {
	case VoterAthena, VoterHephaestus, VoterHermes, VoterNurPrometheus, VoterAegis:
		return true
	default:
		return false
	}
}

// Label is the display name of the voter.
func (v VoterID) Label() string {
	switch v {
	case VoterAthena:
		return "Athena"
	case VoterHephaestus:
		return "Hephaestus"
	case VoterHermes:
		return "Hermes"
	case VoterNurPrometheus:
		return "Nur Prometheus"
	case VoterAegis:
		return "Aegis"
	default:
		return string(v)
	}
}

// Domain is the focus area each voter evaluates.
func (v VoterID) Domain() string {
	switch v {
	case VoterAthena:
		return "compliance"
	case VoterHephaestus:
		return "technical_feasibility"
	case VoterHermes:
		return "communication"
	case VoterNurPrometheus:
		return "finance"
	case VoterAegis:
		return "security"
	default:
		return "unknown"
	}
}

func (v VoterID) Icon() string {
	switch v {
	case VoterAthena:
		return "🦉"
	case VoterHephaestus:
		return "🔨"
	case VoterHermes:
		return "📨"
	case VoterNurPrometheus:
		return "📊"
	case VoterAegis:
		return "🛡️"
	default:
		return "🤖"
	}
}

// Color is a palette name consumers map onto their own theme.
func (v VoterID) Color() string {
	switch v {
	case VoterAthena:
		return "purple"
	case VoterHephaestus:
		return "orange"
	case VoterHermes:
		return "blue"
	case VoterNurPrometheus:
		return "yellow"
	case VoterAegis:
		return "red"
	default:
		return "gray"
	}
}
