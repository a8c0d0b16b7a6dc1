package detection

import (
	"strings"

	"github.com/xanadossd/avscan-core/internal/types"
)

// classifyThreat maps a detection name to a coarse family by substring
// match, the same ordering and families as
// original_source/app/core/clamav_wrapper.py's _classify_threat.
func classifyThreat(name string) types.ThreatType {
	lower := strings.ToLower(name)

	switch {
	case strings.Contains(lower, "trojan"), strings.Contains(lower, "backdoor"):
		return types.ThreatTrojan
	case strings.Contains(lower, "virus"), strings.Contains(lower, "worm"):
		return types.ThreatVirus
	case strings.Contains(lower, "adware"), strings.Contains(lower, "pup"):
		return types.ThreatAdware
	case strings.Contains(lower, "ransomware"), strings.Contains(lower, "crypto"):
		return types.ThreatRansomware
	case strings.Contains(lower, "rootkit"):
		return types.ThreatRootkit
	case strings.Contains(lower, "spyware"):
		return types.ThreatSpyware
	case strings.Contains(lower, "exploit"):
		return types.ThreatExploit
	default:
		return types.ThreatMalware
	}
}
