package types

import "github.com/xanadossd/avscan-core/internal/cerrors"

// VerdictKind enumerates the four possible outcomes of scanning a file.
type VerdictKind int

const (
	Clean VerdictKind = iota
	Infected
	VerdictErr
	VerdictTimeout
)

func (k VerdictKind) String() string {
	switch k {
	case Clean:
		return "clean"
	case Infected:
		return "infected"
	case VerdictErr:
		return "error"
	case VerdictTimeout:
		return "timeout"
	default:
		return "unknown"
	}
}

// ThreatType classifies an infection by family, matched from the engine's
// threat name (see internal/detection).
type ThreatType string

const (
	ThreatTrojan     ThreatType = "Trojan"
	ThreatVirus      ThreatType = "Virus"
	ThreatAdware     ThreatType = "Adware/PUP"
	ThreatRansomware ThreatType = "Ransomware"
	ThreatRootkit    ThreatType = "Rootkit"
	ThreatSpyware    ThreatType = "Spyware"
	ThreatExploit    ThreatType = "Exploit"
	ThreatMalware    ThreatType = "Malware"
)

// Verdict is the immutable result of scanning one file's bytes.
type Verdict struct {
	Kind       VerdictKind
	ThreatName string
	ThreatType ThreatType
	Err        *cerrors.ScanError

	// EngineName and SignatureVersion identify what produced the verdict;
	// the cache keys against SignatureVersion (spec §4.1).
	EngineName        string
	SignatureVersion  string
	ModelVersion      string  // set when an ML engine contributed the verdict
	Confidence        float64 // ML confidence in [0,1], 0 for signature-only verdicts
}

// CleanVerdict builds a Clean verdict.
func CleanVerdict(engine, sigVersion string) Verdict {
	return Verdict{Kind: Clean, EngineName: engine, SignatureVersion: sigVersion}
}

// InfectedVerdict builds an Infected verdict with a threat name and family.
func InfectedVerdict(name string, family ThreatType, engine, sigVersion string) Verdict {
	return Verdict{
		Kind:             Infected,
		ThreatName:       name,
		ThreatType:       family,
		EngineName:       engine,
		SignatureVersion: sigVersion,
	}
}

// ErrVerdict builds an Error verdict wrapping a ScanError.
func ErrVerdict(err *cerrors.ScanError) Verdict {
	return Verdict{Kind: VerdictErr, Err: err}
}

// TimeoutVerdict builds the Timeout verdict.
func TimeoutVerdict() Verdict {
	return Verdict{Kind: VerdictTimeout, Err: cerrors.New(cerrors.KindTimeout, "scan timed out")}
}

// IsInfected reports whether the verdict should trigger quarantine.
func (v Verdict) IsInfected() bool { return v.Kind == Infected }
