package sigident

import (
	"fmt"

	"github.com/mdean75/sigident/logger"
)

// Result codes reported by trust engines. They follow WinVerifyTrust, which
// returns an HRESULT; the portable engine maps its outcomes onto the same
// values.
const (
	TrustSuccess             uint32 = 0
	TrustEProviderUnknown    uint32 = 0x800B0001
	TrustEActionUnknown      uint32 = 0x800B0002
	TrustESubjectFormUnknown uint32 = 0x800B0003
	TrustESubjectNotTrusted  uint32 = 0x800B0004
	TrustENoSignature        uint32 = 0x800B0100
	CertEExpired             uint32 = 0x800B0101
	CertEUntrustedRoot       uint32 = 0x800B0109
	CertEWrongUsage          uint32 = 0x800B0110
	TrustESystemError        uint32 = 0x80096001
	TrustEBadDigest          uint32 = 0x80096010
)

// Verdict is the category of a trust engine result.
type Verdict int

const (
	VerdictTrusted Verdict = iota + 1
	VerdictProviderUnknown
	VerdictActionUnknown
	VerdictSubjectFormUnknown
	VerdictNotTrusted
	VerdictOther
)

var verdictNames = map[Verdict]string{
	VerdictTrusted:            "Trusted",
	VerdictProviderUnknown:    "ProviderUnknown",
	VerdictActionUnknown:      "ActionUnknown",
	VerdictSubjectFormUnknown: "SubjectFormUnknown",
	VerdictNotTrusted:         "NotTrusted",
	VerdictOther:              "Other",
}

func (v Verdict) String() string {
	if name, ok := verdictNames[v]; ok {
		return name
	}
	return "Unknown"
}

// TrustVerdict is a classified trust engine result. The zero value means no
// classification took place.
type TrustVerdict struct {
	Verdict Verdict
	// Code is the raw engine result.
	Code uint32
}

// Trusted reports whether the engine accepted the file.
func (v TrustVerdict) Trusted() bool {
	return v.Verdict == VerdictTrusted
}

// EngineFault reports whether the verdict points at a misconfigured or
// incapable engine rather than at the file.
func (v TrustVerdict) EngineFault() bool {
	switch v.Verdict {
	case VerdictProviderUnknown, VerdictActionUnknown, VerdictSubjectFormUnknown:
		return true
	}
	return false
}

func (v TrustVerdict) String() string {
	if v.Verdict == VerdictOther {
		return fmt.Sprintf("Other(0x%X)", v.Code)
	}
	return v.Verdict.String()
}

// ClassifyCode maps an engine result code onto a verdict.
func ClassifyCode(code uint32) TrustVerdict {
	switch code {
	case TrustSuccess:
		return TrustVerdict{Verdict: VerdictTrusted, Code: code}
	case TrustEProviderUnknown:
		return TrustVerdict{Verdict: VerdictProviderUnknown, Code: code}
	case TrustEActionUnknown:
		return TrustVerdict{Verdict: VerdictActionUnknown, Code: code}
	case TrustESubjectFormUnknown:
		return TrustVerdict{Verdict: VerdictSubjectFormUnknown, Code: code}
	case TrustESubjectNotTrusted:
		return TrustVerdict{Verdict: VerdictNotTrusted, Code: code}
	default:
		return TrustVerdict{Verdict: VerdictOther, Code: code}
	}
}

// TrustEngine decides whether the file at path is trusted. Verify returns the
// engine's result code; an error means the engine could not run at all.
type TrustEngine interface {
	Verify(path string) (uint32, error)
}

// TrustEngineFunc adapts a function to TrustEngine.
type TrustEngineFunc func(path string) (uint32, error)

func (f TrustEngineFunc) Verify(path string) (uint32, error) {
	return f(path)
}

// Classifier runs a trust engine and reports the outcome.
type Classifier struct {
	engine TrustEngine
	log    logger.Logger
}

// NewClassifier returns a Classifier over engine. A nil log discards
// diagnostics.
func NewClassifier(engine TrustEngine, log logger.Logger) *Classifier {
	if log == nil {
		log = logger.Nil
	}
	return &Classifier{engine: engine, log: log}
}

// Classify invokes the engine once for path.
func (c *Classifier) Classify(path string) TrustVerdict {
	code, err := c.engine.Verify(path)
	if err != nil {
		c.log.Error("Trust engine failed on %s: %v", path, err)
		return TrustVerdict{Verdict: VerdictOther, Code: TrustESystemError}
	}

	v := ClassifyCode(code)
	switch v.Verdict {
	case VerdictTrusted:
	case VerdictProviderUnknown:
		c.log.Error("Trust engine result: TRUST_E_PROVIDER_UNKNOWN")
	case VerdictActionUnknown:
		c.log.Error("Trust engine result: TRUST_E_ACTION_UNKNOWN")
	case VerdictSubjectFormUnknown:
		c.log.Error("Trust engine result: TRUST_E_SUBJECT_FORM_UNKNOWN")
	case VerdictNotTrusted:
		c.log.Warning("Can not trust %s", path)
	default:
		c.log.Error("Trust engine result: 0x%X", code)
	}
	return v
}
