package sigident

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestClassifyCode(t *testing.T) {
	tests := []struct {
		code        uint32
		verdict     Verdict
		trusted     bool
		engineFault bool
		str         string
	}{
		{code: TrustSuccess, verdict: VerdictTrusted, trusted: true, str: "Trusted"},
		{code: TrustEProviderUnknown, verdict: VerdictProviderUnknown, engineFault: true, str: "ProviderUnknown"},
		{code: TrustEActionUnknown, verdict: VerdictActionUnknown, engineFault: true, str: "ActionUnknown"},
		{code: TrustESubjectFormUnknown, verdict: VerdictSubjectFormUnknown, engineFault: true, str: "SubjectFormUnknown"},
		{code: TrustESubjectNotTrusted, verdict: VerdictNotTrusted, str: "NotTrusted"},
		{code: TrustENoSignature, verdict: VerdictOther, str: "Other(0x800B0100)"},
		{code: CertEExpired, verdict: VerdictOther, str: "Other(0x800B0101)"},
		{code: 0x12345, verdict: VerdictOther, str: "Other(0x12345)"},
	}
	for _, tt := range tests {
		t.Run(tt.str, func(t *testing.T) {
			v := ClassifyCode(tt.code)
			assert.Equal(t, tt.verdict, v.Verdict)
			assert.Equal(t, tt.code, v.Code)
			assert.Equal(t, tt.trusted, v.Trusted())
			assert.Equal(t, tt.engineFault, v.EngineFault())
			assert.Equal(t, tt.str, v.String())
		})
	}
}

func TestVerdict_String(t *testing.T) {
	assert.Equal(t, "Unknown", Verdict(0).String())
	assert.Equal(t, "Unknown", TrustVerdict{}.String())
	assert.False(t, TrustVerdict{}.Trusted())
}

func TestClassifier_Classify(t *testing.T) {
	tests := []struct {
		name  string
		code  uint32
		level zapcore.Level
		msg   string
	}{
		{name: "provider unknown", code: TrustEProviderUnknown, level: zapcore.ErrorLevel, msg: "Trust engine result: TRUST_E_PROVIDER_UNKNOWN"},
		{name: "action unknown", code: TrustEActionUnknown, level: zapcore.ErrorLevel, msg: "Trust engine result: TRUST_E_ACTION_UNKNOWN"},
		{name: "subject form unknown", code: TrustESubjectFormUnknown, level: zapcore.ErrorLevel, msg: "Trust engine result: TRUST_E_SUBJECT_FORM_UNKNOWN"},
		{name: "not trusted", code: TrustESubjectNotTrusted, level: zapcore.WarnLevel, msg: "Can not trust /bin/tool.exe"},
		{name: "other", code: CertEUntrustedRoot, level: zapcore.ErrorLevel, msg: "Trust engine result: 0x800B0109"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			log, logs := observedLogger()
			var gotPath string
			c := NewClassifier(TrustEngineFunc(func(path string) (uint32, error) {
				gotPath = path
				return tt.code, nil
			}), log)

			v := c.Classify("/bin/tool.exe")
			assert.Equal(t, ClassifyCode(tt.code), v)
			assert.Equal(t, "/bin/tool.exe", gotPath)

			entries := logs.All()
			require.Len(t, entries, 1)
			assert.Equal(t, tt.level, entries[0].Level)
			assert.Equal(t, tt.msg, entries[0].Message)
		})
	}
}

func TestClassifier_TrustedIsQuiet(t *testing.T) {
	log, logs := observedLogger()
	c := NewClassifier(TrustEngineFunc(func(string) (uint32, error) { return TrustSuccess, nil }), log)

	assert.True(t, c.Classify("/bin/tool.exe").Trusted())
	assert.Zero(t, logs.Len())
}

func TestClassifier_EngineError(t *testing.T) {
	log, logs := observedLogger()
	c := NewClassifier(TrustEngineFunc(func(string) (uint32, error) { return 0, assert.AnError }), log)

	v := c.Classify("/bin/tool.exe")
	assert.Equal(t, TrustVerdict{Verdict: VerdictOther, Code: TrustESystemError}, v)
	assert.False(t, v.Trusted())

	entries := logs.FilterLevelExact(zapcore.ErrorLevel).All()
	require.Len(t, entries, 1)
	assert.Contains(t, entries[0].Message, assert.AnError.Error())
}

func TestNewClassifier_NilLogger(t *testing.T) {
	c := NewClassifier(TrustEngineFunc(func(string) (uint32, error) { return CertEExpired, nil }), nil)
	assert.NotPanics(t, func() { c.Classify("/bin/tool.exe") })
}
