//go:build windows

package sigident

import (
	"errors"
	"syscall"
	"unsafe"

	"golang.org/x/sys/windows"
)

// WinTrustEngine verifies Authenticode signatures with WinVerifyTrust using
// the generic verify action, without UI and without revocation checks. It
// reads the OS file system directly, whatever afero.Fs the Extractor uses.
type WinTrustEngine struct{}

// Verify implements TrustEngine.
func (WinTrustEngine) Verify(path string) (uint32, error) {
	path16, err := windows.UTF16PtrFromString(path)
	if err != nil {
		return 0, err
	}

	data := &windows.WinTrustData{
		Size:             uint32(unsafe.Sizeof(windows.WinTrustData{})),
		UIChoice:         windows.WTD_UI_NONE,
		RevocationChecks: windows.WTD_REVOKE_NONE,
		UnionChoice:      windows.WTD_CHOICE_FILE,
		StateAction:      windows.WTD_STATEACTION_VERIFY,
		ProvFlags:        windows.WTD_SAFER_FLAG,
		FileOrCatalogOrBlobOrSgnrOrCert: unsafe.Pointer(&windows.WinTrustFileInfo{
			Size:     uint32(unsafe.Sizeof(windows.WinTrustFileInfo{})),
			FilePath: path16,
		}),
	}
	// The state data allocated by VERIFY is released by CLOSE on every path.
	defer func() {
		data.StateAction = windows.WTD_STATEACTION_CLOSE
		_ = windows.WinVerifyTrustEx(windows.InvalidHWND, &windows.WINTRUST_ACTION_GENERIC_VERIFY_V2, data)
	}()

	verifyErr := windows.WinVerifyTrustEx(windows.InvalidHWND, &windows.WINTRUST_ACTION_GENERIC_VERIFY_V2, data)
	if verifyErr == nil {
		return TrustSuccess, nil
	}
	var errno syscall.Errno
	if errors.As(verifyErr, &errno) {
		return uint32(errno), nil
	}
	return 0, verifyErr
}

func defaultTrustEngine(e *Extractor) (TrustEngine, error) {
	return WinTrustEngine{}, nil
}
