// Package fault defines the error classes shared by every stage of release
// resolution and download.
//
// Configuration and usage errors (UnsupportedPlatform, UnknownUpstream,
// MissingPlaceholder, LegacyVersionRejected, NoReleaseForPlatform) are
// returned to the caller as-is. NetworkUnavailable and PartialDownload are
// per-attempt failures that the orchestration layer may retry against another
// mirror. VerificationFailed is always terminal for the artifact bytes it
// refers to.
package fault

import (
	"github.com/zeebo/errs"
)

var (
	// UnsupportedPlatform is returned when a system or architecture string
	// does not normalize to a known value.
	UnsupportedPlatform = errs.Class("unsupported platform")

	// UnknownUpstream is returned when an upstream filter names no
	// configured source.
	UnknownUpstream = errs.Class("unknown upstream")

	// MissingPlaceholder is returned when a URL or filename template
	// references a key the placeholder dictionary does not define.
	MissingPlaceholder = errs.Class("missing placeholder")

	// NoReleaseForPlatform is returned when neither the catalog nor upstream
	// probing know of any release for the platform.
	NoReleaseForPlatform = errs.Class("no release for platform")

	// LegacyVersionRejected is returned for specifiers below the supported
	// version floor.
	LegacyVersionRejected = errs.Class("legacy version rejected")

	// NetworkUnavailable marks a failed request against one mirror.
	NetworkUnavailable = errs.Class("network unavailable")

	// VerificationFailed marks a missing or mismatching detached signature.
	VerificationFailed = errs.Class("verification failed")

	// PartialDownload marks a transfer that ended before the full body was
	// received.
	PartialDownload = errs.Class("partial download")
)

// Recoverable reports whether err is a per-attempt failure that may succeed
// against a different mirror.
func Recoverable(err error) bool {
	if err == nil {
		return false
	}
	return NetworkUnavailable.Has(err) || PartialDownload.Has(err)
}
