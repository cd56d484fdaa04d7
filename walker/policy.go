package walker

import "github.com/evidentia/orc-core/internal/config"

// shouldConsider reports whether a record should be walked at all,
// before attribute assembly, given its in-use flag and the configured
// resurrection policy. In-use records are always considered regardless
// of policy.
func shouldConsider(mode config.ResurrectMode, inUse bool) bool {
	if inUse {
		return true
	}
	return mode != config.ResurrectNo
}

// assembleStrict reports whether attribute assembly should abort the
// whole attribute set on a missing $ATTRIBUTE_LIST continuation
// (strict) or keep whatever decodes (best-effort). In-use records are
// always best-effort: a missing continuation on a live file is an
// assembly problem, not grounds to hide the file. Deleted records
// follow the configured policy.
func assembleStrict(mode config.ResurrectMode, inUse bool) bool {
	if inUse {
		return false
	}
	return mode == config.ResurrectStrictOnly
}

// shouldKeepResurrected reports whether a deleted record with a
// non-nil assembly error should still be emitted. Strict-only mode
// skips it; best-effort keeps it.
func shouldKeepResurrected(mode config.ResurrectMode, inUse bool, assembleErr error) bool {
	if inUse || assembleErr == nil {
		return true
	}
	return mode == config.ResurrectBestEffort
}
