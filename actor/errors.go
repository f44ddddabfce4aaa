package actor

import "github.com/loomrun/loom/errs"

// errNotConfigured reports a suspension point invoked without its
// backing port wired in. This is a permanent error: no retry will make
// an absent collaborator appear.
func errNotConfigured(what string, id Identity) error {
	return errs.Permanent(what+" not configured for "+id.String(), nil)
}
