package lease

import (
	"fmt"
	"strings"

	"github.com/loomrun/loom/errs"
)

func splitLeaseID(leaseID string) (resource, token string, err error) {
	idx := strings.LastIndex(leaseID, ":")
	if idx < 0 {
		return "", "", fmt.Errorf("lease: malformed lease id %q", leaseID)
	}
	return leaseID[:idx], leaseID[idx+1:], nil
}

func errLeaseNotHeld(resource string) error {
	return errs.Transient("lease for "+resource+" not held or expired", nil)
}
