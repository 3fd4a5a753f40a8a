// internal/printer/select.go
package printer

import (
	"go.uber.org/zap"

	"printer-bridge/internal/driver"
)

// SelectDriver probes the candidate backends once, in order, and returns
// the first whose transport the host exposes. When none is available the
// first candidate is returned anyway so the manager starts in the
// unavailable state instead of failing construction; callers can Reprobe
// later.
func SelectDriver(logger *zap.Logger, candidates ...driver.Driver) driver.Driver {
	for _, drv := range candidates {
		if drv.Available() {
			logger.Info("Printer backend selected", zap.String("driver", drv.Name()))
			return drv
		}
		logger.Info("Printer backend unavailable", zap.String("driver", drv.Name()))
	}

	logger.Warn("No printer backend available on this host")
	return candidates[0]
}
