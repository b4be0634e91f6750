package reconcile

import (
	"context"

	"github.com/sitevar/sitevar/internal/connectivity"
)

// BindMonitor subscribes the reconciler to m so that every regained
// connection runs a reconciliation pass. The pass runs synchronously on
// the goroutine that reported the transition; triggers that arrive while
// a pass is in flight join it through the single-flight group, so a
// flapping link still produces one pass. onDone, when non-nil, receives
// each pass's outcome. The returned func unsubscribes.
func (r *Reconciler) BindMonitor(ctx context.Context, m *connectivity.Monitor, onDone func(SyncResult, error)) (unsubscribe func()) {
	return m.OnChange(func(online bool) {
		if !online {
			return
		}
		res, err := r.Reconcile(ctx)
		if err != nil {
			r.log.Warn("triggered reconcile failed", "error", err)
		}
		if onDone != nil {
			onDone(res, err)
		}
	})
}
