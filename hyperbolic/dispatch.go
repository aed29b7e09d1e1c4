package hyperbolic

import "sync/atomic"

// syncDispatch fires a payload exactly once per phase, as soon as every
// worker has finished the rows shared with other ranks. Workers call
// Check row by row with a condition that flips true once they are past
// the export range; a worker whose slice never satisfies the condition
// force-checks after its last row.
type syncDispatch struct {
	payload  func()
	nWorkers int32
	nReady   atomic.Int32
}

func newSyncDispatch(nWorkers int, payload func()) *syncDispatch {
	return &syncDispatch{payload: payload, nWorkers: int32(nWorkers)}
}

func (sd *syncDispatch) Check(workerReady *bool, condition bool) {
	if *workerReady || !condition {
		return
	}
	*workerReady = true
	if sd.nReady.Add(1) == sd.nWorkers && sd.payload != nil {
		sd.payload()
	}
}
