package execctx

// resetProcessGlobal restores the process-wide state between tests.
func resetProcessGlobal() {
	globalMu.Lock()
	defer globalMu.Unlock()

	if g := processGlobal.Load(); g != nil {
		_ = g.Close()
	}

	processGlobal.Store(nil)
	globalRuntime = nil
	globalSealed = false
}
