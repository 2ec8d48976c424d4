package tremotesf

// clientMinimumRPCVersion is the lowest Transmission RPC version this engine
// speaks (spec.md §4.4: "verify minimum_rpc_version ≤ 14 AND rpc_version ≥
// 14"). It is a constant, not configurable, because the wire formats this
// engine parses (trackerStats, fileStats, ...) assume RPC v14+.
const clientMinimumRPCVersion = 14

// checkVersion implements spec.md's law 7 (§8): the engine may proceed past
// the handshake iff serverMinimumRPCVersion <= clientMinimumRPCVersion <=
// serverRPCVersion. ok is false along with the ErrorKind that should
// disconnect the engine.
func checkVersion(serverRPCVersion, serverMinimumRPCVersion int64) (ok bool, kind ErrorKind) {
	if serverMinimumRPCVersion > clientMinimumRPCVersion {
		return false, ServerIsTooNew
	}
	if serverRPCVersion < clientMinimumRPCVersion {
		return false, ServerIsTooOld
	}
	return true, NoError
}
