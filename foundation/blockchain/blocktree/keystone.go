package blocktree

// Keystones are blocks at heights that are a multiple of the keystone
// interval. Branches are only compared by PoP score once they cross a
// keystone boundary after their fork point.

// IsKeystone reports whether the height is a keystone height.
func IsKeystone(height int32, interval int32) bool {
	return height%interval == 0
}

// HighestKeystoneAtOrBefore returns the highest keystone height that is not
// above the specified height.
func HighestKeystoneAtOrBefore(height int32, interval int32) int32 {
	return height - height%interval
}

// FirstKeystoneAfter returns the lowest keystone height strictly above the
// specified height.
func FirstKeystoneAfter(height int32, interval int32) int32 {
	return height + interval - height%interval
}

// PreviousKeystoneHeight returns the highest keystone height strictly below
// the specified height. Heights at or below zero map to zero.
func PreviousKeystoneHeight(height int32, interval int32) int32 {
	if height <= 0 {
		return 0
	}
	return HighestKeystoneAtOrBefore(height-1, interval)
}

// HighestBlockWhichConnectsKeystoneToPrevious returns the highest block whose
// endorsement still counts towards the specified keystone.
func HighestBlockWhichConnectsKeystoneToPrevious(keystone int32, interval int32) int32 {
	return keystone + interval - 1
}

// KeystoneNumber returns the ordinal of the keystone period the height is in.
func KeystoneNumber(height int32, interval int32) int32 {
	return height / interval
}

// IsCrossedKeystoneBoundary reports whether a branch from bottom to tip
// passes a keystone height.
func IsCrossedKeystoneBoundary(bottom int32, tip int32, interval int32) bool {
	return KeystoneNumber(bottom, interval) < KeystoneNumber(tip, interval)
}
