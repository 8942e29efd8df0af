package common

// WipeByteArray overwrites b with zeros. Callers use it to drop passwords
// from memory once a request body has been built. A nil slice is a no-op.
func WipeByteArray(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
