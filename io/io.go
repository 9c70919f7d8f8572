package io

// Device is an interface abstracting a synchronous block device. All
// transfers are whole blocks, and the block size is a power of two that
// does not change for the lifetime of the device.
type Device interface {
	// Log2BlockSize returns the base-2 logarithm of the block size
	// in bytes.
	Log2BlockSize() uint32

	// Read fills p with count blocks starting at the given block
	// number. p must be at least count blocks long. The contents of
	// p are undefined if an error is returned.
	Read(block uint64, count uint32, p []byte) error

	// Write stores count blocks from p starting at the given block
	// number. The write is visible to subsequent reads once it
	// returns; there is no internal buffering to flush.
	Write(block uint64, count uint32, p []byte) error
}
