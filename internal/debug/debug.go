//go:build !release
// +build !release

package debug

import _ "unsafe"

//go:linkname throw runtime.throw
func throw(string)

// Assert crashes the process when fn returns false. It compiles to a
// no-op under the release tag, so fn may be arbitrarily expensive.
func Assert(info string, fn func() bool) {
	if !fn() {
		throw("assertion failed: " + info)
	}
}
