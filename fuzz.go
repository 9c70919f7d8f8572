//go:build gofuzz
// +build gofuzz

package fat

func Fuzz(data []byte) int {
	// parseBPB always gets one full device block.
	if len(data) < 512 {
		data = append(data, make([]byte, 512-len(data))...)
	}

	if _, err := parseBPB(9, data[:512]); err != nil {
		return 0
	}
	return 1
}
