// Package mmfile maps input executables into memory.
package mmfile

// ReadCopy maps path, copies its contents and unmaps it again. Callers that
// keep the bytes past the file's lifetime use this instead of Map.
func ReadCopy(path string) ([]byte, error) {
	data, cleanup, err := Map(path)
	if err != nil {
		return nil, err
	}
	out := make([]byte, len(data))
	copy(out, data)
	if err := cleanup(); err != nil {
		return nil, err
	}
	return out, nil
}
