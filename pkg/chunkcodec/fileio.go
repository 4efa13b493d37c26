package chunkcodec

import (
	"fmt"
	"os"
)

// writeFileExclusive creates path and writes data to it, failing if the
// file already exists rather than silently treating that as success: a
// second writer racing the first could otherwise clobber live key
// material.
func writeFileExclusive(path string, data []byte) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		if os.IsExist(err) {
			return fmt.Errorf("key file %s already exists", path)
		}
		return err
	}
	defer f.Close()
	_, err = f.Write(data)
	return err
}

func readFile(path string) ([]byte, error) {
	return os.ReadFile(path)
}
