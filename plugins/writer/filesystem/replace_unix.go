//go:build !windows

package filesystem

import "os"

// replaceFile: POSIX rename 同目录内原子替换。
func replaceFile(tmpPath, dest string) error { return os.Rename(tmpPath, dest) }

func syncDir(dir string) error {
	f, err := os.Open(dir)
	if err != nil {
		return err
	}
	defer f.Close()
	return f.Sync()
}
