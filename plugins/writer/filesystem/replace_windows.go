//go:build windows

package filesystem

import "golang.org/x/sys/windows"

// replaceFile 使用 MoveFileEx(REPLACE_EXISTING|WRITE_THROUGH) 替换已存在的报告。
func replaceFile(tmpPath, dest string) error {
	from, err := windows.UTF16PtrFromString(tmpPath)
	if err != nil {
		return err
	}
	to, err := windows.UTF16PtrFromString(dest)
	if err != nil {
		return err
	}
	return windows.MoveFileEx(from, to, windows.MOVEFILE_REPLACE_EXISTING|windows.MOVEFILE_WRITE_THROUGH)
}

// Windows 上目录无法 fsync。
func syncDir(string) error { return nil }
