package contract

import (
	"path"
	"strings"
)

// NormalizeFileID 规范化路径，统一为跨平台稳定的 FileID。
// 规则：
// - 反斜杠统一为正斜杠
// - 清理多余分隔符与路径片段（.、..）
// - 保留相对/绝对语义，不做隐式绝对化
func NormalizeFileID(p string) FileID {
	return FileID(path.Clean(strings.ReplaceAll(p, "\\", "/")))
}

// ReportID 由输入文件标识推导报告工件标识：<dir>/<base>_report.<ext>。
func ReportID(id FileID, ext string) ArtifactID {
	s := string(id)
	dir, base := path.Split(s)
	if e := path.Ext(base); e != "" {
		base = strings.TrimSuffix(base, e)
	}
	if base == "" || base == "." {
		base = "stdin"
	}
	return ArtifactID(dir + base + "_report." + strings.TrimPrefix(ext, "."))
}
