package contract

import "errors"

// 最小错误分类（哨兵）。调用方使用 errors.Is 判定，不做字符串匹配。
var (
	// ErrPathInvalid: 目标标识映射为无效/越界路径（例如绝对路径或 '..' 逃逸）。
	ErrPathInvalid = errors.New("path invalid")
	// ErrDocumentInvalid: 输入不是合法 JSON 文档。
	ErrDocumentInvalid = errors.New("document invalid")
	// ErrStructureInvalid: 必需顶层键缺失或类型不符（单文件致命，批处理继续）。
	ErrStructureInvalid = errors.New("structure invalid")
	// ErrInvalidInput: 规则参数、忽略表等外部输入非法。
	ErrInvalidInput = errors.New("invalid input")
	// ErrInvariantViolation: 领域不变量违例（通用哨兵）。
	ErrInvariantViolation = errors.New("invariant violation")
)
