package contract

import (
	"context"
	"io"
)

// Decoder: 将单个输入文件解码为寄存器树。
// 不合法 JSON 返回包装 ErrDocumentInvalid 的错误。
type Decoder interface {
	Decode(ctx context.Context, id FileID, r io.Reader) (Tree, error)
}

// Encoder: 将内存中的报告编码为字节流，交给 Writer。
// Ext 返回工件扩展名（不含点），用于推导 <base>_report.<ext>。
type Encoder interface {
	Encode(ctx context.Context, v any) (io.Reader, error)
	Ext() string
}
