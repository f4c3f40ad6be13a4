package rag

import (
	"encoding/binary"
	"fmt"
	"math"
)

// SQL 存储以 float32 小端序落盘，每维 4 字节。
const vectorElemSize = 4

func convertVector[From, To float32 | float64](v []From) []To {
	if v == nil {
		return nil
	}
	out := make([]To, len(v))
	for i, x := range v {
		out[i] = To(x)
	}
	return out
}

func Float32ToFloat64(v []float32) []float64 { return convertVector[float32, float64](v) }

// Float64ToFloat32 会损失精度。
func Float64ToFloat32(v []float64) []float32 { return convertVector[float64, float32](v) }

// EncodeVector 把嵌入向量编码为 sql 存储的 blob。
func EncodeVector(v []float64) []byte {
	buf := make([]byte, 0, vectorElemSize*len(v))
	for _, x := range v {
		buf = binary.LittleEndian.AppendUint32(buf, math.Float32bits(float32(x)))
	}
	return buf
}

func DecodeVector(b []byte) ([]float64, error) {
	if len(b)%vectorElemSize != 0 {
		return nil, fmt.Errorf("invalid vector blob length %d", len(b))
	}
	out := make([]float64, 0, len(b)/vectorElemSize)
	for off := 0; off < len(b); off += vectorElemSize {
		out = append(out, float64(math.Float32frombits(binary.LittleEndian.Uint32(b[off:]))))
	}
	return out, nil
}
