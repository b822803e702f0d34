package ads

import (
	"context"
	"encoding/binary"
	"fmt"
)

// UploadInfo summarizes the target's symbol/data-type table sizes, as
// returned by SymbolUploadInfo2, per spec.md §4.10.
type UploadInfo struct {
	SymbolCount       uint32
	SymbolLength      uint32
	DataTypeCount     uint32
	DataTypeLength    uint32
	ExtraCount        uint32
	ExtraLength       uint32
}

// readUploadInfo issues SymbolUploadInfo2.
func (c *Client) readUploadInfo(ctx context.Context) (UploadInfo, error) {
	raw, err := c.readRaw(ctx, c.targetAddr, IndexGroupSymbolUploadInfo2, 0, 24)
	if err != nil {
		return UploadInfo{}, err
	}
	if len(raw) < 24 {
		return UploadInfo{}, fmt.Errorf("short SymbolUploadInfo2 response (%d bytes)", len(raw))
	}
	return UploadInfo{
		SymbolCount:    binary.LittleEndian.Uint32(raw[0:4]),
		SymbolLength:   binary.LittleEndian.Uint32(raw[4:8]),
		DataTypeCount:  binary.LittleEndian.Uint32(raw[8:12]),
		DataTypeLength: binary.LittleEndian.Uint32(raw[12:16]),
		ExtraCount:     binary.LittleEndian.Uint32(raw[16:20]),
		ExtraLength:    binary.LittleEndian.Uint32(raw[20:24]),
	}, nil
}

// uploadSymbols reads the target's full symbol table in one round trip
// via SymbolUpload, decoding each length-prefixed entry in sequence.
func (c *Client) uploadSymbols(ctx context.Context) ([]SymbolInfo, error) {
	info, err := c.readUploadInfo(ctx)
	if err != nil {
		return nil, err
	}
	raw, err := c.readRaw(ctx, c.targetAddr, IndexGroupSymbolUpload, 0, info.SymbolLength)
	if err != nil {
		return nil, err
	}

	symbols := make([]SymbolInfo, 0, info.SymbolCount)
	off := 0
	for off < len(raw) {
		if off+30 > len(raw) {
			break
		}
		entryLen := int(binary.LittleEndian.Uint32(raw[off : off+4]))
		if entryLen <= 0 || off+entryLen > len(raw) {
			break
		}
		info, err := decodeSymbolUploadEntry(raw[off : off+entryLen])
		if err != nil {
			return nil, err
		}
		symbols = append(symbols, info)
		off += entryLen
	}
	return symbols, nil
}

// decodeSymbolUploadEntry decodes one SymbolUpload entry, which carries
// the same header shape as a SymbolInfoByNameEx response with a leading
// entry-length field.
func decodeSymbolUploadEntry(raw []byte) (SymbolInfo, error) {
	const headerLen = 30
	if len(raw) < headerLen+4 {
		return SymbolInfo{}, fmt.Errorf("short symbol upload entry (%d bytes)", len(raw))
	}
	// raw[0:4] is the entry length already consumed by the caller's slicing.
	body := raw[4:]
	return decodeSymbolInfoEntry(body)
}

// uploadDataTypes reads the target's full data type table via
// DataTypeUpload, decoding each entry with the type resolver's shared
// decoder.
func (c *Client) uploadDataTypes(ctx context.Context) ([]*ResolvedType, error) {
	info, err := c.readUploadInfo(ctx)
	if err != nil {
		return nil, err
	}
	raw, err := c.readRaw(ctx, c.targetAddr, IndexGroupDataTypeUpload, 0, info.DataTypeLength)
	if err != nil {
		return nil, err
	}

	types := make([]*ResolvedType, 0, info.DataTypeCount)
	off := 0
	for off < len(raw) {
		if off+4 > len(raw) {
			break
		}
		entryLen := int(binary.LittleEndian.Uint32(raw[off : off+4]))
		if entryLen <= 0 || off+entryLen > len(raw) {
			break
		}
		t, err := c.types.decodeDataTypeEntry(ctx, raw[off:off+entryLen])
		if err != nil {
			return nil, err
		}
		types = append(types, t)
		off += entryLen
	}
	return types, nil
}
