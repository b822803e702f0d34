package ads

import (
	"context"
	"encoding/binary"
	"fmt"
)

// SumReadRequest is one entry of a SumCommandRead batch.
type SumReadRequest struct {
	IndexGroup, IndexOffset, Length uint32
}

// SumReadResult is one decoded entry of a SumCommandRead response.
type SumReadResult struct {
	Error error
	Data  []byte
}

// sumReadMany batches up to len(reqs) independent reads into a single
// round trip via IndexGroupSumCommandRead, per spec.md §4.9. The 4-byte
// error codes of all reads land first, in request order; the data blocks
// of the successful reads follow, and correlating them to the i-th
// request is this function's job.
func (c *Client) sumReadMany(ctx context.Context, reqs []SumReadRequest) ([]SumReadResult, error) {
	if len(reqs) == 0 {
		return nil, nil
	}
	writeData := make([]byte, 0, 12*len(reqs))
	for _, r := range reqs {
		buf := make([]byte, 12)
		binary.LittleEndian.PutUint32(buf[0:4], r.IndexGroup)
		binary.LittleEndian.PutUint32(buf[4:8], r.IndexOffset)
		binary.LittleEndian.PutUint32(buf[8:12], r.Length)
		writeData = append(writeData, buf...)
	}

	var readLength uint32
	for _, r := range reqs {
		readLength += 4 + r.Length // {errorCode}{data}
	}

	raw, err := c.readWriteRaw(ctx, c.targetAddr, IndexGroupSumCommandRead, uint32(len(reqs)), readLength, writeData)
	if err != nil {
		return nil, err
	}

	results := make([]SumReadResult, len(reqs))
	errOff := 0
	for i := range reqs {
		if errOff+4 > len(raw) {
			return nil, fmt.Errorf("ads: truncated sum-read error block at entry %d", i)
		}
		code := binary.LittleEndian.Uint32(raw[errOff : errOff+4])
		if code != 0 {
			results[i].Error = &AdsError{Code: code}
		}
		errOff += 4
	}

	dataOff := errOff
	for i, r := range reqs {
		if results[i].Error != nil {
			continue
		}
		if dataOff+int(r.Length) > len(raw) {
			return nil, fmt.Errorf("ads: truncated sum-read data block at entry %d", i)
		}
		results[i].Data = raw[dataOff : dataOff+int(r.Length)]
		dataOff += int(r.Length)
	}
	return results, nil
}

// SumWriteRequest is one entry of a SumCommandWrite batch.
type SumWriteRequest struct {
	IndexGroup, IndexOffset uint32
	Data                    []byte
}

// sumWriteMany batches up to len(reqs) independent writes into a single
// round trip via IndexGroupSumCommandWrite, returning one error per
// entry in request order.
func (c *Client) sumWriteMany(ctx context.Context, reqs []SumWriteRequest) ([]error, error) {
	if len(reqs) == 0 {
		return nil, nil
	}
	headers := make([]byte, 0, 12*len(reqs))
	data := make([]byte, 0)
	for _, r := range reqs {
		buf := make([]byte, 12)
		binary.LittleEndian.PutUint32(buf[0:4], r.IndexGroup)
		binary.LittleEndian.PutUint32(buf[4:8], r.IndexOffset)
		binary.LittleEndian.PutUint32(buf[8:12], uint32(len(r.Data)))
		headers = append(headers, buf...)
		data = append(data, r.Data...)
	}
	writeData := append(headers, data...)
	readLength := uint32(4 * len(reqs))

	raw, err := c.readWriteRaw(ctx, c.targetAddr, IndexGroupSumCommandWrite, uint32(len(reqs)), readLength, writeData)
	if err != nil {
		return nil, err
	}

	errs := make([]error, len(reqs))
	off := 0
	for i := range reqs {
		if off+4 > len(raw) {
			return nil, fmt.Errorf("ads: truncated sum-write response at entry %d", i)
		}
		code := binary.LittleEndian.Uint32(raw[off : off+4])
		if code != 0 {
			errs[i] = &AdsError{Code: code}
		}
		off += 4
	}
	return errs, nil
}

// sumReadWriteMany batches independent ReadWrite operations via
// IndexGroupSumCommandReadWrite.
func (c *Client) sumReadWriteMany(ctx context.Context, reqs []SumReadRequest, writeDatas [][]byte) ([]SumReadResult, error) {
	if len(reqs) != len(writeDatas) {
		return nil, fmt.Errorf("ads: sumReadWriteMany requires matching request/write-data counts")
	}
	headers := make([]byte, 0, 16*len(reqs))
	data := make([]byte, 0)
	var readLength uint32
	for i, r := range reqs {
		buf := make([]byte, 16)
		binary.LittleEndian.PutUint32(buf[0:4], r.IndexGroup)
		binary.LittleEndian.PutUint32(buf[4:8], r.IndexOffset)
		binary.LittleEndian.PutUint32(buf[8:12], r.Length)
		binary.LittleEndian.PutUint32(buf[12:16], uint32(len(writeDatas[i])))
		headers = append(headers, buf...)
		data = append(data, writeDatas[i]...)
		readLength += 4 + r.Length
	}
	writeData := append(headers, data...)

	raw, err := c.readWriteRaw(ctx, c.targetAddr, IndexGroupSumCommandReadWrite, uint32(len(reqs)), readLength, writeData)
	if err != nil {
		return nil, err
	}

	results := make([]SumReadResult, len(reqs))
	errOff := 0
	for i := range reqs {
		if errOff+4 > len(raw) {
			return nil, fmt.Errorf("ads: truncated sum-readwrite error block at entry %d", i)
		}
		code := binary.LittleEndian.Uint32(raw[errOff : errOff+4])
		if code != 0 {
			results[i].Error = &AdsError{Code: code}
		}
		errOff += 4
	}
	dataOff := errOff
	for i, r := range reqs {
		if results[i].Error != nil {
			continue
		}
		if dataOff+int(r.Length) > len(raw) {
			return nil, fmt.Errorf("ads: truncated sum-readwrite data block at entry %d", i)
		}
		results[i].Data = raw[dataOff : dataOff+int(r.Length)]
		dataOff += int(r.Length)
	}
	return results, nil
}
