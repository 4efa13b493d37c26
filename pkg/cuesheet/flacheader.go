package cuesheet

import (
	"bytes"
	"os"

	"github.com/mewkiz/flac"

	"github.com/hideselfview/bae/pkg/musicerr"
)

// FlacHeaders holds the audio properties a CUE-indexed track needs to
// locate its bytes inside a shared FLAC file. SampleRate/NSamples/
// Channels/BitsPerSample come from the maintained mewkiz/flac STREAMINFO
// parser; AudioStartByte is still walked by hand since that library does
// not expose it.
type FlacHeaders struct {
	Headers        []byte // raw metadata blocks, bytes [0, AudioStartByte)
	AudioStartByte uint64
	SampleRate     uint32
	TotalSamples   uint64
	Channels       uint16
	BitsPerSample  uint16
}

// ExtractFlacHeaders reads path and returns its header blocks and
// STREAMINFO properties.
func ExtractFlacHeaders(path string) (*FlacHeaders, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, musicerr.NewCueSheetError("reading flac file", err)
	}
	return parseFlacHeaders(data)
}

func parseFlacHeaders(data []byte) (*FlacHeaders, error) {
	audioStart, err := findAudioStart(data)
	if err != nil {
		return nil, err
	}
	headers := data[:audioStart]

	stream, err := flac.New(bytes.NewReader(data))
	if err != nil {
		return nil, musicerr.NewCueSheetError("parsing flac stream info", err)
	}
	defer stream.Close()

	info := stream.Info
	return &FlacHeaders{
		Headers:        headers,
		AudioStartByte: audioStart,
		SampleRate:     info.SampleRate,
		TotalSamples:   info.NSamples,
		Channels:       uint16(info.NChannels),
		BitsPerSample:  uint16(info.BitsPerSample),
	}, nil
}

// findAudioStart walks the FLAC metadata block chain to find where the
// first audio frame begins.
func findAudioStart(data []byte) (uint64, error) {
	if len(data) < 4 || string(data[0:4]) != "fLaC" {
		return 0, musicerr.NewCueSheetError("invalid flac signature", nil)
	}

	pos := 4
	for {
		if pos+4 > len(data) {
			return 0, musicerr.NewCueSheetError("unexpected end of file walking flac metadata blocks", nil)
		}
		header := uint32(data[pos])<<24 | uint32(data[pos+1])<<16 | uint32(data[pos+2])<<8 | uint32(data[pos+3])
		isLast := header&0x80000000 != 0
		blockSize := int(header & 0x00FFFFFF)

		pos += 4 + blockSize
		if isLast {
			break
		}
	}
	return uint64(pos), nil
}

// EstimateBytePosition converts a CUE index timestamp into an
// approximate byte offset within a FLAC file, scaling linearly against
// total audio duration. This is the proportional sample→byte scaling
// accepted as approximate rather than exact (CUE indices do not carry
// true sample offsets).
func EstimateBytePosition(timeMS uint64, headers *FlacHeaders, fileSize uint64) uint64 {
	if headers.TotalSamples == 0 || headers.SampleRate == 0 {
		return headers.AudioStartByte
	}

	totalDurationMS := (headers.TotalSamples * 1000) / uint64(headers.SampleRate)
	if totalDurationMS == 0 {
		return headers.AudioStartByte
	}

	audioSize := fileSize - headers.AudioStartByte
	estimatedAudioByte := (timeMS * audioSize) / totalDurationMS

	return headers.AudioStartByte + estimatedAudioByte
}
