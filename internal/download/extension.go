package download

// DetectExtension inspects the leading bytes of downloaded audio and
// returns a file extension without the dot.
//
// Containers are recognized by signature:
//
//	fLaC            -> flac
//	ftyp at offset 4 -> m4a
//	ID3 or MPEG sync -> mp3
//	OggS            -> ogg
//	RIFF            -> wav
//
// Payloads too short to identify, and unrecognized signatures, get the
// neutral extension "audio".
func DetectExtension(data []byte) string {
	if len(data) < 12 {
		return "audio"
	}

	switch {
	case string(data[:4]) == "fLaC":
		return "flac"
	case string(data[4:8]) == "ftyp":
		return "m4a"
	case string(data[:3]) == "ID3":
		return "mp3"
	case data[0] == 0xFF && data[1]&0xE0 == 0xE0:
		return "mp3"
	case string(data[:4]) == "OggS":
		return "ogg"
	case string(data[:4]) == "RIFF":
		return "wav"
	}
	return "audio"
}
