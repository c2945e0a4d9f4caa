package camera

import "log/slog"

// Format is a negotiated capture format.
type Format struct {
	Width  int
	Height int
	FourCC uint32
}

// candidateSizes is the fixed resolution ladder, most preferred first.
var candidateSizes = [][2]int{
	{640, 480},
	{800, 600},
	{1280, 720},
	{1920, 1080},
	{320, 240},
}

// candidateFormats tries compressed before raw.
var candidateFormats = []uint32{FourCCMJPG, FourCCYUYV}

// FourCCName returns the printable tag for a fourcc code.
func FourCCName(fourcc uint32) string {
	return string([]byte{
		byte(fourcc),
		byte(fourcc >> 8),
		byte(fourcc >> 16),
		byte(fourcc >> 24),
	})
}

// Negotiate walks the candidate table in a fixed order, every size
// under MJPEG and then every size under YUYV, and returns the first
// format the backend accepts. Entries in preferred are tried before
// the table. Returns ErrFormatExhausted when everything is rejected.
func Negotiate(b Backend, preferred []Format, logger *slog.Logger) (Format, error) {
	for _, f := range preferred {
		if f.Width <= 0 || f.Height <= 0 || f.FourCC == 0 {
			continue
		}
		if err := b.SetFormat(f.Width, f.Height, f.FourCC); err != nil {
			logger.Debug("preferred format rejected",
				"format", FourCCName(f.FourCC), "width", f.Width, "height", f.Height, "error", err)
			continue
		}
		logger.Info("format negotiated",
			"format", FourCCName(f.FourCC), "width", f.Width, "height", f.Height, "preferred", true)
		return f, nil
	}

	for _, fourcc := range candidateFormats {
		for _, size := range candidateSizes {
			f := Format{Width: size[0], Height: size[1], FourCC: fourcc}
			if err := b.SetFormat(f.Width, f.Height, f.FourCC); err != nil {
				logger.Debug("format rejected",
					"format", FourCCName(fourcc), "width", f.Width, "height", f.Height, "error", err)
				continue
			}
			logger.Info("format negotiated",
				"format", FourCCName(fourcc), "width", f.Width, "height", f.Height)
			return f, nil
		}
	}

	return Format{}, ErrFormatExhausted
}
