package processor

import "fmt"

// Default output caps used when the caller omits them. Window extracts and
// rectangular matrices have historically different payload sizes.
const (
	DefaultWindowSize = 200
	DefaultMatrixSize = 150
)

// Resolve caps each axis of the pixel box independently. It never upsamples,
// and the two axes may lose their aspect ratio.
func Resolve(pb PixelBox, maxWidth, maxHeight int) ResolvedOutput {
	out := ResolvedOutput{Width: pb.RawWidth(), Height: pb.RawHeight()}
	if out.Width > maxWidth {
		out.Width = maxWidth
		out.Interpolated = true
	}
	if out.Height > maxHeight {
		out.Height = maxHeight
		out.Interpolated = true
	}
	return out
}

// capsOrDefault substitutes def for missing caps.
func capsOrDefault(maxWidth, maxHeight, def int) (int, int) {
	if maxWidth <= 0 {
		maxWidth = def
	}
	if maxHeight <= 0 {
		maxHeight = def
	}
	return maxWidth, maxHeight
}

// Advisory is the warning returned with interpolated outputs.
func Advisory(pb PixelBox, out ResolvedOutput) string {
	return fmt.Sprintf("Data delivered at %dx%d points, interpolated from %dx%d source pixels. Query a smaller area to obtain full resolution data.",
		out.Width, out.Height, pb.RawWidth(), pb.RawHeight())
}
