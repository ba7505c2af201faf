// internal/app/system/limits/limits.go
// Package limits holds request size and row-count caps for the API.
package limits

const (
	// MaxJSONBody caps any JSON request body.
	MaxJSONBody = 1 << 20 // 1 MB

	// MaxInsertRows caps the rows accepted by one insert.
	MaxInsertRows = 500

	// DefaultSelectLimit applies when a select names no limit.
	DefaultSelectLimit = 200

	// MaxSelectLimit is the largest limit a caller may ask for.
	MaxSelectLimit = 1000

	// MaxExportRows caps workbook exports.
	MaxExportRows = 20000
)

// ClampLimit turns a requested limit into the one to use: non-positive
// means DefaultSelectLimit and anything above MaxSelectLimit is cut down.
func ClampLimit(n int) int {
	switch {
	case n <= 0:
		return DefaultSelectLimit
	case n > MaxSelectLimit:
		return MaxSelectLimit
	}
	return n
}
