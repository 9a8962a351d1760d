package mathx

// ConvertScale は区間 [xMin, xMax] 上の x を区間 [yMin, yMax] へ線形に写します。
func ConvertScale(x, xMin, xMax, yMin, yMax float32) float32 {
	return yMin + (yMax-yMin)*(x-xMin)/(xMax-xMin)
}

// Clip は x を [lo, hi] に収めます。
func Clip(x, lo, hi float32) float32 {
	if x < lo {
		return lo
	}
	if x > hi {
		return hi
	}
	return x
}
