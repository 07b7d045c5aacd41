package sequence

// MinMaxScaler maps each feature column into [0,1] using bounds
// estimated on the train partition only, so no test-partition
// information leaks into the scaling.
type MinMaxScaler struct {
	Min []float64
	Max []float64
}

// FitScaler estimates per-column bounds from the given rows.
func FitScaler(rows [][]float64) *MinMaxScaler {
	if len(rows) == 0 {
		return &MinMaxScaler{}
	}
	cols := len(rows[0])
	s := &MinMaxScaler{
		Min: make([]float64, cols),
		Max: make([]float64, cols),
	}
	copy(s.Min, rows[0])
	copy(s.Max, rows[0])
	for _, row := range rows[1:] {
		for j, v := range row {
			if v < s.Min[j] {
				s.Min[j] = v
			}
			if v > s.Max[j] {
				s.Max[j] = v
			}
		}
	}
	return s
}

// Transform scales rows into [0,1]. Constant columns map to zero.
func (s *MinMaxScaler) Transform(rows [][]float64) [][]float64 {
	out := make([][]float64, len(rows))
	for i, row := range rows {
		out[i] = s.TransformRow(row)
	}
	return out
}

// TransformRow scales a single row.
func (s *MinMaxScaler) TransformRow(row []float64) []float64 {
	out := make([]float64, len(row))
	for j, v := range row {
		span := s.Max[j] - s.Min[j]
		if span == 0 {
			out[j] = 0
			continue
		}
		out[j] = (v - s.Min[j]) / span
	}
	return out
}

// InverseRow maps a scaled row back to transform space.
func (s *MinMaxScaler) InverseRow(row []float64) []float64 {
	out := make([]float64, len(row))
	for j, v := range row {
		out[j] = v*(s.Max[j]-s.Min[j]) + s.Min[j]
	}
	return out
}

// InverseValue maps a single scaled value for column j back to
// transform space.
func (s *MinMaxScaler) InverseValue(j int, v float64) float64 {
	return v*(s.Max[j]-s.Min[j]) + s.Min[j]
}
