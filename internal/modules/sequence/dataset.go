package sequence

// Window is one supervised example: W consecutive multi-asset rows as
// input and the immediately following row as target. TargetIndex is the
// target's position in the source matrix, used to enforce the
// train/test boundary.
type Window struct {
	Inputs      [][]float64
	Target      []float64
	TargetIndex int
}

// BuildWindows slides a window of length w over the rows. The inputs of
// every window end strictly before its target row, so a window can
// never see its own target or anything after it.
func BuildWindows(rows [][]float64, w int) []Window {
	if w <= 0 || len(rows) <= w {
		return nil
	}
	windows := make([]Window, 0, len(rows)-w)
	for i := 0; i+w < len(rows); i++ {
		windows = append(windows, Window{
			Inputs:      rows[i : i+w],
			Target:      rows[i+w],
			TargetIndex: i + w,
		})
	}
	return windows
}

// SplitAtBoundary partitions windows at the train/test cut. A window
// belongs to train only when its target falls strictly before the
// boundary; test windows may span the boundary on the input side, which
// is the standard walk-forward discipline (the last input step is
// always earlier than the target).
func SplitAtBoundary(windows []Window, boundary int) (train, test []Window) {
	for _, w := range windows {
		if w.TargetIndex < boundary {
			train = append(train, w)
		} else {
			test = append(test, w)
		}
	}
	return train, test
}

// HoldOutValidation carves the chronologically last fraction of the
// train windows into a validation set for early stopping. The split
// stays inside train and never touches test.
func HoldOutValidation(train []Window, fraction float64) (fit, val []Window) {
	if fraction <= 0 || len(train) < 2 {
		return train, nil
	}
	n := int(float64(len(train)) * (1 - fraction))
	if n < 1 {
		n = 1
	}
	if n >= len(train) {
		n = len(train) - 1
	}
	return train[:n], train[n:]
}
