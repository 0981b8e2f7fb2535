package embedding

import "fmt"

// ModelIdentity is the key an index is bound to: provider, model and dimension.
func ModelIdentity(provider, model string, dimension int) string {
	return fmt.Sprintf("%s/%s@%d", provider, model, dimension)
}

// CheckBatch verifies a provider answered one vector of the right size per input.
func CheckBatch(want int, vectors [][]float32, dimension int) error {
	if len(vectors) != want {
		return fmt.Errorf("got %d vectors for %d inputs", len(vectors), want)
	}
	for i, v := range vectors {
		if len(v) == 0 {
			return fmt.Errorf("vector %d is empty", i)
		}
		if len(v) != dimension {
			return fmt.Errorf("vector %d has dimension %d, want %d", i, len(v), dimension)
		}
	}
	return nil
}
