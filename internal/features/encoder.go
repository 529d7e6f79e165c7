package features

import (
	"fmt"
	"slices"
)

// LabelEncoder maps class labels to dense integer codes. Classes are sorted
// lexicographically and a label's code is its position.
type LabelEncoder struct {
	Classes []string `json:"classes"`
}

// FitLabelEncoder collects the distinct labels.
func FitLabelEncoder(labels []string) *LabelEncoder {
	classes := slices.Clone(labels)
	slices.Sort(classes)
	return &LabelEncoder{Classes: slices.Compact(classes)}
}

// Len returns the number of classes.
func (e *LabelEncoder) Len() int { return len(e.Classes) }

// Encode returns the code for label.
func (e *LabelEncoder) Encode(label string) (int, error) {
	i, ok := slices.BinarySearch(e.Classes, label)
	if !ok {
		return 0, fmt.Errorf("unknown label %q", label)
	}
	return i, nil
}

// EncodeAll encodes every label.
func (e *LabelEncoder) EncodeAll(labels []string) ([]int, error) {
	codes := make([]int, len(labels))
	for i, l := range labels {
		c, err := e.Encode(l)
		if err != nil {
			return nil, err
		}
		codes[i] = c
	}
	return codes, nil
}

// Decode returns the label for code.
func (e *LabelEncoder) Decode(code int) (string, error) {
	if code < 0 || code >= len(e.Classes) {
		return "", fmt.Errorf("class code %d out of range [0, %d)", code, len(e.Classes))
	}
	return e.Classes[code], nil
}

// Validate checks the classes are sorted and distinct.
func (e *LabelEncoder) Validate() error {
	if len(e.Classes) == 0 {
		return fmt.Errorf("label encoder has no classes")
	}
	for i := 1; i < len(e.Classes); i++ {
		if e.Classes[i-1] >= e.Classes[i] {
			return fmt.Errorf("label encoder classes not sorted and unique at %d", i)
		}
	}
	return nil
}
