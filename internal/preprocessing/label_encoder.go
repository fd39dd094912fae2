package preprocessing

import (
	"fmt"

	"github.com/yamesant/pima-indians-diabetes-analysis/internal/data"
)

// Encoded outcome classes. The positive class is always Yes.
const (
	ClassNo  = 0
	ClassYes = 1
)

// OutcomeEncoder maps the two outcome labels to model classes. The mapping
// is fixed rather than learned so that Yes stays the positive class on every
// fold, whatever labels the fold happens to contain.
type OutcomeEncoder struct {
	ClassToInt map[string]int
	IntToClass map[int]string
}

func NewOutcomeEncoder() *OutcomeEncoder {
	return &OutcomeEncoder{
		ClassToInt: map[string]int{data.LabelNo: ClassNo, data.LabelYes: ClassYes},
		IntToClass: map[int]string{ClassNo: data.LabelNo, ClassYes: data.LabelYes},
	}
}

func (le *OutcomeEncoder) Transform(labels []string) ([]int, error) {
	result := make([]int, len(labels))
	for i, label := range labels {
		if val, ok := le.ClassToInt[label]; ok {
			result[i] = val
		} else {
			return nil, fmt.Errorf("unknown label: %s", label)
		}
	}

	return result, nil
}

func (le *OutcomeEncoder) InverseTransform(encoded []int) ([]string, error) {
	result := make([]string, len(encoded))
	for i, val := range encoded {
		if label, ok := le.IntToClass[val]; ok {
			result[i] = label
		} else {
			return nil, fmt.Errorf("unknown encoding: %d", val)
		}
	}

	return result, nil
}
