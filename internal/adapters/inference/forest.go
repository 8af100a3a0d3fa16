package inference

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
)

const leafNode = -1

// Tree holds the flat node arrays of one fitted decision tree, exactly as
// sklearn exposes them on estimator.tree_. Value rows hold per-class
// weights at each node.
type Tree struct {
	ChildrenLeft  []int       `json:"children_left"`
	ChildrenRight []int       `json:"children_right"`
	Feature       []int       `json:"feature"`
	Threshold     []float64   `json:"threshold"`
	Value         [][]float64 `json:"value"`
}

type forestFile struct {
	Classes   []string `json:"classes"`
	NFeatures int      `json:"n_features"`
	Trees     []Tree   `json:"trees"`
}

// Forest evaluates a random forest the way sklearn's predict does: inputs are
// cast to float32, each tree contributes normalized leaf class weights, and
// the class with the highest mean probability wins (first on ties).
type Forest struct {
	classes   []string
	nFeatures int
	trees     []Tree
}

func NewForest(classes []string, nFeatures int, trees []Tree) (*Forest, error) {
	if len(classes) == 0 {
		return nil, errors.New("forest has no classes")
	}
	if nFeatures <= 0 {
		return nil, errors.New("forest has no features")
	}
	if len(trees) == 0 {
		return nil, errors.New("forest has no trees")
	}
	for i := range trees {
		if err := validateTree(&trees[i], nFeatures, len(classes)); err != nil {
			return nil, fmt.Errorf("tree %d: %w", i, err)
		}
	}
	return &Forest{classes: classes, nFeatures: nFeatures, trees: trees}, nil
}

func LoadForest(path string) (*Forest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var ff forestFile
	if err := json.Unmarshal(data, &ff); err != nil {
		return nil, fmt.Errorf("decode forest: %w", err)
	}
	return NewForest(ff.Classes, ff.NFeatures, ff.Trees)
}

// WriteForest stores a forest in the artifact format.
func WriteForest(path string, f *Forest) error {
	data, err := json.Marshal(forestFile{Classes: f.classes, NFeatures: f.nFeatures, Trees: f.trees})
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// validateTree rejects arrays that would index out of range or loop. sklearn
// always numbers children after their parent, which rules out cycles.
func validateTree(t *Tree, nFeatures, nClasses int) error {
	n := len(t.ChildrenLeft)
	if n == 0 {
		return errors.New("empty tree")
	}
	if len(t.ChildrenRight) != n || len(t.Feature) != n || len(t.Threshold) != n || len(t.Value) != n {
		return errors.New("node arrays differ in length")
	}
	for node := 0; node < n; node++ {
		left, right := t.ChildrenLeft[node], t.ChildrenRight[node]
		if len(t.Value[node]) != nClasses {
			return fmt.Errorf("node %d: value has %d classes, want %d", node, len(t.Value[node]), nClasses)
		}
		if left == leafNode && right == leafNode {
			continue
		}
		if left <= node || right <= node || left >= n || right >= n {
			return fmt.Errorf("node %d: invalid children %d/%d", node, left, right)
		}
		if f := t.Feature[node]; f < 0 || f >= nFeatures {
			return fmt.Errorf("node %d: feature %d out of range", node, f)
		}
	}
	return nil
}

func (f *Forest) Predict(ctx context.Context, features []float64) (string, error) {
	if len(features) != f.nFeatures {
		return "", fmt.Errorf("expected %d features, got %d", f.nFeatures, len(features))
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	x := make([]float64, len(features))
	for i, v := range features {
		x[i] = float64(float32(v))
	}

	proba := make([]float64, len(f.classes))
	for i := range f.trees {
		leaf := f.trees[i].Value[f.trees[i].apply(x)]
		var total float64
		for _, w := range leaf {
			total += w
		}
		if total == 0 {
			continue
		}
		for c, w := range leaf {
			proba[c] += w / total
		}
	}

	best := 0
	for c := 1; c < len(proba); c++ {
		if proba[c] > proba[best] {
			best = c
		}
	}
	return f.classes[best], nil
}

func (t *Tree) apply(x []float64) int {
	node := 0
	for t.ChildrenLeft[node] != leafNode {
		if x[t.Feature[node]] <= t.Threshold[node] {
			node = t.ChildrenLeft[node]
		} else {
			node = t.ChildrenRight[node]
		}
	}
	return node
}

func (f *Forest) Classes() []string {
	out := make([]string, len(f.classes))
	copy(out, f.classes)
	return out
}

func (f *Forest) Name() string { return "random_forest" }

func (f *Forest) TreeCount() int { return len(f.trees) }
