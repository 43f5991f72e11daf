package tabulaerrors_test

import (
	"errors"
	"fmt"
	"io/fs"

	"github.com/ajitpratap0/tabula/pkg/tabulaerrors"
)

// Example demonstrates basic error creation.
func Example() {
	err := tabulaerrors.New(tabulaerrors.ErrorTypeEmptyDataset, "no rows to train on").
		WithDetail("path", "train.csv")

	fmt.Println(err.Error())

	// Output:
	// empty_dataset: no rows to train on
}

// ExampleWrap shows how a lower-level failure keeps its cause.
func ExampleWrap() {
	err := tabulaerrors.Wrap(fs.ErrNotExist, tabulaerrors.ErrorTypeArtifactMissing, "schema artifact not found").
		WithDetail("path", "artifacts/metadata.json")

	if tabulaerrors.IsType(err, tabulaerrors.ErrorTypeArtifactMissing) {
		fmt.Println("artifact missing")
	}
	if errors.Is(err, fs.ErrNotExist) {
		fmt.Println("cause is fs.ErrNotExist")
	}

	// Output:
	// artifact missing
	// cause is fs.ErrNotExist
}

// ExampleTypeOf shows how the CLI recovers the class of a wrapped error.
func ExampleTypeOf() {
	inner := tabulaerrors.New(tabulaerrors.ErrorTypeMissingFeature, "feature \"Length\" is absent")
	outer := fmt.Errorf("row 12: %w", inner)

	fmt.Println(tabulaerrors.TypeOf(outer))
	fmt.Println(tabulaerrors.TypeOf(errors.New("plain")))

	// Output:
	// missing_feature
	// internal
}
