package extract

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

type fakeExtractor struct {
	name     string
	category string
	result   Result
	err      error
}

func (f fakeExtractor) Name() string { return f.name }
func (f fakeExtractor) Applies(category string) bool { return category == f.category }
func (f fakeExtractor) Extract(ctx context.Context, path string) (Result, error) {
	return f.result, f.err
}

func TestRunAllSkipsNonApplicable(t *testing.T) {
	extractors := []Extractor{
		fakeExtractor{name: "EXIF", category: "image", result: Result{Fields: map[string]string{"EXIF_Make": "Canon"}}},
		fakeExtractor{name: "Audio", category: "audio", result: Result{Fields: map[string]string{"Audio_Codec": "aac"}}},
	}

	results, errs := RunAll(context.Background(), extractors, "image", "/x/a.jpg")
	assert.Len(t, results, 1)
	assert.Contains(t, results, "EXIF")
	assert.Empty(t, errs)
}

func TestRunAllIsolatesErrors(t *testing.T) {
	extractors := []Extractor{
		fakeExtractor{name: "Broken", category: "image", err: errors.New("tool crashed")},
		fakeExtractor{name: "EXIF", category: "image", result: Result{Fields: map[string]string{"EXIF_Make": "Canon"}}},
	}

	results, errs := RunAll(context.Background(), extractors, "image", "/x/a.jpg")
	assert.Len(t, results, 1)
	assert.Len(t, errs, 1)
	assert.Contains(t, errs, "Broken")
}

func TestRunAllEmptyExtractorList(t *testing.T) {
	results, errs := RunAll(context.Background(), nil, "image", "/x/a.jpg")
	assert.Empty(t, results)
	assert.Empty(t, errs)
}
