package models

import "testing"

func TestClassifyPath(t *testing.T) {
	cases := []struct {
		path string
		want Category
	}{
		{"/data/datasets/cells/measurements.csv", CategoryDataset},
		{"/data/paper/attention-is-all-you-need.pdf", CategoryPaper},
		{"/data/papers/deep/nested/study.pdf", CategoryPaper},
		{"/data/poster/conference-2025.pdf", CategoryPoster},
		{"/data/Posters/expo.pdf", CategoryPoster},
		{"/data/misc/report.pdf", CategoryPaper},
		{"/data/misc/neurips_poster_final.pdf", CategoryPoster},
		{"/data/misc/records.csv", CategoryDataset},
		{"relative/datasets/x/f.jsonl", CategoryDataset},
	}
	for _, c := range cases {
		if got := ClassifyPath(c.path); got != c.want {
			t.Errorf("ClassifyPath(%q) = %q, want %q", c.path, got, c.want)
		}
	}
}

func TestDatasetNameFromPath(t *testing.T) {
	cases := []struct {
		path string
		want string
	}{
		{"/data/datasets/cells/a.csv", "cells"},
		{"/data/datasets/cells/raw/b.csv", "cells"},
		{"/data/Datasets/genome/c.jsonl", "genome"},
		{"/data/datasets/orphan.csv", ""},
		{"/data/paper/x.pdf", ""},
	}
	for _, c := range cases {
		if got := DatasetNameFromPath(c.path); got != c.want {
			t.Errorf("DatasetNameFromPath(%q) = %q, want %q", c.path, got, c.want)
		}
	}
}

func TestParseCategory(t *testing.T) {
	for _, raw := range []string{"paper", "Papers", " POSTER ", "dataset", "datasets"} {
		if _, ok := ParseCategory(raw); !ok {
			t.Errorf("ParseCategory(%q) rejected valid input", raw)
		}
	}
	if cat, ok := ParseCategory("papers"); !ok || cat != CategoryPaper {
		t.Errorf("ParseCategory(\"papers\") = %q, %v", cat, ok)
	}
	if _, ok := ParseCategory("thesis"); ok {
		t.Error("ParseCategory accepted unknown category")
	}
}
